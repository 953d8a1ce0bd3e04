// Package aitime normalizes the date and time fragments an assistant extracts
// from chat text into absolute timestamps.
package aitime

import (
	"context"
	"time"
)

// TimeService defines the date/time normalization interface.
// Consumers: intent resolver, calendar service.
type TimeService interface {
	// Normalize combines a date fragment and an optional time fragment.
	// Supports: "2025-03-21", "today", "tomorrow", "next Friday", "March 21", "3/21"
	// and times like "4pm", "2:30 PM", "16:00", "noon".
	Normalize(ctx context.Context, dateFragment, timeFragment string, base time.Time) (Result, error)

	// Location returns the timezone results are expressed in.
	Location() *time.Location
}

// Result is a normalized point in time.
type Result struct {
	// Time is the resolved instant. When HasTime is false it is midnight of the resolved day.
	Time time.Time `json:"time"`
	// HasTime reports whether a valid time of day was applied.
	HasTime bool `json:"has_time"`
	// DateDefaulted reports that the date fragment was missing or unparsable and
	// the fallback policy supplied the day.
	DateDefaulted bool `json:"date_defaulted"`
	// TimeMalformed reports a non-empty time fragment that could not be parsed.
	TimeMalformed bool `json:"time_malformed"`
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// On returns the clock applied to the calendar day of d.
func (c Clock) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, c.Second, 0, d.Location())
}

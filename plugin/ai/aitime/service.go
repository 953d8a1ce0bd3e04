package aitime

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Date fallback policies.
const (
	FallbackTomorrow = "tomorrow"
	FallbackToday    = "today"
	FallbackNone     = "none"
)

// ErrUnparsableDate is returned when a date cannot be resolved and the
// fallback policy is FallbackNone.
var ErrUnparsableDate = errors.New("unable to resolve date")

// Display layouts shared by previews and confirmation.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Service implements TimeService with rule-based parsing.
type Service struct {
	defaultTimezone *time.Location
	parser          *Parser
	fallback        string
	now             func() time.Time
}

// NewService creates a new time service. Unknown timezones fall back to UTC and
// unknown policies to FallbackTomorrow.
func NewService(defaultTimezone string, fallback string) *Service {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		slog.Warn("invalid default timezone, using UTC", slog.String("timezone", defaultTimezone))
		loc = time.UTC
	}
	switch fallback {
	case FallbackTomorrow, FallbackToday, FallbackNone:
	default:
		fallback = FallbackTomorrow
	}
	return &Service{
		defaultTimezone: loc,
		parser:          NewParser(loc),
		fallback:        fallback,
		now:             time.Now,
	}
}

// WithNow returns a copy of the service that reads the current time from now.
func (s *Service) WithNow(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Location returns the timezone results are expressed in.
func (s *Service) Location() *time.Location {
	return s.defaultTimezone
}

// Normalize resolves dateFragment relative to base and applies timeFragment.
// A zero base means now. A missing or unparsable date is replaced according to
// the fallback policy and flagged with DateDefaulted; a malformed time degrades
// to a date-only result.
func (s *Service) Normalize(_ context.Context, dateFragment, timeFragment string, base time.Time) (Result, error) {
	if base.IsZero() {
		base = s.now()
	}
	base = base.In(s.defaultTimezone)

	var result Result
	day, err := s.parser.ParseDate(dateFragment, base)
	if err != nil {
		day, err = s.fallbackDay()
		if err != nil {
			return Result{}, err
		}
		slog.Debug("date fragment defaulted",
			slog.String("fragment", dateFragment),
			slog.String("policy", s.fallback),
		)
		result.DateDefaulted = true
	}
	result.Time = day

	if strings.TrimSpace(timeFragment) != "" {
		if clock, ok := ParseClock(timeFragment); ok {
			result.Time = clock.On(day)
			result.HasTime = true
		} else {
			result.TimeMalformed = true
		}
	}

	return result, nil
}

// fallbackDay applies the fallback policy relative to the current time, not the
// base date.
func (s *Service) fallbackDay() (time.Time, error) {
	now := s.now().In(s.defaultTimezone)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.defaultTimezone)
	switch s.fallback {
	case FallbackToday:
		return today, nil
	case FallbackNone:
		return time.Time{}, ErrUnparsableDate
	default:
		return today.AddDate(0, 0, 1), nil
	}
}

// FormatDate renders a normalized time for display as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatClock renders the time of day as 24-hour HH:MM.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// Ensure Service implements TimeService
var _ TimeService = (*Service)(nil)

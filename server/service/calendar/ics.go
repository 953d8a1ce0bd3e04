package calendar

import (
	"context"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/store"
)

const icsProductName = "familycal"

// ExportICS writes every active event in scope as an iCalendar feed.
// Recurring events are exported once with their RRULE.
func (s *Service) ExportICS(ctx context.Context, scope store.OwnerScope, w io.Writer) error {
	normal := store.Normal
	list, err := s.store.ListEvents(ctx, &store.FindEvent{Scope: scope, RowStatus: &normal})
	if err != nil {
		return storeError(err, "failed to list events")
	}

	cal := ical.NewCalendarFor(icsProductName)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRTimezone(s.times.Location().String())
	stamp := s.now()
	for _, event := range list {
		addICSEvent(cal, event, stamp)
	}
	if err := cal.SerializeTo(w); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write calendar")
	}
	return nil
}

func addICSEvent(cal *ical.Calendar, event *store.Event, stamp time.Time) {
	vevent := cal.AddEvent(event.UID)
	vevent.SetDtStampTime(stamp)
	vevent.SetCreatedTime(time.Unix(event.CreatedTs, 0))
	vevent.SetModifiedAt(time.Unix(event.UpdatedTs, 0))
	vevent.SetSummary(event.Title)
	if event.Location != "" {
		vevent.SetLocation(event.Location)
	}
	if event.Description != "" {
		vevent.SetDescription(event.Description)
	}

	start := event.StartTime()
	if event.AllDay {
		vevent.SetAllDayStartAt(start)
		// DTEND is exclusive for date values.
		end := start.AddDate(0, 0, 1)
		if e := event.EndTime(); e != nil && e.After(end) {
			end = e.AddDate(0, 0, 1)
		}
		vevent.SetAllDayEndAt(end)
	} else {
		vevent.SetStartAt(start)
		if end := event.EndTime(); end != nil {
			vevent.SetEndAt(*end)
		}
	}

	if event.RecurrenceRule != nil && *event.RecurrenceRule != "" {
		vevent.AddRrule(*event.RecurrenceRule)
	}
}

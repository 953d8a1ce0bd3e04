package calendar

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/internal/util"
	"github.com/hrygo/familycal/plugin/ai/aitime"
	"github.com/hrygo/familycal/plugin/ai/intent"
	"github.com/hrygo/familycal/plugin/ai/schedule"
	"github.com/hrygo/familycal/plugin/ai/timeout"
	"github.com/hrygo/familycal/store"
)

// MaxInstances caps the number of instances returned by a range query.
const MaxInstances = schedule.MaxOccurrences

// EventInstance is one occurrence of an event inside a queried range.
type EventInstance struct {
	Event *store.Event
	Start time.Time
	End   *time.Time
	// Recurring is set for occurrences expanded from a recurrence rule.
	Recurring bool
}

// eventWindow is a normalized start/end pair ready to be stored.
type eventWindow struct {
	start  time.Time
	end    *time.Time
	allDay bool
}

// ConfirmPreview stores a preview the user accepted: a new event when the
// preview has no ID, otherwise an update of that event inside scope.
// Any unresolved problem is rejected rather than corrected.
func (s *Service) ConfirmPreview(ctx context.Context, scope store.OwnerScope, preview *intent.EventPreview) (*store.Event, error) {
	if scope.IsZero() {
		return nil, errors.AuthenticationRequired("an actor scope is required")
	}
	if preview == nil {
		return nil, errors.InvalidArgument("event is required")
	}
	title := util.NormalizeSpace(preview.Title)
	if title == "" {
		return nil, errors.ValidationFailed("title is required")
	}

	window, err := s.resolveWindow(ctx, preview)
	if err != nil {
		return nil, err
	}
	rule, text, err := recurrenceFor(preview, window.start)
	if err != nil {
		return nil, err
	}
	timezone := s.times.Location().String()
	if preview.Timezone != "" {
		if _, err := time.LoadLocation(preview.Timezone); err != nil {
			return nil, errors.ValidationFailed(fmt.Sprintf("unknown timezone %q", preview.Timezone))
		}
		timezone = preview.Timezone
	}

	var endTs *int64
	if window.end != nil {
		ts := window.end.Unix()
		endTs = &ts
	}

	if preview.ID == nil {
		event, err := s.store.CreateEvent(ctx, &store.Event{
			UID:            util.GenUID(),
			CreatorID:      scope.UserID,
			FamilyID:       scope.FamilyID,
			RowStatus:      store.Normal,
			Title:          title,
			Description:    strings.TrimSpace(preview.Description),
			Location:       strings.TrimSpace(preview.Location),
			StartTs:        window.start.Unix(),
			EndTs:          endTs,
			AllDay:         window.allDay,
			Timezone:       timezone,
			RecurrenceRule: rule,
			RecurrenceText: text,
		})
		if err != nil {
			return nil, storeError(err, "failed to create event")
		}
		observability.Logger(ctx).Info("event created", slog.Int("event_id", int(event.ID)))
		return event, nil
	}

	description := strings.TrimSpace(preview.Description)
	location := strings.TrimSpace(preview.Location)
	startTs := window.start.Unix()
	updatedTs := s.now().Unix()
	update := &store.UpdateEvent{
		ID:             *preview.ID,
		Scope:          scope,
		UpdatedTs:      &updatedTs,
		Title:          &title,
		Description:    &description,
		Location:       &location,
		StartTs:        &startTs,
		EndTs:          endTs,
		ClearEndTs:     endTs == nil,
		AllDay:         &window.allDay,
		Timezone:       &timezone,
		RecurrenceRule: orEmpty(rule),
		RecurrenceText: orEmpty(text),
	}
	if err := s.store.UpdateEvent(ctx, update); err != nil {
		return nil, storeError(err, "failed to update event")
	}
	event, err := s.store.GetEvent(ctx, &store.FindEvent{ID: preview.ID, Scope: scope})
	if err != nil {
		return nil, storeError(err, "failed to load updated event")
	}
	if event == nil {
		return nil, errors.NotFound("event not found")
	}
	observability.Logger(ctx).Info("event updated", slog.Int("event_id", int(event.ID)))
	return event, nil
}

// resolveWindow re-normalizes the preview's date and time strings strictly:
// a defaulted date or a malformed time is an error here. Previews without a
// date string fall back to their Start and End values.
func (s *Service) resolveWindow(ctx context.Context, preview *intent.EventPreview) (*eventWindow, error) {
	window := &eventWindow{}
	if strings.TrimSpace(preview.Date) == "" {
		if preview.Start.IsZero() {
			return nil, errors.ValidationFailed("a date is required")
		}
		window.start = preview.Start
		window.end = preview.End
		window.allDay = preview.AllDay
	} else {
		result, err := s.times.Normalize(ctx, preview.Date, preview.StartTime, s.now())
		if err != nil && !stderrors.Is(err, aitime.ErrUnparsableDate) {
			return nil, errors.FromUpstream("failed to normalize date", err)
		}
		if err != nil || result.DateDefaulted {
			return nil, errors.ValidationFailed(fmt.Sprintf("could not understand the date %q", preview.Date))
		}
		if result.TimeMalformed {
			return nil, errors.ValidationFailed(fmt.Sprintf("could not understand the time %q", preview.StartTime))
		}
		window.start = result.Time
		window.allDay = !result.HasTime

		switch {
		case strings.TrimSpace(preview.EndTime) != "":
			clock, ok := aitime.ParseClock(preview.EndTime)
			if !ok {
				return nil, errors.ValidationFailed(fmt.Sprintf("could not understand the time %q", preview.EndTime))
			}
			end := clock.On(window.start)
			window.end = &end
		case preview.End != nil:
			window.end = preview.End
		}
	}

	if window.end != nil && !window.end.After(window.start) {
		return nil, errors.ValidationFailed("the end time must be after the start time")
	}
	return window, nil
}

// recurrenceFor returns the RRULE and description to store for preview.
// A structured rule is re-rendered against the confirmed start; a raw RRULE
// is checked by expanding it once.
func recurrenceFor(preview *intent.EventPreview, start time.Time) (rule, text *string, err error) {
	if preview.Recurrence != nil {
		description := preview.Recurrence.Describe()
		text = &description
		if preview.Recurrence.IsFreeform() {
			return nil, text, nil
		}
		rendered, err := preview.Recurrence.ToRRule(start)
		if err != nil {
			return nil, nil, errors.ValidationFailed(err.Error())
		}
		return &rendered, text, nil
	}

	if preview.RecurrenceText != "" {
		description := preview.RecurrenceText
		text = &description
	}
	if preview.RecurrenceRule == "" {
		return nil, text, nil
	}
	if _, err := schedule.Occurrences(preview.RecurrenceRule, start, start, start, 1); err != nil {
		return nil, nil, errors.ValidationFailed(err.Error())
	}
	raw := preview.RecurrenceRule
	return &raw, text, nil
}

// SearchEvents lists events whose title matches term inside scope.
func (s *Service) SearchEvents(ctx context.Context, scope store.OwnerScope, term string, limit int) ([]*store.Event, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.InvalidArgument("search term is required")
	}
	return s.matcher.SearchEvents(ctx, term, scope, limit)
}

// GetEvent returns one event inside scope.
func (s *Service) GetEvent(ctx context.Context, scope store.OwnerScope, id int32) (*store.Event, error) {
	event, err := s.store.GetEvent(ctx, &store.FindEvent{ID: &id, Scope: scope})
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}
	if event == nil {
		return nil, errors.NotFound("event not found")
	}
	return event, nil
}

// DeleteEvent removes an event inside scope.
func (s *Service) DeleteEvent(ctx context.Context, scope store.OwnerScope, id int32) error {
	if err := s.store.DeleteEvent(ctx, &store.DeleteEvent{ID: id, Scope: scope}); err != nil {
		return storeError(err, "failed to delete event")
	}
	observability.Logger(ctx).Info("event deleted", slog.Int("event_id", int(id)))
	return nil
}

// FindEvents returns the event instances overlapping [start, end], expanding
// recurring events. Results are ordered by start and capped at MaxInstances.
func (s *Service) FindEvents(ctx context.Context, scope store.OwnerScope, start, end time.Time) ([]*EventInstance, error) {
	if !end.After(start) {
		return nil, errors.InvalidArgument("range end must be after range start")
	}
	ctx, cancel := timeout.WithDefault(ctx, timeout.StoreQueryTimeout)
	defer cancel()

	normal := store.Normal
	// Recurring events are templates, so the query carries no time bound.
	list, err := s.store.ListEvents(ctx, &store.FindEvent{Scope: scope, RowStatus: &normal})
	if err != nil {
		return nil, storeError(err, "failed to list events")
	}

	var instances []*EventInstance
	truncated := false
	for _, event := range list {
		if len(instances) >= MaxInstances {
			truncated = true
			break
		}
		if event.RecurrenceRule == nil || *event.RecurrenceRule == "" {
			if overlaps(event.StartTime(), event.EndTime(), start, end) {
				instances = append(instances, &EventInstance{Event: event, Start: event.StartTime(), End: event.EndTime()})
			}
			continue
		}

		var duration time.Duration
		if endTime := event.EndTime(); endTime != nil {
			duration = endTime.Sub(event.StartTime())
		}
		// Instances that began before the range can still overlap it.
		occurrences, err := schedule.Occurrences(*event.RecurrenceRule, event.StartTime(), start.Add(-duration), end, MaxInstances)
		if err != nil {
			observability.Logger(ctx).Warn("skipping unexpandable recurrence",
				slog.Int("event_id", int(event.ID)),
				slog.String("error", err.Error()),
			)
			instances = append(instances, &EventInstance{Event: event, Start: event.StartTime(), End: event.EndTime()})
			continue
		}
		for _, occurrence := range occurrences {
			var occurrenceEnd *time.Time
			if event.EndTs != nil {
				e := occurrence.Add(duration)
				occurrenceEnd = &e
			}
			if !overlaps(occurrence, occurrenceEnd, start, end) {
				continue
			}
			if len(instances) >= MaxInstances {
				truncated = true
				break
			}
			instances = append(instances, &EventInstance{Event: event, Start: occurrence, End: occurrenceEnd, Recurring: true})
		}
	}

	if truncated {
		slog.Warn("event instance expansion truncated",
			slog.Int("max_instances", MaxInstances),
			slog.Time("range_start", start),
			slog.Time("range_end", end),
		)
	}
	slices.SortStableFunc(instances, func(a, b *EventInstance) int {
		return a.Start.Compare(b.Start)
	})
	return instances, nil
}

// orEmpty turns an absent value into an explicit empty one so updates clear it.
func orEmpty(v *string) *string {
	if v == nil {
		empty := ""
		return &empty
	}
	return v
}

func overlaps(start time.Time, end *time.Time, rangeStart, rangeEnd time.Time) bool {
	last := start
	if end != nil {
		last = *end
	}
	return !start.After(rangeEnd) && !last.Before(rangeStart)
}

// ExtractFromText turns free text such as a pasted invitation into previews.
// skipped counts the events that were dropped as invalid.
func (s *Service) ExtractFromText(ctx context.Context, scope store.OwnerScope, text string) (previews []*intent.EventPreview, skipped int, err error) {
	if scope.IsZero() {
		return nil, 0, errors.AuthenticationRequired("an actor scope is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, errors.InvalidArgument("text is required")
	}
	if s.resolver == nil {
		return nil, 0, errors.UpstreamUnavailable("the calendar assistant is not configured", nil)
	}
	ctx, cancel := timeout.WithDefault(ctx, timeout.BatchExtractionTimeout)
	defer cancel()
	return s.resolver.ExtractPreviews(ctx, text, s.now())
}

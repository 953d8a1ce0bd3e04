package intent

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/plugin/ai/aitime"
	"github.com/hrygo/familycal/plugin/ai/schedule"
)

const displayDateLayout = "Monday, January 2, 2006"

// PreviewBuilder turns extracted event fields into previews.
type PreviewBuilder struct {
	times aitime.TimeService
}

// NewPreviewBuilder creates a builder normalizing dates with times.
func NewPreviewBuilder(times aitime.TimeService) *PreviewBuilder {
	return &PreviewBuilder{times: times}
}

// Build normalizes ev relative to base. Problems are flagged on the preview
// for the user to correct; values are never silently coerced.
func (b *PreviewBuilder) Build(ctx context.Context, ev *ExtractedEvent, base time.Time) (*EventPreview, error) {
	preview := &EventPreview{
		Title:       ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
		Timezone:    b.times.Location().String(),
	}

	start, err := b.times.Normalize(ctx, ev.Date, ev.StartTime, base)
	switch {
	case stderrors.Is(err, aitime.ErrUnparsableDate):
		preview.flag("date", FlagDateUnparsable, fmt.Sprintf("could not understand the date %q", ev.Date))
		preview.AllDay = true
	case err != nil:
		return nil, err
	default:
		preview.Start = start.Time
		preview.Date = aitime.FormatDate(start.Time)
		preview.AllDay = !start.HasTime
		if start.HasTime {
			preview.StartTime = aitime.FormatClock(start.Time)
		}
		if start.DateDefaulted {
			preview.flag("date", FlagDateDefaulted, "no date was understood, please check the day")
		}
		if start.TimeMalformed {
			preview.flag("start_time", FlagTimeMalformed, fmt.Sprintf("could not understand the time %q", ev.StartTime))
		}
	}

	if ev.EndTime != "" && !preview.Start.IsZero() {
		if clock, ok := aitime.ParseClock(ev.EndTime); ok {
			end := clock.On(preview.Start)
			preview.End = &end
			preview.EndTime = aitime.FormatClock(end)
			if start.HasTime && !end.After(preview.Start) {
				preview.flag("end_time", FlagEndNotAfterStart, "the end time must be after the start time")
			}
		} else {
			preview.flag("end_time", FlagTimeMalformed, fmt.Sprintf("could not understand the time %q", ev.EndTime))
		}
	}

	b.applyRecurrence(ctx, preview, ev)
	return preview, nil
}

func (b *PreviewBuilder) applyRecurrence(ctx context.Context, preview *EventPreview, ev *ExtractedEvent) {
	rule := schedule.ParseRecurrencePattern(ev.RecurrencePattern)
	// A description alone does not outweigh an explicit one-off answer.
	if rule != nil && rule.IsFreeform() && !ev.IsRecurring {
		rule = nil
	}
	if rule == nil {
		preview.IsRecurring = ev.IsRecurring
		return
	}
	preview.IsRecurring = true
	preview.Recurrence = rule
	preview.RecurrenceText = rule.Describe()
	if rule.IsFreeform() || preview.Start.IsZero() {
		return
	}
	rrule, err := rule.ToRRule(preview.Start)
	if err != nil {
		observability.Logger(ctx).Warn("recurrence rule not expressible",
			slog.String("rule", preview.RecurrenceText),
			slog.String("error", err.Error()),
		)
		return
	}
	preview.RecurrenceRule = rrule
}

func (p *EventPreview) flag(field, code, message string) {
	p.Flags = append(p.Flags, PreviewFlag{Field: field, Code: code, Message: message})
}

// FormatForDisplay renders a preview as the text shown for confirmation.
func FormatForDisplay(p *EventPreview) string {
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteString("\n")

	if p.Start.IsZero() {
		b.WriteString("Date: (needs a date)\n")
	} else {
		b.WriteString("Date: " + p.Start.Format(displayDateLayout) + "\n")
		switch {
		case p.AllDay:
			b.WriteString("Time: all day\n")
		case p.End != nil:
			b.WriteString("Time: " + p.Start.Format(time.Kitchen) + " - " + p.End.Format(time.Kitchen) + "\n")
		default:
			b.WriteString("Time: " + p.Start.Format(time.Kitchen) + "\n")
		}
	}
	if p.Location != "" {
		b.WriteString("Location: " + p.Location + "\n")
	}
	if p.RecurrenceText != "" {
		b.WriteString("Repeats: " + p.RecurrenceText + "\n")
	} else if p.IsRecurring {
		b.WriteString("Repeats: yes\n")
	}
	for _, f := range p.Flags {
		b.WriteString("Check " + strings.ReplaceAll(f.Field, "_", " ") + ": " + f.Message + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/internal/profile"
	"github.com/hrygo/familycal/plugin/ai"
	"github.com/hrygo/familycal/plugin/ai/timeout"
)

// Extraction outcomes recorded in metrics.
const (
	outcomeOK          = "ok"
	outcomeParseFailed = "parse_failed"
	outcomeUpstream    = "upstream_error"
)

const conversationalPrompt = `You are a family calendar assistant. Today is %s (%s), timezone %s.

Decide what the user wants and reply with a single JSON object:
{
  "message": "short friendly reply to show the user",
  "intent": "create_event" | "update_event" | "edit_event" | "none",
  "event": {
    "id": existing event id if known,
    "title": "event title",
    "date": "YYYY-MM-DD, today, tomorrow or a weekday",
    "start_time": "e.g. 4pm or 16:00",
    "end_time": "optional",
    "location": "optional",
    "description": "optional",
    "is_recurring": true | false,
    "recurrence_pattern": "optional, e.g. every Tuesday, or {\"type\":\"weekly\",\"weekdays\":[2]}"
  },
  "existing_event_id": id of the event being changed, only if known
}

Rules:
- Use "create_event" for new events, "update_event" or "edit_event" when changing an existing one.
- Use "none" and omit "event" for questions or small talk.
- Never invent an event id.%s`

const batchPrompt = `You extract calendar events from text such as emails or school newsletters.
Today is %s (%s), timezone %s.

Reply with a single JSON object:
{"events": [{"title": "", "date": "YYYY-MM-DD", "start_time": "", "end_time": "", "location": "", "description": "", "is_recurring": false, "recurrence_pattern": ""}]}

Every event needs a title, a date and a start time. Leave out anything you are not sure is an event.
Reply {"events": []} when there are none.`

// Extractor asks the completion service for structured event data.
// It never persists anything and never retries.
type Extractor struct {
	llm           ai.LLMService
	validate      *validator.Validate
	contextWindow int
	location      *time.Location
	now           func() time.Time
	metrics       *observability.Metrics
}

// NewExtractor creates an extractor. contextWindow is capped at
// profile.MaxContextMessages.
func NewExtractor(llm ai.LLMService, contextWindow int, location *time.Location) *Extractor {
	if contextWindow <= 0 || contextWindow > profile.MaxContextMessages {
		contextWindow = profile.MaxContextMessages
	}
	if location == nil {
		location = time.UTC
	}
	return &Extractor{
		llm:           llm,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		contextWindow: contextWindow,
		location:      location,
		now:           time.Now,
	}
}

// WithNow sets the clock used for the date line in prompts.
func (e *Extractor) WithNow(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// WithMetrics records extraction outcomes to m.
func (e *Extractor) WithMetrics(m *observability.Metrics) *Extractor {
	e.metrics = m
	return e
}

type conversationalReply struct {
	Message         string          `json:"message"`
	Intent          string          `json:"intent"`
	Event           *ExtractedEvent `json:"event"`
	ExistingEventID EventRef        `json:"existing_event_id"`
}

type batchReply struct {
	Events []*ExtractedEvent `json:"events"`
}

// Extract runs one conversational extraction. hint, when set, names the event
// the message probably refers to. Transport failures are returned as errors;
// an unusable reply is reported through Extraction.Failed.
func (e *Extractor) Extract(ctx context.Context, message string, history []RawMessage, hint string) (*Extraction, error) {
	logger := observability.Logger(ctx)
	messages := ai.FormatMessages(e.conversationalPrompt(hint), message, e.historyMessages(history))

	start := time.Now()
	raw, err := e.llm.ChatJSON(ctx, messages)
	if err != nil {
		e.metrics.RecordExtraction(outcomeUpstream, time.Since(start))
		return nil, errors.FromUpstream("extraction request failed", err)
	}

	var reply conversationalReply
	if err := decodeObject(raw, &reply); err != nil || isBlankReply(&reply) {
		e.metrics.RecordExtraction(outcomeParseFailed, time.Since(start))
		logger.Warn("extraction reply unusable",
			slog.String("reply", timeout.Truncate(raw)),
			slog.Any("error", err),
		)
		return &Extraction{Intent: IntentNone, Failed: true}, nil
	}
	e.metrics.RecordExtraction(outcomeOK, time.Since(start))

	x := &Extraction{
		Message:         strings.TrimSpace(reply.Message),
		Intent:          ParseIntent(reply.Intent),
		ExistingEventID: reply.ExistingEventID.Ptr(),
	}
	if reply.Event != nil && !reply.Event.IsEmpty() {
		x.Event = trimEvent(reply.Event)
	}
	logger.Debug("extraction complete",
		slog.String("intent", string(x.Intent)),
		slog.Bool("has_event", x.Event != nil),
	)
	return x, nil
}

// BatchExtraction is the outcome of extracting events from a block of text.
type BatchExtraction struct {
	Events []*ExtractedEvent
	// Dropped counts events missing a title, date or start time.
	Dropped int
	Failed  bool
}

// ExtractEvents extracts every event mentioned in text. Events missing a
// mandatory field are dropped, never defaulted.
func (e *Extractor) ExtractEvents(ctx context.Context, text string) (*BatchExtraction, error) {
	logger := observability.Logger(ctx)
	now := e.now().In(e.location)
	messages := ai.FormatMessages(
		fmt.Sprintf(batchPrompt, now.Format("2006-01-02"), now.Weekday(), e.location),
		text, nil)

	start := time.Now()
	raw, err := e.llm.ChatJSON(ctx, messages)
	if err != nil {
		e.metrics.RecordExtraction(outcomeUpstream, time.Since(start))
		return nil, errors.FromUpstream("batch extraction request failed", err)
	}

	var reply batchReply
	if err := decodeObject(raw, &reply); err != nil {
		e.metrics.RecordExtraction(outcomeParseFailed, time.Since(start))
		logger.Warn("batch extraction reply unusable",
			slog.String("reply", timeout.Truncate(raw)),
			slog.Any("error", err),
		)
		return &BatchExtraction{Failed: true}, nil
	}
	e.metrics.RecordExtraction(outcomeOK, time.Since(start))

	result := &BatchExtraction{}
	for i, ev := range reply.Events {
		if ev == nil {
			result.Dropped++
			continue
		}
		ev = trimEvent(ev)
		if err := e.validate.Struct(ev); err != nil {
			result.Dropped++
			logger.Info("dropping extracted event",
				slog.Int("index", i),
				slog.String("title", ev.Title),
				slog.String("reason", err.Error()),
			)
			continue
		}
		result.Events = append(result.Events, ev)
	}
	return result, nil
}

func (e *Extractor) conversationalPrompt(hint string) string {
	now := e.now().In(e.location)
	var hintLine string
	if hint = strings.TrimSpace(hint); hint != "" {
		hintLine = fmt.Sprintf("\n- The user is probably referring to an existing event titled %q.", hint)
	}
	return fmt.Sprintf(conversationalPrompt, now.Format("2006-01-02"), now.Weekday(), e.location, hintLine)
}

// historyMessages keeps the most recent contextWindow turns, oldest first.
func (e *Extractor) historyMessages(history []RawMessage) []ai.Message {
	if len(history) > e.contextWindow {
		history = history[len(history)-e.contextWindow:]
	}
	messages := make([]ai.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		messages = append(messages, ai.RoleMessage(string(m.Role), m.Text))
	}
	return messages
}

func isBlankReply(r *conversationalReply) bool {
	return strings.TrimSpace(r.Message) == "" && strings.TrimSpace(r.Intent) == "" && r.Event == nil
}

func trimEvent(ev *ExtractedEvent) *ExtractedEvent {
	out := *ev
	out.Title = strings.TrimSpace(out.Title)
	out.Date = strings.TrimSpace(out.Date)
	out.StartTime = strings.TrimSpace(out.StartTime)
	out.EndTime = strings.TrimSpace(out.EndTime)
	out.Location = strings.TrimSpace(out.Location)
	out.Description = strings.TrimSpace(out.Description)
	return &out
}

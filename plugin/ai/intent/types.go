// Package intent resolves a chat message into a calendar action: edit an
// existing event, show search candidates, preview a new event, or reply only.
package intent

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/familycal/plugin/ai/schedule"
	"github.com/hrygo/familycal/store"
)

// Intent is the classification the extraction model reports.
type Intent string

const (
	IntentCreateEvent Intent = "create_event"
	IntentUpdateEvent Intent = "update_event"
	IntentEditEvent   Intent = "edit_event"
	IntentSearch      Intent = "search"
	IntentNone        Intent = "none"
)

// ParseIntent maps a model-reported intent onto the known vocabulary.
// Unknown or empty values are IntentNone.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentCreateEvent:
		return IntentCreateEvent
	case IntentUpdateEvent:
		return IntentUpdateEvent
	case IntentEditEvent:
		return IntentEditEvent
	case IntentSearch:
		return IntentSearch
	default:
		return IntentNone
	}
}

// IsModification reports whether the intent targets an existing event.
func (i Intent) IsModification() bool {
	return i == IntentUpdateEvent || i == IntentEditEvent
}

// ActionType is the decision the resolver hands back to its caller.
type ActionType string

const (
	ActionEdit    ActionType = "EDIT"
	ActionSearch  ActionType = "SEARCH"
	ActionPreview ActionType = "PREVIEW"
	ActionNone    ActionType = "NONE"
)

// RawMessage is one turn of conversation context.
type RawMessage struct {
	Role      store.MessageRole
	Text      string
	Timestamp time.Time
}

// EventRef is an event id as reported by the model. It accepts a JSON number
// or a numeric string; anything else decodes to no id.
type EventRef struct {
	ID    int32
	Valid bool
}

func (r *EventRef) UnmarshalJSON(data []byte) error {
	*r = EventRef{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}
	id, err := strconv.ParseInt(text, 10, 32)
	if err != nil || id <= 0 {
		return nil
	}
	*r = EventRef{ID: int32(id), Valid: true}
	return nil
}

// Ptr returns the id as a pointer, nil when absent.
func (r *EventRef) Ptr() *int32 {
	if r == nil || !r.Valid {
		return nil
	}
	id := r.ID
	return &id
}

// ExtractedEvent is the event guess produced by the extraction model.
type ExtractedEvent struct {
	ID                EventRef        `json:"id"`
	Title             string          `json:"title" validate:"required"`
	Date              string          `json:"date" validate:"required"`
	StartTime         string          `json:"start_time" validate:"required"`
	EndTime           string          `json:"end_time,omitempty"`
	Location          string          `json:"location,omitempty"`
	Description       string          `json:"description,omitempty"`
	IsRecurring       bool            `json:"is_recurring,omitempty"`
	RecurrencePattern json.RawMessage `json:"recurrence_pattern,omitempty"`
}

// IsEmpty reports whether the model returned an event object with no usable fields.
func (e *ExtractedEvent) IsEmpty() bool {
	return e == nil || (strings.TrimSpace(e.Title) == "" &&
		strings.TrimSpace(e.Date) == "" &&
		strings.TrimSpace(e.StartTime) == "")
}

// Extraction is the outcome of one conversational extraction call.
type Extraction struct {
	Message         string
	Intent          Intent
	Event           *ExtractedEvent
	ExistingEventID *int32
	// Failed is set when the model reply could not be parsed. It is a handled
	// outcome, not an error.
	Failed bool
}

// ExplicitEventID returns the id the model named, preferring existing_event_id.
func (x *Extraction) ExplicitEventID() *int32 {
	if x.ExistingEventID != nil {
		return x.ExistingEventID
	}
	if x.Event != nil {
		return x.Event.ID.Ptr()
	}
	return nil
}

// Flag codes attached to preview fields that need the user's attention.
const (
	FlagDateDefaulted    = "date_defaulted"
	FlagDateUnparsable   = "date_unparsable"
	FlagTimeMalformed    = "time_malformed"
	FlagEndNotAfterStart = "end_not_after_start"
)

// PreviewFlag marks a preview field for correction.
type PreviewFlag struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventPreview is an unpersisted event shown to the user for confirmation.
type EventPreview struct {
	// ID is set only when the preview edits a verified existing event.
	ID          *int32     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Date        string     `json:"date"`
	StartTime   string     `json:"start_time,omitempty"`
	EndTime     string     `json:"end_time,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      bool       `json:"all_day"`
	Timezone    string     `json:"timezone"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`

	IsRecurring    bool                     `json:"is_recurring"`
	Recurrence     *schedule.RecurrenceRule `json:"recurrence,omitempty"`
	RecurrenceRule string                   `json:"recurrence_rule,omitempty"`
	RecurrenceText string                   `json:"recurrence_text,omitempty"`

	Flags []PreviewFlag `json:"flags,omitempty"`
}

// HasFlag reports whether the preview carries the given flag code.
func (p *EventPreview) HasFlag(code string) bool {
	for _, f := range p.Flags {
		if f.Code == code {
			return true
		}
	}
	return false
}

// ResolvedAction is the resolver's decision for one message.
type ResolvedAction struct {
	Type ActionType
	// Intent is the model-reported intent, IntentNone when the model was not consulted.
	Intent Intent
	// EventID is set for ActionEdit.
	EventID *int32
	// SearchTerm and Candidates are set for ActionSearch.
	SearchTerm string
	Candidates []*store.Event
	// Preview is set for ActionPreview.
	Preview *EventPreview
	// Message is the model's conversational reply, possibly empty.
	Message string
	// ExtractionFailed reports that the model reply was unusable.
	ExtractionFailed bool
}

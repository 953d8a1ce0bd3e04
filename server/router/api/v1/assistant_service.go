package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/plugin/ai/intent"
	"github.com/hrygo/familycal/store"
)

type SendMessageRequest struct {
	// ConversationID continues an existing conversation; omit it to start one.
	ConversationID *int32 `json:"conversation_id"`
	Message        string `json:"message" validate:"required,max=4000"`
}

type SendMessageResponse struct {
	ConversationID int32           `json:"conversation_id"`
	Reply          string          `json:"reply"`
	Action         *ActionResponse `json:"action,omitempty"`
}

type ActionResponse struct {
	Type             string               `json:"type"`
	Intent           string               `json:"intent"`
	EventID          *int32               `json:"event_id,omitempty"`
	SearchTerm       string               `json:"search_term,omitempty"`
	Candidates       []*EventResponse     `json:"candidates,omitempty"`
	Preview          *intent.EventPreview `json:"preview,omitempty"`
	ExtractionFailed bool                 `json:"extraction_failed,omitempty"`
}

type ExtractEventsRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

type ExtractEventsResponse struct {
	Previews []*intent.EventPreview `json:"previews"`
	// Skipped counts events dropped for missing or inconsistent fields.
	Skipped int `json:"skipped"`
}

// SendMessage runs one chat turn through the assistant.
// POST /api/v1/assistant/messages
func (s *APIV1Service) SendMessage(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	var req SendMessageRequest
	if err := s.bindRequest(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	if err := s.assistantSemaphore.Acquire(ctx, 1); err != nil {
		return respondError(c, errors.ContextCanceled(err))
	}
	defer s.assistantSemaphore.Release(1)

	start := time.Now()
	result, err := s.Calendar.HandleMessage(ctx, scope, req.ConversationID, req.Message)
	if err != nil {
		return respondError(c, err)
	}
	observability.Logger(ctx).Info("assistant message handled",
		observability.LogFieldMessageLen, len(req.Message),
		observability.LogFieldDuration, time.Since(start).Milliseconds(),
	)
	return c.JSON(http.StatusOK, &SendMessageResponse{
		ConversationID: result.ConversationID,
		Reply:          result.Reply,
		Action:         convertAction(result.Action),
	})
}

// ExtractEvents turns pasted text into previews without storing anything.
// POST /api/v1/assistant/extract
func (s *APIV1Service) ExtractEvents(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	var req ExtractEventsRequest
	if err := s.bindRequest(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	if err := s.assistantSemaphore.Acquire(ctx, 1); err != nil {
		return respondError(c, errors.ContextCanceled(err))
	}
	defer s.assistantSemaphore.Release(1)

	previews, skipped, err := s.Calendar.ExtractFromText(ctx, scope, req.Text)
	if err != nil {
		return respondError(c, err)
	}
	if previews == nil {
		previews = []*intent.EventPreview{}
	}
	return c.JSON(http.StatusOK, &ExtractEventsResponse{Previews: previews, Skipped: skipped})
}

func convertAction(action *intent.ResolvedAction) *ActionResponse {
	if action == nil {
		return nil
	}
	resp := &ActionResponse{
		Type:             string(action.Type),
		Intent:           string(action.Intent),
		EventID:          action.EventID,
		SearchTerm:       action.SearchTerm,
		Preview:          action.Preview,
		ExtractionFailed: action.ExtractionFailed,
	}
	resp.Candidates = convertEvents(action.Candidates)
	return resp
}

func convertEvents(events []*store.Event) []*EventResponse {
	if len(events) == 0 {
		return nil
	}
	out := make([]*EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, convertEvent(event))
	}
	return out
}

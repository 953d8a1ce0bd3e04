package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/internal/util"
	"github.com/hrygo/familycal/plugin/ai/intent"
	"github.com/hrygo/familycal/plugin/ai/timeout"
	"github.com/hrygo/familycal/store"
)

const (
	apologeticReply  = "Sorry, something went wrong while I was working on that. Please try again in a moment."
	unavailableReply = "The calendar assistant is not available right now, but you can still add events by hand."
	unclearReply     = "I'm not sure what you'd like to do with your calendar. Could you rephrase that?"

	conversationTitleLength = 40
	candidateTimeLayout     = "Mon Jan 2, 3:04PM"
)

// MessageResult is the outcome of one chat message.
type MessageResult struct {
	ConversationID int32
	// Action is nil when resolution failed and the apologetic reply was sent.
	Action *intent.ResolvedAction
	Reply  string
}

// HandleMessage appends text to the conversation (creating it when
// conversationID is nil), resolves it against the last turns and records the
// assistant reply. Resolution failures never surface as errors; they degrade to
// an apologetic reply and are logged.
func (s *Service) HandleMessage(ctx context.Context, scope store.OwnerScope, conversationID *int32, text string) (*MessageResult, error) {
	if scope.IsZero() {
		return nil, errors.AuthenticationRequired("an actor scope is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.InvalidArgument("message text is required")
	}
	logger := observability.Logger(ctx)

	conversation, err := s.conversation(ctx, scope.UserID, conversationID, text)
	if err != nil {
		return nil, err
	}

	history, err := s.history(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	if err := s.appendMessage(ctx, conversation.ID, store.MessageRoleUser, text); err != nil {
		return nil, err
	}

	result := &MessageResult{ConversationID: conversation.ID}
	if s.resolver == nil {
		result.Reply = unavailableReply
	} else {
		resolveCtx, cancel := timeout.WithDefault(ctx, s.requestTimeout)
		action, err := s.resolver.Resolve(resolveCtx, &intent.ResolveRequest{
			Message: text,
			History: history,
			Scope:   scope,
			Base:    s.now(),
		})
		cancel()
		if err != nil {
			logger.Error("message resolution failed",
				slog.String(observability.LogFieldErrorCode, string(errors.GetCodeFromError(err, errors.ErrCodeInternal))),
				slog.String("error", err.Error()),
			)
			result.Reply = apologeticReply
		} else {
			result.Action = action
			result.Reply = s.renderReply(ctx, scope, action)
		}
	}

	if err := s.appendMessage(ctx, conversation.ID, store.MessageRoleAssistant, result.Reply); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) conversation(ctx context.Context, userID int32, conversationID *int32, text string) (*store.Conversation, error) {
	if conversationID != nil {
		conversation, err := s.store.GetConversation(ctx, &store.FindConversation{ID: conversationID, CreatorID: &userID})
		if err != nil {
			return nil, errors.FromUpstream("failed to load conversation", err)
		}
		if conversation == nil {
			return nil, errors.NotFound("conversation not found")
		}
		return conversation, nil
	}

	conversation, err := s.store.CreateConversation(ctx, &store.Conversation{
		UID:       util.GenUID(),
		CreatorID: userID,
		Title:     util.TruncateRunes(text, conversationTitleLength),
	})
	if err != nil {
		return nil, errors.FromUpstream("failed to create conversation", err)
	}
	return conversation, nil
}

// history returns the last contextWindow turns, oldest first.
func (s *Service) history(ctx context.Context, conversationID int32) ([]intent.RawMessage, error) {
	last := s.contextWindow
	messages, err := s.store.ListConversationMessages(ctx, &store.FindConversationMessage{
		ConversationID: conversationID,
		Last:           &last,
	})
	if err != nil {
		return nil, errors.FromUpstream("failed to load conversation messages", err)
	}
	history := make([]intent.RawMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, intent.RawMessage{
			Role:      m.Role,
			Text:      m.Content,
			Timestamp: time.Unix(m.CreatedTs, 0),
		})
	}
	return history, nil
}

func (s *Service) appendMessage(ctx context.Context, conversationID int32, role store.MessageRole, content string) error {
	message, err := s.store.CreateConversationMessage(ctx, &store.ConversationMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
	if err != nil {
		return errors.FromUpstream("failed to append conversation message", err)
	}
	updatedTs := message.CreatedTs
	if err := s.store.UpdateConversation(ctx, &store.UpdateConversation{ID: conversationID, UpdatedTs: &updatedTs}); err != nil {
		return errors.FromUpstream("failed to touch conversation", err)
	}
	return nil
}

// renderReply turns an action into the text shown to the user.
func (s *Service) renderReply(ctx context.Context, scope store.OwnerScope, action *intent.ResolvedAction) string {
	switch action.Type {
	case intent.ActionEdit:
		return s.renderEdit(ctx, scope, action)

	case intent.ActionSearch:
		if len(action.Candidates) == 0 {
			return fmt.Sprintf("I couldn't find an event called %q. Could you tell me its exact title?", action.SearchTerm)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "I found these events matching %q. Which one did you mean?", action.SearchTerm)
		for i, event := range action.Candidates {
			fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, event.Title, event.StartTime().Format(candidateTimeLayout))
		}
		return b.String()

	case intent.ActionPreview:
		lead := action.Message
		if lead == "" {
			lead = "Here's the event I'll add:"
		}
		return lead + "\n\n" + intent.FormatForDisplay(action.Preview) + "\n\nShall I save it?"

	default:
		if action.Message != "" {
			return action.Message
		}
		if action.ExtractionFailed {
			return apologeticReply
		}
		return unclearReply
	}
}

func (s *Service) renderEdit(ctx context.Context, scope store.OwnerScope, action *intent.ResolvedAction) string {
	title := "that event"
	event, err := s.store.GetEvent(ctx, &store.FindEvent{ID: action.EventID, Scope: scope})
	if err != nil {
		observability.Logger(ctx).Warn("failed to load event for reply", slog.String("error", err.Error()))
	} else if event != nil {
		title = fmt.Sprintf("%q", event.Title)
	}

	if action.Preview != nil {
		return fmt.Sprintf("Here's how %s will look:\n\n%s\n\nShall I save the changes?", title, intent.FormatForDisplay(action.Preview))
	}
	if action.Message != "" {
		return action.Message
	}
	return fmt.Sprintf("Found %s. What would you like to change?", title)
}

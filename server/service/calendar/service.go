// Package calendar is the caller side of the assistant: it keeps the
// conversation log, runs resolution for each message, renders replies and
// turns confirmed previews into stored events.
//
// The resolver itself never writes; every write happens here.
package calendar

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/internal/profile"
	"github.com/hrygo/familycal/plugin/ai"
	"github.com/hrygo/familycal/plugin/ai/aitime"
	"github.com/hrygo/familycal/plugin/ai/intent"
	"github.com/hrygo/familycal/plugin/ai/timeout"
	"github.com/hrygo/familycal/store"
)

// Store is the interface for store operations needed by the calendar service.
type Store interface {
	CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error)
	ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error)
	GetEvent(ctx context.Context, find *store.FindEvent) (*store.Event, error)
	UpdateEvent(ctx context.Context, update *store.UpdateEvent) error
	DeleteEvent(ctx context.Context, delete *store.DeleteEvent) error

	CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error)
	GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, update *store.UpdateConversation) error
	CreateConversationMessage(ctx context.Context, create *store.ConversationMessage) (*store.ConversationMessage, error)
	ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error)
}

// Service implements the calendar assistant use cases.
type Service struct {
	store          Store
	times          aitime.TimeService
	matcher        *intent.TitleMatcher
	resolver       *intent.Resolver
	contextWindow  int
	requestTimeout time.Duration
	now            func() time.Time
}

// NewService creates a calendar service. llm may be nil, in which case the
// chat endpoints reply that the assistant is unavailable while event CRUD
// keeps working.
func NewService(st Store, llm ai.LLMService, times aitime.TimeService, p *profile.Profile, metrics *observability.Metrics) *Service {
	s := &Service{
		store:          st,
		times:          times,
		matcher:        intent.NewTitleMatcher(st, p.SearchLimit),
		contextWindow:  p.ContextWindow,
		requestTimeout: p.AIRequestTimeout,
		now:            time.Now,
	}
	if s.contextWindow <= 0 || s.contextWindow > profile.MaxContextMessages {
		s.contextWindow = profile.MaxContextMessages
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = timeout.ExtractionTimeout
	}
	if llm != nil {
		extractor := intent.NewExtractor(llm, s.contextWindow, times.Location()).WithMetrics(metrics)
		s.resolver = intent.NewResolver(s.matcher, extractor, intent.NewPreviewBuilder(times)).WithMetrics(metrics)
	}
	return s
}

// WithNow sets the clock used as the base for relative dates.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// AssistantEnabled reports whether a completion service is configured.
func (s *Service) AssistantEnabled() bool {
	return s.resolver != nil
}

// storeError maps store failures onto assistant error codes.
func storeError(err error, msg string) error {
	switch {
	case stderrors.Is(err, store.ErrEmptyScope):
		return errors.AuthenticationRequired("an actor scope is required")
	case stderrors.Is(err, store.ErrEventNotFound):
		return errors.NotFound("event not found")
	default:
		return errors.FromUpstream(msg, err)
	}
}

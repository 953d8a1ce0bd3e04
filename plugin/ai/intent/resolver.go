package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/store"
)

// EventExtractor is the completion-backed half of resolution.
type EventExtractor interface {
	Extract(ctx context.Context, message string, history []RawMessage, hint string) (*Extraction, error)
	ExtractEvents(ctx context.Context, text string) (*BatchExtraction, error)
}

// ResolveRequest is one message to resolve.
type ResolveRequest struct {
	Message string
	// History is the conversation so far, oldest first. It is only read.
	History []RawMessage
	Scope   store.OwnerScope
	// Base anchors relative dates; zero means now.
	Base time.Time
}

// Resolver decides what a chat message asks the calendar to do.
// It never writes to storage.
type Resolver struct {
	matcher   *TitleMatcher
	extractor EventExtractor
	previews  *PreviewBuilder
	metrics   *observability.Metrics
}

// NewResolver creates a resolver.
func NewResolver(matcher *TitleMatcher, extractor EventExtractor, previews *PreviewBuilder) *Resolver {
	return &Resolver{
		matcher:   matcher,
		extractor: extractor,
		previews:  previews,
	}
}

// WithMetrics records resolved actions to m.
func (r *Resolver) WithMetrics(m *observability.Metrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve runs the local edit detector, then the extraction model, and
// reconciles both into one action. An explicit verified id outranks a title
// guess, a title that resolves outranks search results, and a title that does
// not resolve becomes a search rather than a silent no-op.
func (r *Resolver) Resolve(ctx context.Context, req *ResolveRequest) (*ResolvedAction, error) {
	if req.Scope.IsZero() {
		return nil, errors.AuthenticationRequired("resolution requires an actor scope")
	}
	logger := observability.Logger(ctx)

	detection := Detect(req.Message)
	if detection.IsEditIntent && len([]rune(detection.Candidate)) >= MinTitleLength {
		logger.Debug("edit intent detected",
			slog.String("rule", detection.Rule),
			slog.String("candidate", detection.Candidate),
		)
		action, err := r.resolveTitle(ctx, detection.Candidate, req.Scope)
		if err != nil {
			return nil, err
		}
		return r.finish(ctx, action), nil
	}

	hint := detection.Candidate
	if hint == "" {
		hint = ExtractCandidateTitle(req.Message)
	}

	x, err := r.extractor.Extract(ctx, req.Message, req.History, hint)
	if err != nil {
		return nil, err
	}
	if x.Failed {
		return r.finish(ctx, &ResolvedAction{Type: ActionNone, Intent: IntentNone, ExtractionFailed: true}), nil
	}

	action, err := r.reconcile(ctx, req, x, hint)
	if err != nil {
		return nil, err
	}
	action.Intent = x.Intent
	action.Message = x.Message
	return r.finish(ctx, action), nil
}

func (r *Resolver) reconcile(ctx context.Context, req *ResolveRequest, x *Extraction, hint string) (*ResolvedAction, error) {
	switch {
	case x.Intent.IsModification():
		if id := x.ExplicitEventID(); id != nil {
			ok, err := r.matcher.VerifyEventID(ctx, *id, req.Scope)
			if err != nil {
				return nil, err
			}
			if ok {
				return r.editAction(ctx, *id, x.Event, req.Base)
			}
			observability.Logger(ctx).Info("model named an event outside the actor scope", slog.Int("event_id", int(*id)))
		}

		title := hint
		if x.Event != nil && x.Event.Title != "" {
			title = x.Event.Title
		}
		if len([]rune(strings.TrimSpace(title))) < MinTitleLength {
			return &ResolvedAction{Type: ActionNone}, nil
		}
		action, err := r.resolveTitle(ctx, title, req.Scope)
		if err != nil || action.Type != ActionEdit {
			return action, err
		}
		return r.editAction(ctx, *action.EventID, x.Event, req.Base)

	case x.Intent == IntentCreateEvent && x.Event != nil:
		preview, err := r.previews.Build(ctx, x.Event, req.Base)
		if err != nil {
			return nil, err
		}
		return &ResolvedAction{Type: ActionPreview, Preview: preview}, nil

	default:
		return &ResolvedAction{Type: ActionNone}, nil
	}
}

// resolveTitle maps a candidate title to EDIT on a hit and SEARCH otherwise.
func (r *Resolver) resolveTitle(ctx context.Context, title string, scope store.OwnerScope) (*ResolvedAction, error) {
	id, err := r.matcher.FindEventID(ctx, title, scope)
	if err != nil {
		return nil, err
	}
	if id != nil {
		return &ResolvedAction{Type: ActionEdit, EventID: id}, nil
	}

	candidates, err := r.matcher.SearchEvents(ctx, title, scope, 0)
	if err != nil {
		return nil, err
	}
	return &ResolvedAction{Type: ActionSearch, SearchTerm: title, Candidates: candidates}, nil
}

// editAction carries the model's changed fields as a preview when it named a date.
func (r *Resolver) editAction(ctx context.Context, id int32, ev *ExtractedEvent, base time.Time) (*ResolvedAction, error) {
	action := &ResolvedAction{Type: ActionEdit, EventID: &id}
	if ev == nil || ev.Date == "" {
		return action, nil
	}
	preview, err := r.previews.Build(ctx, ev, base)
	if err != nil {
		return nil, err
	}
	preview.ID = &id
	action.Preview = preview
	return action, nil
}

func (r *Resolver) finish(ctx context.Context, action *ResolvedAction) *ResolvedAction {
	if action.Intent == "" {
		action.Intent = IntentNone
	}
	r.metrics.RecordResolution(string(action.Type))
	observability.Logger(ctx).Info("message resolved",
		slog.String(observability.LogFieldAction, string(action.Type)),
		slog.String("intent", string(action.Intent)),
		slog.Int("candidates", len(action.Candidates)),
	)
	return action
}

// ExtractPreviews extracts every event in text and returns a preview for each
// one that survives validation. Events whose end is not after their start are
// skipped and counted in skipped, as are events missing mandatory fields.
func (r *Resolver) ExtractPreviews(ctx context.Context, text string, base time.Time) (previews []*EventPreview, skipped int, err error) {
	batch, err := r.extractor.ExtractEvents(ctx, text)
	if err != nil {
		return nil, 0, err
	}
	if batch.Failed {
		return nil, 0, nil
	}

	skipped = batch.Dropped
	for _, ev := range batch.Events {
		preview, err := r.previews.Build(ctx, ev, base)
		if err != nil {
			return nil, 0, err
		}
		if preview.HasFlag(FlagEndNotAfterStart) {
			skipped++
			observability.Logger(ctx).Info("skipping extracted event with end before start",
				slog.String("title", ev.Title),
			)
			continue
		}
		previews = append(previews, preview)
	}
	return previews, skipped, nil
}

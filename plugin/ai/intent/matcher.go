package intent

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/profile"
	"github.com/hrygo/familycal/store"
)

// MinTitleLength is the shortest trimmed title a lookup is issued for.
const MinTitleLength = 2

// minWordLength is the shortest word used by the per-word fallback.
const minWordLength = 3

// EventFinder is the slice of the store the matcher reads from.
type EventFinder interface {
	ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error)
}

// TitleMatcher resolves free-text titles against stored events in one owner scope.
type TitleMatcher struct {
	finder      EventFinder
	searchLimit int
}

// NewTitleMatcher creates a matcher. searchLimit is the default candidate count
// for SearchEvents and is capped at profile.MaxSearchLimit.
func NewTitleMatcher(finder EventFinder, searchLimit int) *TitleMatcher {
	return &TitleMatcher{finder: finder, searchLimit: clampLimit(searchLimit)}
}

// FindEventID returns the id of the event searchTitle most likely names, or nil.
// Stages run in order and stop at the first hit: exact title, title substring,
// then each word longer than two characters as a substring. Within a stage the
// latest-starting event wins.
func (m *TitleMatcher) FindEventID(ctx context.Context, searchTitle string, scope store.OwnerScope) (*int32, error) {
	title := strings.TrimSpace(searchTitle)
	if len([]rune(title)) < MinTitleLength {
		return nil, nil
	}
	if scope.IsZero() {
		return nil, errors.AuthenticationRequired("event lookup requires an owner scope")
	}

	event, err := m.first(ctx, &store.FindEvent{Scope: scope, TitleEquals: &title})
	if err != nil || event != nil {
		return eventID(event), err
	}

	event, err = m.first(ctx, &store.FindEvent{Scope: scope, TitleContains: &title})
	if err != nil || event != nil {
		return eventID(event), err
	}

	for _, word := range strings.Fields(title) {
		if len([]rune(word)) < minWordLength {
			continue
		}
		event, err = m.first(ctx, &store.FindEvent{Scope: scope, TitleContains: &word})
		if err != nil || event != nil {
			return eventID(event), err
		}
	}
	return nil, nil
}

// SearchEvents returns up to limit events whose title contains searchTerm,
// latest start first. A non-positive limit uses the matcher default.
func (m *TitleMatcher) SearchEvents(ctx context.Context, searchTerm string, scope store.OwnerScope, limit int) ([]*store.Event, error) {
	term := strings.TrimSpace(searchTerm)
	if len([]rune(term)) < MinTitleLength {
		return nil, nil
	}
	if scope.IsZero() {
		return nil, errors.AuthenticationRequired("event search requires an owner scope")
	}
	if limit <= 0 {
		limit = m.searchLimit
	}
	limit = clampLimit(limit)

	return m.list(ctx, &store.FindEvent{Scope: scope, TitleContains: &term, Limit: &limit})
}

func (m *TitleMatcher) first(ctx context.Context, find *store.FindEvent) (*store.Event, error) {
	limit := 1
	find.Limit = &limit
	events, err := m.list(ctx, find)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return events[0], nil
}

func (m *TitleMatcher) list(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	normal := store.Normal
	find.RowStatus = &normal
	find.OrderByStartDesc = true

	events, err := m.finder.ListEvents(ctx, find)
	if err != nil {
		if stderrors.Is(err, store.ErrEmptyScope) {
			return nil, errors.AuthenticationRequired("event lookup requires an owner scope")
		}
		return nil, errors.FromUpstream("failed to query events", err)
	}
	return events, nil
}

func eventID(event *store.Event) *int32 {
	if event == nil {
		return nil
	}
	id := event.ID
	return &id
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 5
	}
	if limit > profile.MaxSearchLimit {
		return profile.MaxSearchLimit
	}
	return limit
}

// VerifyEventID reports whether id names a live event inside scope.
func (m *TitleMatcher) VerifyEventID(ctx context.Context, id int32, scope store.OwnerScope) (bool, error) {
	if scope.IsZero() {
		return false, errors.AuthenticationRequired("event lookup requires an owner scope")
	}
	event, err := m.first(ctx, &store.FindEvent{ID: &id, Scope: scope})
	if err != nil {
		return false, err
	}
	return event != nil, nil
}

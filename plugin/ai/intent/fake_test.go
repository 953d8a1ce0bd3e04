package intent

import (
	"context"
	"sort"
	"strings"

	"github.com/hrygo/familycal/plugin/ai"
	"github.com/hrygo/familycal/store"
)

// memoryFinder is an in-memory EventFinder that records every query.
type memoryFinder struct {
	events  []*store.Event
	queries []store.FindEvent
	err     error
}

func (f *memoryFinder) add(id int32, title string, startTs int64) {
	f.events = append(f.events, &store.Event{ID: id, CreatorID: 1, Title: title, StartTs: startTs, RowStatus: store.Normal})
}

func (f *memoryFinder) ListEvents(_ context.Context, find *store.FindEvent) ([]*store.Event, error) {
	f.queries = append(f.queries, *find)
	if f.err != nil {
		return nil, f.err
	}
	if find.Scope.IsZero() {
		return nil, store.ErrEmptyScope
	}

	var out []*store.Event
	for _, e := range f.events {
		if !inScope(e, find.Scope) {
			continue
		}
		if find.ID != nil && e.ID != *find.ID {
			continue
		}
		title := strings.ToLower(e.Title)
		if find.TitleEquals != nil && title != strings.ToLower(*find.TitleEquals) {
			continue
		}
		if find.TitleContains != nil && !strings.Contains(title, strings.ToLower(*find.TitleContains)) {
			continue
		}
		if find.RowStatus != nil && e.RowStatus != *find.RowStatus {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if find.OrderByStartDesc {
			return out[i].StartTs > out[j].StartTs
		}
		return out[i].StartTs < out[j].StartTs
	})
	if find.Limit != nil && len(out) > *find.Limit {
		out = out[:*find.Limit]
	}
	return out, nil
}

func inScope(e *store.Event, scope store.OwnerScope) bool {
	if scope.IsFamily() {
		return e.FamilyID != nil && *e.FamilyID == *scope.FamilyID
	}
	return e.CreatorID == scope.UserID && e.FamilyID == nil
}

// scriptedLLM replies with a fixed string and records the messages it was sent.
type scriptedLLM struct {
	reply    string
	err      error
	calls    int
	messages []ai.Message
}

func (s *scriptedLLM) ChatJSON(_ context.Context, messages []ai.Message) (string, error) {
	s.calls++
	s.messages = messages
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

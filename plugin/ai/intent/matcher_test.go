package intent

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/store"
)

var personalScope = store.OwnerScope{UserID: 1}

func TestFindEventIDShortTitleIssuesNoQuery(t *testing.T) {
	finder := &memoryFinder{}
	finder.add(1, "A", 100)
	m := NewTitleMatcher(finder, 5)

	for _, title := range []string{"", " ", "a", "  x  ", "日"} {
		id, err := m.FindEventID(context.Background(), title, personalScope)
		require.NoError(t, err)
		assert.Nil(t, id, title)
	}
	assert.Empty(t, finder.queries)
}

func TestFindEventIDStages(t *testing.T) {
	finder := &memoryFinder{}
	finder.add(1, "Soccer Practice Extra", 300)
	finder.add(2, "Soccer", 100)
	finder.add(3, "Piano Lesson", 200)
	finder.add(4, "piano lesson", 400)
	finder.add(5, "Dentist Appointment", 50)
	m := NewTitleMatcher(finder, 5)

	tests := []struct {
		name    string
		title   string
		want    int32
		queries int
	}{
		{"exact beats substring", "Soccer", 2, 1},
		{"exact ignores case and picks latest", "PIANO LESSON", 4, 1},
		{"substring", "practice", 1, 2},
		{"per word fallback", "the dentist visit", 5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder.queries = nil
			id, err := m.FindEventID(context.Background(), tt.title, personalScope)
			require.NoError(t, err)
			require.NotNil(t, id)
			assert.Equal(t, tt.want, *id)
			assert.Len(t, finder.queries, tt.queries)
		})
	}
}

func TestFindEventIDPerWordSkipsShortWords(t *testing.T) {
	finder := &memoryFinder{}
	finder.add(1, "Zoo trip with Go club", 100)
	m := NewTitleMatcher(finder, 5)

	id, err := m.FindEventID(context.Background(), "go to", personalScope)
	require.NoError(t, err)
	assert.Nil(t, id)
	// exact and substring only; both words are too short for the per-word stage.
	assert.Len(t, finder.queries, 2)
}

func TestFindEventIDQueriesAreScoped(t *testing.T) {
	finder := &memoryFinder{}
	m := NewTitleMatcher(finder, 5)
	familyID := int32(9)
	scope := store.OwnerScope{UserID: 1, FamilyID: &familyID}

	_, err := m.FindEventID(context.Background(), "soccer", scope)
	require.NoError(t, err)
	require.NotEmpty(t, finder.queries)
	for _, q := range finder.queries {
		assert.Equal(t, scope, q.Scope)
		assert.True(t, q.OrderByStartDesc)
		require.NotNil(t, q.RowStatus)
		assert.Equal(t, store.Normal, *q.RowStatus)
	}
}

func TestFindEventIDErrors(t *testing.T) {
	m := NewTitleMatcher(&memoryFinder{}, 5)
	_, err := m.FindEventID(context.Background(), "soccer", store.OwnerScope{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthenticationRequired))

	cause := stderrors.New("connection refused")
	m = NewTitleMatcher(&memoryFinder{err: cause}, 5)
	_, err = m.FindEventID(context.Background(), "soccer", personalScope)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamUnavailable))
	assert.ErrorIs(t, err, cause)
}

func TestSearchEvents(t *testing.T) {
	finder := &memoryFinder{}
	for i := int32(1); i <= 12; i++ {
		finder.add(i, "Swim class", int64(i))
	}
	finder.add(20, "Soccer", 100)
	m := NewTitleMatcher(finder, 3)

	got, err := m.SearchEvents(context.Background(), "swim", personalScope, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int32(12), got[0].ID)

	got, err = m.SearchEvents(context.Background(), "swim", personalScope, 50)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	got, err = m.SearchEvents(context.Background(), "s", personalScope, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

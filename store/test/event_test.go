package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/familycal/store"
)

func createTestingEvent(ctx context.Context, t *testing.T, ts *store.Store, uid string, creatorID int32, familyID *int32, title string, start time.Time) *store.Event {
	t.Helper()
	event, err := ts.CreateEvent(ctx, &store.Event{
		UID:       uid,
		CreatorID: creatorID,
		FamilyID:  familyID,
		Title:     title,
		StartTs:   start.Unix(),
		Timezone:  "UTC",
	})
	require.NoError(t, err)
	return event
}

func TestEventStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	start := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	event := createTestingEvent(ctx, t, ts, "evt-1", 1, nil, "Dentist Appointment", start)
	assert.NotZero(t, event.ID)
	assert.Equal(t, store.Normal, event.RowStatus)
	assert.NotZero(t, event.CreatedTs)

	personal := store.OwnerScope{UserID: 1}
	got, err := ts.GetEvent(ctx, &store.FindEvent{ID: &event.ID, Scope: personal})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Dentist Appointment", got.Title)
	assert.Nil(t, got.EndTs)
	assert.False(t, got.IsRecurring())
	assert.True(t, got.StartTime().Equal(start))

	newTitle := "Dentist Checkup"
	end := start.Add(time.Hour).Unix()
	require.NoError(t, ts.UpdateEvent(ctx, &store.UpdateEvent{
		ID:    event.ID,
		Scope: personal,
		Title: &newTitle,
		EndTs: &end,
	}))
	got, err = ts.GetEvent(ctx, &store.FindEvent{ID: &event.ID, Scope: personal})
	require.NoError(t, err)
	assert.Equal(t, newTitle, got.Title)
	require.NotNil(t, got.EndTs)
	assert.Equal(t, end, *got.EndTs)

	require.NoError(t, ts.DeleteEvent(ctx, &store.DeleteEvent{ID: event.ID, Scope: personal}))
	got, err = ts.GetEvent(ctx, &store.FindEvent{ID: &event.ID, Scope: personal})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEventStoreScopes(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	start := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	familyID := int32(7)

	mine := createTestingEvent(ctx, t, ts, "evt-mine", 1, nil, "Yoga", start)
	other := createTestingEvent(ctx, t, ts, "evt-other", 2, nil, "Yoga", start)
	shared := createTestingEvent(ctx, t, ts, "evt-shared", 2, &familyID, "Family Dinner", start)

	list, err := ts.ListEvents(ctx, &store.FindEvent{Scope: store.OwnerScope{UserID: 1}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	family := store.OwnerScope{UserID: 1, FamilyID: &familyID}
	list, err = ts.ListEvents(ctx, &store.FindEvent{Scope: family})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shared.ID, list[0].ID)
	require.NotNil(t, list[0].FamilyID)
	assert.Equal(t, familyID, *list[0].FamilyID)

	t.Run("cross scope update is not found", func(t *testing.T) {
		title := "Hijacked"
		err := ts.UpdateEvent(ctx, &store.UpdateEvent{ID: other.ID, Scope: store.OwnerScope{UserID: 1}, Title: &title})
		assert.ErrorIs(t, err, store.ErrEventNotFound)
	})

	t.Run("cross scope delete is not found", func(t *testing.T) {
		err := ts.DeleteEvent(ctx, &store.DeleteEvent{ID: other.ID, Scope: store.OwnerScope{UserID: 1}})
		assert.ErrorIs(t, err, store.ErrEventNotFound)
	})

	t.Run("empty scope is rejected", func(t *testing.T) {
		_, err := ts.ListEvents(ctx, &store.FindEvent{})
		assert.ErrorIs(t, err, store.ErrEmptyScope)
		assert.ErrorIs(t, ts.DeleteEvent(ctx, &store.DeleteEvent{ID: mine.ID}), store.ErrEmptyScope)
	})
}

func TestEventStoreTitleFilters(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	scope := store.OwnerScope{UserID: 1}
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	older := createTestingEvent(ctx, t, ts, "evt-a", 1, nil, "Team Meeting", base)
	newer := createTestingEvent(ctx, t, ts, "evt-b", 1, nil, "team meeting", base.Add(48*time.Hour))
	createTestingEvent(ctx, t, ts, "evt-c", 1, nil, "100% Fun_Day", base.Add(24*time.Hour))

	t.Run("exact match ignores case", func(t *testing.T) {
		title := "TEAM MEETING"
		list, err := ts.ListEvents(ctx, &store.FindEvent{Scope: scope, TitleEquals: &title, OrderByStartDesc: true})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
	})

	t.Run("contains match", func(t *testing.T) {
		term := "Meet"
		list, err := ts.ListEvents(ctx, &store.FindEvent{Scope: scope, TitleContains: &term})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("like metacharacters are literal", func(t *testing.T) {
		term := "0% f"
		list, err := ts.ListEvents(ctx, &store.FindEvent{Scope: scope, TitleContains: &term})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "100% Fun_Day", list[0].Title)

		term = "%"
		list, err = ts.ListEvents(ctx, &store.FindEvent{Scope: scope, TitleContains: &term})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("limit and start filter", func(t *testing.T) {
		limit := 1
		after := base.Add(time.Hour).Unix()
		list, err := ts.ListEvents(ctx, &store.FindEvent{Scope: scope, StartTsAfter: &after, Limit: &limit})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "100% Fun_Day", list[0].Title)
	})
}

func TestEventStoreNonASCIITitles(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	scope := store.OwnerScope{UserID: 1}
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	event := createTestingEvent(ctx, t, ts, "evt-u", 1, nil, "Élodie's Ballet", base)

	title := "élodie's ballet"
	list, err := ts.ListEvents(ctx, &store.FindEvent{Scope: scope, TitleEquals: &title})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, event.ID, list[0].ID)

	term := "ÉLODIE"
	list, err = ts.ListEvents(ctx, &store.FindEvent{Scope: scope, TitleContains: &term})
	require.NoError(t, err)
	require.Len(t, list, 1)

	renamed := "Ärztin Termin"
	require.NoError(t, ts.UpdateEvent(ctx, &store.UpdateEvent{ID: event.ID, Scope: scope, Title: &renamed}))
	term = "ärztin"
	list, err = ts.ListEvents(ctx, &store.FindEvent{Scope: scope, TitleContains: &term})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ärztin Termin", list[0].Title)
}

func TestEventStoreRecurrence(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	rule := "FREQ=WEEKLY;BYDAY=TU"
	text := "every Tuesday"

	event, err := ts.CreateEvent(ctx, &store.Event{
		UID:            "evt-rec",
		CreatorID:      3,
		Title:          "Piano Lesson",
		StartTs:        time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC).Unix(),
		Timezone:       "UTC",
		RecurrenceRule: &rule,
		RecurrenceText: &text,
	})
	require.NoError(t, err)

	got, err := ts.GetEvent(ctx, &store.FindEvent{ID: &event.ID, Scope: store.OwnerScope{UserID: 3}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsRecurring())
	assert.Equal(t, rule, *got.RecurrenceRule)
	assert.Equal(t, text, *got.RecurrenceText)
}

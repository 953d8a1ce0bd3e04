package intent

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/plugin/ai/aitime"
	"github.com/hrygo/familycal/store"
)

func newTestResolver(finder *memoryFinder, llm *scriptedLLM) *Resolver {
	return NewResolver(
		NewTitleMatcher(finder, 5),
		newTestExtractor(llm),
		newTestBuilder("UTC", aitime.FallbackTomorrow),
	)
}

func resolve(t *testing.T, r *Resolver, message string) *ResolvedAction {
	t.Helper()
	action, err := r.Resolve(context.Background(), &ResolveRequest{Message: message, Scope: personalScope, Base: fixedNow})
	require.NoError(t, err)
	return action
}

func TestResolveCreatePreview(t *testing.T) {
	llm := &scriptedLLM{reply: `{"message":"Here's the event","intent":"create_event","event":{"title":"Dance","date":"2025-03-21","start_time":"4:00 PM"}}`}
	action := resolve(t, newTestResolver(&memoryFinder{}, llm), "Dance class Friday at 4")

	assert.Equal(t, ActionPreview, action.Type)
	assert.Equal(t, IntentCreateEvent, action.Intent)
	assert.Equal(t, "Here's the event", action.Message)
	require.NotNil(t, action.Preview)
	assert.Nil(t, action.Preview.ID)
	assert.Equal(t, "2025-03-21", action.Preview.Date)
	assert.Equal(t, "16:00", action.Preview.StartTime)
	assert.Equal(t, 16, action.Preview.Start.Hour())
}

func TestResolveNone(t *testing.T) {
	llm := &scriptedLLM{reply: `{"message":"Happy to help!","intent":"none"}`}
	action := resolve(t, newTestResolver(&memoryFinder{}, llm), "thanks so much")

	assert.Equal(t, ActionNone, action.Type)
	assert.Equal(t, "Happy to help!", action.Message)
	assert.Nil(t, action.Preview)
	assert.Equal(t, 1, llm.calls)
}

func TestResolveCreateWithoutEventIsNone(t *testing.T) {
	llm := &scriptedLLM{reply: `{"message":"What should I call it?","intent":"create_event"}`}
	action := resolve(t, newTestResolver(&memoryFinder{}, llm), "add something saturday")
	assert.Equal(t, ActionNone, action.Type)
	assert.Equal(t, IntentCreateEvent, action.Intent)
}

func TestResolveDetectorPath(t *testing.T) {
	t.Run("hit edits without calling the model", func(t *testing.T) {
		finder := &memoryFinder{}
		finder.add(3, "Dentist Appointment", 100)
		llm := &scriptedLLM{}
		action := resolve(t, newTestResolver(finder, llm), "Can you update my dentist appointment")

		assert.Equal(t, ActionEdit, action.Type)
		require.NotNil(t, action.EventID)
		assert.Equal(t, int32(3), *action.EventID)
		assert.Zero(t, llm.calls)
	})

	t.Run("miss becomes search", func(t *testing.T) {
		finder := &memoryFinder{}
		finder.add(1, "Piano Lesson", 100)
		llm := &scriptedLLM{}
		action := resolve(t, newTestResolver(finder, llm), "reschedule soccer practice to Friday 5pm")

		assert.Equal(t, ActionSearch, action.Type)
		assert.Equal(t, "soccer practice", action.SearchTerm)
		assert.Empty(t, action.Candidates)
		assert.Nil(t, action.EventID)
		assert.Zero(t, llm.calls)
	})

	t.Run("pronoun falls through to the model", func(t *testing.T) {
		llm := &scriptedLLM{reply: `{"message":"Which event?","intent":"update_event"}`}
		action := resolve(t, newTestResolver(&memoryFinder{}, llm), "update it to 6pm")

		assert.Equal(t, ActionNone, action.Type)
		assert.Equal(t, "Which event?", action.Message)
		assert.Equal(t, 1, llm.calls)
	})
}

func TestResolveModificationReconcile(t *testing.T) {
	otherFamily := int32(77)

	newFinder := func() *memoryFinder {
		f := &memoryFinder{}
		f.add(10, "Soccer Practice", 500)
		f.add(11, "Swim Meet", 400)
		f.events = append(f.events, &store.Event{ID: 99, CreatorID: 2, FamilyID: &otherFamily, Title: "Other family soccer", RowStatus: store.Normal})
		return f
	}

	tests := []struct {
		name       string
		message    string
		reply      string
		wantType   ActionType
		wantID     int32
		wantSearch string
		preview    bool
	}{
		{
			name:     "explicit id wins over title",
			message:  "the swim thing is now at 5",
			reply:    `{"intent":"update_event","existing_event_id":10,"event":{"title":"Swim Meet"}}`,
			wantType: ActionEdit,
			wantID:   10,
		},
		{
			name:     "event id with new date carries a preview",
			message:  "Swim is Saturday now",
			reply:    `{"intent":"edit_event","event":{"id":"11","title":"Swim Meet","date":"2025-03-22","start_time":"9am"}}`,
			wantType: ActionEdit,
			wantID:   11,
			preview:  true,
		},
		{
			name:     "id outside scope falls back to title",
			message:  "soccer moved",
			reply:    `{"intent":"update_event","existing_event_id":99,"event":{"title":"soccer"}}`,
			wantType: ActionEdit,
			wantID:   10,
		},
		{
			name:     "title lookup hit",
			message:  "the swim meet starts later",
			reply:    `{"intent":"update_event","event":{"title":"swim meet"}}`,
			wantType: ActionEdit,
			wantID:   11,
		},
		{
			name:       "title lookup miss searches",
			message:    "the recital starts later",
			reply:      `{"intent":"update_event","event":{"title":"Recital"}}`,
			wantType:   ActionSearch,
			wantSearch: "Recital",
		},
		{
			name:       "hint used when model gives no title",
			message:    `"Book Club" starts later`,
			reply:      `{"intent":"update_event"}`,
			wantType:   ActionSearch,
			wantSearch: "Book Club",
		},
		{
			name:     "nothing to go on",
			message:  "it starts later",
			reply:    `{"intent":"update_event"}`,
			wantType: ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{reply: tt.reply}
			action := resolve(t, newTestResolver(newFinder(), llm), tt.message)

			assert.Equal(t, tt.wantType, action.Type)
			if tt.wantID != 0 {
				require.NotNil(t, action.EventID)
				assert.Equal(t, tt.wantID, *action.EventID)
			} else {
				assert.Nil(t, action.EventID)
			}
			assert.Equal(t, tt.wantSearch, action.SearchTerm)
			if tt.preview {
				require.NotNil(t, action.Preview)
				require.NotNil(t, action.Preview.ID)
				assert.Equal(t, tt.wantID, *action.Preview.ID)
				assert.Equal(t, "2025-03-22", action.Preview.Date)
			} else {
				assert.Nil(t, action.Preview)
			}
		})
	}
}

func TestResolveHintIsSentToModel(t *testing.T) {
	llm := &scriptedLLM{reply: `{"message":"ok","intent":"none"}`}
	resolve(t, newTestResolver(&memoryFinder{}, llm), "Maya's soccer practice is at 5 now")
	require.NotEmpty(t, llm.messages)
	assert.Contains(t, llm.messages[0].Content, `"Maya soccer practice"`)
}

func TestResolveExtractionFailedDegradesToNone(t *testing.T) {
	llm := &scriptedLLM{reply: "<html>502 Bad Gateway</html>"}
	action := resolve(t, newTestResolver(&memoryFinder{}, llm), "dinner with grandma sunday")
	assert.Equal(t, ActionNone, action.Type)
	assert.True(t, action.ExtractionFailed)
	assert.Empty(t, action.Message)
}

func TestResolveErrors(t *testing.T) {
	r := newTestResolver(&memoryFinder{}, &scriptedLLM{})
	_, err := r.Resolve(context.Background(), &ResolveRequest{Message: "hi"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthenticationRequired))

	cause := stderrors.New("connection reset")
	r = newTestResolver(&memoryFinder{}, &scriptedLLM{err: cause})
	_, err = r.Resolve(context.Background(), &ResolveRequest{Message: "dinner sunday", Scope: personalScope})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamUnavailable))
	assert.ErrorIs(t, err, cause)

	finder := &memoryFinder{err: cause}
	r = newTestResolver(finder, &scriptedLLM{})
	_, err = r.Resolve(context.Background(), &ResolveRequest{Message: "edit the swim meet", Scope: personalScope})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamUnavailable))
}

func TestResolveIsRepeatable(t *testing.T) {
	llm := &scriptedLLM{reply: `{"intent":"create_event","event":{"title":"Dance","date":"2025-03-21","start_time":"16:00"}}`}
	r := newTestResolver(&memoryFinder{}, llm)
	first := resolve(t, r, "dance friday 4pm")
	second := resolve(t, r, "dance friday 4pm")
	require.NotNil(t, first.Preview)
	require.NotNil(t, second.Preview)
	assert.NotSame(t, first.Preview, second.Preview)
	assert.Equal(t, first.Preview.Start, second.Preview.Start)
}

func TestResolveRecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	llm := &scriptedLLM{reply: `{"message":"hi","intent":"none"}`}
	r := newTestResolver(&memoryFinder{}, llm).WithMetrics(metrics)
	resolve(t, r, "hello")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `familycal_resolutions_total{action="NONE"} 1`)
}

func TestExtractPreviews(t *testing.T) {
	llm := &scriptedLLM{reply: `{"events":[
		{"title":"Book fair","date":"2025-03-24","start_time":"3pm","end_time":"5pm"},
		{"title":"Backwards","date":"2025-03-25","start_time":"5pm","end_time":"3pm"},
		{"title":"Missing time","date":"2025-03-26"}
	]}`}
	r := newTestResolver(&memoryFinder{}, llm)

	previews, skipped, err := r.ExtractPreviews(context.Background(), "newsletter", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, previews, 1)
	assert.Equal(t, "Book fair", previews[0].Title)
	assert.Equal(t, "15:00", previews[0].StartTime)
	assert.Equal(t, "17:00", previews[0].EndTime)
}

func TestExtractPreviewsBaseDefaultsToNow(t *testing.T) {
	llm := &scriptedLLM{reply: `{"events":[{"title":"Zoo","date":"tomorrow","start_time":"9am"}]}`}
	r := newTestResolver(&memoryFinder{}, llm)

	previews, _, err := r.ExtractPreviews(context.Background(), "zoo trip tomorrow", time.Time{})
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, "2025-03-20", previews[0].Date)
}

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		candidate  string
		isEdit     bool
		reschedule bool
		rule       string
	}{
		{"request form", "Can you update my dentist appointment", "dentist appointment", true, false, "request_edit"},
		{"possessive", "edit Maya's soccer practice", "Maya soccer practice", true, false, "possessive_edit"},
		{"possessive curly apostrophe", "change Leo’s piano lesson to 5pm", "Leo piano lesson", true, false, "possessive_edit"},
		{"possessive time word", "update tomorrow's dinner", "dinner", true, false, "possessive_edit"},
		{"indirect form", "I need to change the swim meet on Saturday", "swim meet", true, false, "indirect_edit"},
		{"direct form", "Update soccer practice to 5pm", "soccer practice", true, false, "direct_edit"},
		{"direct with please", "please modify the book club?", "book club", true, false, "direct_edit"},
		{"lets form", "let's edit the recital details", "recital", true, false, "lets_edit"},
		{"pronoun only", "update it to 6pm", "", true, false, "direct_edit"},
		{"reschedule", "reschedule soccer practice to Friday 5pm", "soccer practice", true, true, "reschedule"},
		{"postpone", "Postpone our family dinner until next week", "family dinner", true, true, "reschedule"},
		{"possessive reschedule", "move Maya's recital to Sunday", "Maya recital", true, true, "possessive_reschedule"},
		{"push back", "push back the vet visit by an hour", "vet visit", true, true, "push_back"},
		{"move", "move swim lessons to Thursday", "swim lessons", true, true, "move"},
		{"field for title", "I want to change the location for piano lesson", "piano lesson", true, false, "indirect_edit"},
		{"field of title", "Please change the time of dance class to 5pm", "dance class", true, false, "direct_edit"},
		{"start time of title", "update the start time of the bake sale", "bake sale", true, false, "direct_edit"},
		{"field without title", "change the time to 5pm", "", true, false, "direct_edit"},
		{"change as noun", "change of plans, add swim meet Saturday 9am", "", false, false, ""},
		{"change in plans", "Change in plans: we need a babysitter Friday", "", false, false, ""},
		{"create request", "Schedule soccer practice Tuesday at 4pm", "", false, false, ""},
		{"plain chat", "thanks!", "", false, false, ""},
		{"empty", "   ", "", false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.input)
			assert.Equal(t, tt.candidate, got.Candidate)
			assert.Equal(t, tt.isEdit, got.IsEditIntent)
			assert.Equal(t, tt.reschedule, got.Reschedule)
			assert.Equal(t, tt.rule, got.Rule)
		})
	}
}

func TestDetectEditRulesWinOverReschedule(t *testing.T) {
	got := Detect("can you change the carpool and reschedule it")
	assert.Equal(t, "request_edit", got.Rule)
	assert.False(t, got.Reschedule)
	assert.Equal(t, "carpool and reschedule it", got.Candidate)
}

func TestExtractCandidateTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"from edit rule", "Can you update my dentist appointment", "dentist appointment"},
		{"quoted title", `what time is "Piano Recital" again`, "Piano Recital"},
		{"possessive phrase", "Maya's soccer practice is at 5 now", "Maya soccer practice"},
		{"nothing", "what a lovely day", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCandidateTitle(tt.input))
		})
	}
}

func TestCleanupTitle(t *testing.T) {
	assert.Equal(t, "dentist appointment", cleanupTitle(" my   dentist appointment? "))
	assert.Equal(t, "soccer practice", cleanupTitle("the soccer practice time"))
	assert.Equal(t, "", cleanupTitle("that"))
	assert.Equal(t, "", cleanupTitle("the meeting"))
	assert.Equal(t, "piano lesson", cleanupTitle("the location for piano lesson"))
	assert.Equal(t, "", cleanupTitle("the date"))
}

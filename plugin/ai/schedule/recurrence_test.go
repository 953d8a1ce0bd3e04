package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurrenceRule(t *testing.T) {
	tests := []struct {
		input    string
		expected *RecurrenceRule
	}{
		{"daily", &RecurrenceRule{Type: "daily", Interval: 1}},
		{"Every day", &RecurrenceRule{Type: "daily", Interval: 1}},
		{"every 3 days", &RecurrenceRule{Type: "daily", Interval: 3}},
		{"every weekday", &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{1, 2, 3, 4, 5}}},
		{"weekends", &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{6, 7}}},
		{"weekly", &RecurrenceRule{Type: "weekly", Interval: 1}},
		{"every week", &RecurrenceRule{Type: "weekly", Interval: 1}},
		{"every other week", &RecurrenceRule{Type: "weekly", Interval: 2}},
		{"biweekly", &RecurrenceRule{Type: "weekly", Interval: 2}},
		{"every Tuesday", &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{2}}},
		{"Mondays", &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{1}}},
		{"every Tuesday and Thursday", &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{2, 4}}},
		{"every mon, wed, and fri", &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{1, 3, 5}}},
		{"every other Saturday", &RecurrenceRule{Type: "weekly", Interval: 2, Weekdays: []int{6}}},
		{"monthly", &RecurrenceRule{Type: "monthly", Interval: 1}},
		{"monthly on the 15th", &RecurrenceRule{Type: "monthly", Interval: 1, MonthDay: 15}},
		{"the 1st of every month", &RecurrenceRule{Type: "monthly", Interval: 1, MonthDay: 1}},
		{"every 2 months", &RecurrenceRule{Type: "monthly", Interval: 2}},
		{"yearly", &RecurrenceRule{Type: "yearly", Interval: 1}},
		{"annually.", &RecurrenceRule{Type: "yearly", Interval: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRecurrenceRule(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseRecurrenceRuleUnsupported(t *testing.T) {
	for _, input := range []string{"", "sometimes", "every month on the 40th", "when it rains"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseRecurrenceRule(input)
			assert.Error(t, err)
		})
	}
}

func TestParseRecurrencePattern(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected *RecurrenceRule
	}{
		{"empty", ``, nil},
		{"null", `null`, nil},
		{"blank string", `"  "`, nil},
		{"text", `"every Tuesday"`, &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{2}}},
		{"freeform text", `"every full moon"`, &RecurrenceRule{Type: "freeform", Description: "every full moon"}},
		{
			"structured numbers",
			`{"type":"Weekly","interval":2,"weekdays":[5,1,9]}`,
			&RecurrenceRule{Type: "weekly", Interval: 2, Weekdays: []int{1, 5}},
		},
		{
			"structured names",
			`{"frequency":"weekly","days":["Tuesday","thu"]}`,
			&RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{2, 4}},
		},
		{
			"structured monthly with bounds",
			`{"type":"monthly","month_day":15,"count":6,"until":"2025-12-31"}`,
			&RecurrenceRule{Type: "monthly", Interval: 1, MonthDay: 15, Count: 6, Until: "2025-12-31"},
		},
		{
			"invalid until dropped",
			`{"type":"daily","until":"next year"}`,
			&RecurrenceRule{Type: "daily", Interval: 1},
		},
		{
			"unknown type with description",
			`{"type":"custom","description":"every weekday"}`,
			&RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{1, 2, 3, 4, 5}},
		},
		{
			"unknown type",
			`{"type":"lunar"}`,
			&RecurrenceRule{Type: "freeform", Description: "lunar"},
		},
		{"array", `[1,2]`, &RecurrenceRule{Type: "freeform", Description: "[1,2]"}},
		{"empty array", `[]`, nil},
		{"empty object", `{}`, nil},
		{"object with blank fields", `{"type":" ","description":""}`, nil},
		{"object type none", `{"type":"none"}`, nil},
		{"false", `false`, nil},
		{"true", `true`, nil},
		{"number", `0`, nil},
		{"none", `"none"`, nil},
		{"n/a", `"N/A"`, nil},
		{"does not repeat", `"Does not repeat."`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRecurrencePattern(json.RawMessage(tt.raw)))
		})
	}
}

func TestRecurrenceRuleDescribe(t *testing.T) {
	tests := []struct {
		rule     RecurrenceRule
		expected string
	}{
		{RecurrenceRule{Type: "daily", Interval: 1}, "every day"},
		{RecurrenceRule{Type: "weekly", Interval: 2, Weekdays: []int{2}}, "every other week on Tuesday"},
		{RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{1, 3, 5}}, "every week on Monday, Wednesday and Friday"},
		{RecurrenceRule{Type: "monthly", Interval: 3, MonthDay: 15}, "every 3 months on day 15"},
		{RecurrenceRule{Type: "yearly", Interval: 1, Count: 5}, "every year, 5 times"},
		{RecurrenceRule{Type: "daily", Interval: 1, Until: "2025-04-01"}, "every day, until 2025-04-01"},
		{RecurrenceRule{Type: "freeform", Description: "every full moon"}, "every full moon"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rule.Describe())
		})
	}
}

func TestRecurrenceRuleToRRule(t *testing.T) {
	// Tuesday
	dtstart := time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC)

	rule := &RecurrenceRule{Type: "weekly", Interval: 1, Weekdays: []int{2, 4}}
	rr, err := rule.ToRRule(dtstart)
	require.NoError(t, err)
	assert.Contains(t, rr, "FREQ=WEEKLY")
	assert.Contains(t, rr, "BYDAY=TU,TH")
	assert.NotContains(t, rr, "DTSTART")

	occurrences, err := Occurrences(rr, dtstart, dtstart, dtstart.AddDate(0, 0, 14), 0)
	require.NoError(t, err)
	want := []string{"2025-03-04", "2025-03-06", "2025-03-11", "2025-03-13", "2025-03-18"}
	got := make([]string, 0, len(occurrences))
	for _, o := range occurrences {
		got = append(got, o.Format("2006-01-02"))
		assert.Equal(t, 16, o.Hour())
	}
	assert.Equal(t, want, got)

	_, err = (&RecurrenceRule{Type: "freeform", Description: "whenever"}).ToRRule(dtstart)
	assert.Error(t, err)
}

func TestRecurrenceOccurrencesBounds(t *testing.T) {
	dtstart := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)

	t.Run("until is inclusive", func(t *testing.T) {
		rule := &RecurrenceRule{Type: "daily", Interval: 1, Until: "2025-02-02"}
		rr, err := rule.ToRRule(dtstart)
		require.NoError(t, err)

		occurrences, err := Occurrences(rr, dtstart, dtstart, dtstart.AddDate(1, 0, 0), 0)
		require.NoError(t, err)
		assert.Len(t, occurrences, 3)
	})

	t.Run("count", func(t *testing.T) {
		rule := &RecurrenceRule{Type: "monthly", Interval: 1, MonthDay: 15, Count: 4}
		rr, err := rule.ToRRule(dtstart)
		require.NoError(t, err)

		occurrences, err := Occurrences(rr, dtstart, dtstart, dtstart.AddDate(2, 0, 0), 0)
		require.NoError(t, err)
		require.Len(t, occurrences, 4)
		assert.Equal(t, "2025-02-15", occurrences[0].Format("2006-01-02"))
	})

	t.Run("max caps open rules", func(t *testing.T) {
		occurrences, err := Occurrences("FREQ=DAILY", dtstart, dtstart, dtstart.AddDate(5, 0, 0), 10)
		require.NoError(t, err)
		assert.Len(t, occurrences, 10)
	})

	t.Run("window far after dtstart", func(t *testing.T) {
		from := time.Date(2027, 3, 17, 0, 0, 0, 0, time.UTC)
		occurrences, err := Occurrences("FREQ=DAILY", dtstart, from, from.AddDate(0, 0, 7), 3)
		require.NoError(t, err)
		require.Len(t, occurrences, 3)
		assert.Equal(t, "2027-03-17T09:00:00Z", occurrences[0].Format(time.RFC3339))
	})

	t.Run("window before dtstart", func(t *testing.T) {
		from := dtstart.AddDate(0, 0, -10)
		occurrences, err := Occurrences("FREQ=DAILY", dtstart, from, dtstart.AddDate(0, 0, 1), 0)
		require.NoError(t, err)
		require.Len(t, occurrences, 2)
		assert.True(t, occurrences[0].Equal(dtstart))
	})

	t.Run("invalid rule", func(t *testing.T) {
		_, err := Occurrences("FREQ=SOMETIMES", dtstart, dtstart, dtstart.AddDate(0, 1, 0), 0)
		assert.Error(t, err)
	})
}

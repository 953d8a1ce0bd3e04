// Package schedule provides recurrence handling for extracted events.
package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Recurrence types.
const (
	RecurrenceTypeDaily   = "daily"
	RecurrenceTypeWeekly  = "weekly"
	RecurrenceTypeMonthly = "monthly"
	RecurrenceTypeYearly  = "yearly"
	// RecurrenceTypeFreeform carries a description that could not be turned into a rule.
	RecurrenceTypeFreeform = "freeform"
)

// MaxOccurrences caps expansion of open-ended rules.
const MaxOccurrences = 500

// RecurrenceRule represents a simplified recurrence rule.
type RecurrenceRule struct {
	Type     string `json:"type"`                // daily, weekly, monthly, yearly, freeform
	Interval int    `json:"interval,omitempty"`  // Every N days/weeks/months/years
	Weekdays []int  `json:"weekdays,omitempty"`  // Only for type="weekly": 1=Mon .. 7=Sun
	MonthDay int    `json:"month_day,omitempty"` // Only for type="monthly": day of month (1-31)
	Count    int    `json:"count,omitempty"`     // Stop after N occurrences
	Until    string `json:"until,omitempty"`     // Last day, YYYY-MM-DD
	// Description is the original text for freeform rules.
	Description string `json:"description,omitempty"`
}

var weekdayNames = map[string]int{
	"monday": 1, "mon": 1, "mondays": 1,
	"tuesday": 2, "tue": 2, "tues": 2, "tuesdays": 2,
	"wednesday": 3, "wed": 3, "wednesdays": 3,
	"thursday": 4, "thu": 4, "thur": 4, "thurs": 4, "thursdays": 4,
	"friday": 5, "fri": 5, "fridays": 5,
	"saturday": 6, "sat": 6, "saturdays": 6,
	"sunday": 7, "sun": 7, "sundays": 7,
}

var weekdayLabels = []string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var numberWords = map[string]int{
	"other": 2, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
}

var ordinalSuffix = regexp.MustCompile(`(st|nd|rd|th)$`)

const weekdayList = `(?:mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)[a-z]*`

// recurrence patterns for natural language, matched in order.
var recurrencePatterns = []struct {
	pattern *regexp.Regexp
	handler func(matches []string) *RecurrenceRule
}{
	// daily / every day
	{
		regexp.MustCompile(`^(?:daily|every\s?day|each day)$`),
		func(_ []string) *RecurrenceRule {
			return &RecurrenceRule{Type: RecurrenceTypeDaily, Interval: 1}
		},
	},
	// every weekday
	{
		regexp.MustCompile(`^(?:every|each)\s+(?:week\s?day|weekday)s?$|^weekdays$`),
		func(_ []string) *RecurrenceRule {
			return &RecurrenceRule{Type: RecurrenceTypeWeekly, Interval: 1, Weekdays: []int{1, 2, 3, 4, 5}}
		},
	},
	// every weekend
	{
		regexp.MustCompile(`^(?:every|each)\s+weekend$|^weekends$`),
		func(_ []string) *RecurrenceRule {
			return &RecurrenceRule{Type: RecurrenceTypeWeekly, Interval: 1, Weekdays: []int{6, 7}}
		},
	},
	// every Tuesday and Thursday, every other Monday, mondays
	{
		regexp.MustCompile(`^(?:(?:every|each|on)\s+(?:(other|\d+(?:st|nd|rd|th)?)\s+)?)?(` + weekdayList + `(?:\s*(?:,|and|&)\s*(?:and\s+)?` + weekdayList + `)*)$`),
		func(matches []string) *RecurrenceRule {
			weekdays := parseMultipleWeekdays(matches[2])
			if len(weekdays) == 0 {
				return nil
			}
			return &RecurrenceRule{Type: RecurrenceTypeWeekly, Interval: parseInterval(matches[1]), Weekdays: weekdays}
		},
	},
	// every N days / weeks / months / years
	{
		regexp.MustCompile(`^every\s+(\d+|other|two|three|four|five|six)\s+(day|week|month|year)s?$`),
		func(matches []string) *RecurrenceRule {
			return &RecurrenceRule{Type: unitType(matches[2]), Interval: parseInterval(matches[1])}
		},
	},
	// monthly on the 15th, every month on the 1st, on the 3rd of every month
	{
		regexp.MustCompile(`^(?:monthly|every\s+month)\s+on\s+the\s+(\d{1,2})(?:st|nd|rd|th)?$|^(?:on\s+)?the\s+(\d{1,2})(?:st|nd|rd|th)?\s+of\s+(?:every|each)\s+month$`),
		func(matches []string) *RecurrenceRule {
			day := parseInt(matches[1] + matches[2])
			if day < 1 || day > 31 {
				return nil
			}
			return &RecurrenceRule{Type: RecurrenceTypeMonthly, Interval: 1, MonthDay: day}
		},
	},
	// weekly, monthly, yearly, every week
	{
		regexp.MustCompile(`^(?:(weekly|monthly|yearly|annually)|every\s+(week|month|year))$`),
		func(matches []string) *RecurrenceRule {
			unit := matches[1] + matches[2]
			switch unit {
			case "weekly":
				unit = "week"
			case "monthly":
				unit = "month"
			case "yearly", "annually":
				unit = "year"
			}
			return &RecurrenceRule{Type: unitType(unit), Interval: 1}
		},
	},
	// biweekly
	{
		regexp.MustCompile(`^(?:bi-?weekly|fortnightly)$`),
		func(_ []string) *RecurrenceRule {
			return &RecurrenceRule{Type: RecurrenceTypeWeekly, Interval: 2}
		},
	},
}

// ParseRecurrenceRule parses an English recurrence description.
// Examples:
//   - "daily" → {Type: "daily", Interval: 1}
//   - "every 3 days" → {Type: "daily", Interval: 3}
//   - "every Tuesday and Thursday" → {Type: "weekly", Weekdays: [2, 4]}
//   - "every other week" → {Type: "weekly", Interval: 2}
//   - "monthly on the 15th" → {Type: "monthly", MonthDay: 15}
func ParseRecurrenceRule(text string) (*RecurrenceRule, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimRight(normalized, ".!")
	normalized = strings.Join(strings.Fields(normalized), " ")

	for _, p := range recurrencePatterns {
		if matches := p.pattern.FindStringSubmatch(normalized); matches != nil {
			if rule := p.handler(matches); rule != nil {
				return rule, nil
			}
		}
	}

	return nil, fmt.Errorf("unsupported recurrence pattern: %s", text)
}

// ParseRecurrencePattern accepts the recurrence_pattern value an assistant
// returns: a structured object, an English description, or nothing. Text that
// cannot be parsed is kept as a freeform rule. Nil means no recurrence,
// including booleans, numbers, empty objects and answers such as "none".
func ParseRecurrencePattern(raw json.RawMessage) *RecurrenceRule {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var scalar any
	if err := json.Unmarshal(raw, &scalar); err == nil {
		switch v := scalar.(type) {
		case bool, float64:
			return nil
		case string:
			return parseTextOrFreeform(v)
		case []any:
			if len(v) == 0 {
				return nil
			}
		}
	}

	var obj structuredPattern
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &RecurrenceRule{Type: RecurrenceTypeFreeform, Description: string(raw)}
	}
	return obj.toRule()
}

// nonRecurringAnswers are replies that mean the event happens once.
var nonRecurringAnswers = map[string]bool{
	"none": true, "no": true, "n/a": true, "na": true, "never": true, "false": true,
	"once": true, "one time": true, "one-time": true, "single": true, "-": true,
	"no recurrence": true, "not recurring": true, "does not repeat": true, "doesn't repeat": true,
}

func isNonRecurringAnswer(text string) bool {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return nonRecurringAnswers[strings.TrimRight(normalized, ".!")]
}

func parseTextOrFreeform(text string) *RecurrenceRule {
	text = strings.TrimSpace(text)
	if text == "" || isNonRecurringAnswer(text) {
		return nil
	}
	if rule, err := ParseRecurrenceRule(text); err == nil {
		return rule
	}
	return &RecurrenceRule{Type: RecurrenceTypeFreeform, Description: text}
}

// structuredPattern is the loose object shape accepted from the model.
type structuredPattern struct {
	Type        string            `json:"type"`
	Frequency   string            `json:"frequency"`
	Interval    int               `json:"interval"`
	Weekdays    []json.RawMessage `json:"weekdays"`
	Days        []json.RawMessage `json:"days"`
	MonthDay    int               `json:"month_day"`
	Count       int               `json:"count"`
	Until       string            `json:"until"`
	Description string            `json:"description"`
}

func (s structuredPattern) toRule() *RecurrenceRule {
	kind := strings.ToLower(strings.TrimSpace(s.Type))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(s.Frequency))
	}
	switch kind {
	case "day", "daily":
		kind = RecurrenceTypeDaily
	case "week", "weekly":
		kind = RecurrenceTypeWeekly
	case "month", "monthly":
		kind = RecurrenceTypeMonthly
	case "year", "yearly", "annually", "annual":
		kind = RecurrenceTypeYearly
	default:
		if strings.TrimSpace(s.Description) != "" {
			return parseTextOrFreeform(s.Description)
		}
		if kind == "" || isNonRecurringAnswer(kind) {
			return nil
		}
		return &RecurrenceRule{Type: RecurrenceTypeFreeform, Description: kind}
	}

	rule := &RecurrenceRule{
		Type:     kind,
		Interval: s.Interval,
		MonthDay: s.MonthDay,
		Count:    s.Count,
	}
	if rule.Interval <= 0 {
		rule.Interval = 1
	}
	if rule.MonthDay < 0 || rule.MonthDay > 31 {
		rule.MonthDay = 0
	}
	if rule.Count < 0 {
		rule.Count = 0
	}
	if _, err := time.Parse("2006-01-02", s.Until); err == nil {
		rule.Until = s.Until
	}

	days := s.Weekdays
	if len(days) == 0 {
		days = s.Days
	}
	rule.Weekdays = parseWeekdayValues(days)
	return rule
}

// parseWeekdayValues accepts 1-7 numbers or weekday names.
func parseWeekdayValues(values []json.RawMessage) []int {
	seen := map[int]bool{}
	for _, v := range values {
		var n int
		if err := json.Unmarshal(v, &n); err == nil {
			if n >= 1 && n <= 7 {
				seen[n] = true
			}
			continue
		}
		var name string
		if err := json.Unmarshal(v, &name); err == nil {
			if day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
				seen[day] = true
			}
		}
	}
	return sortedKeys(seen)
}

// IsFreeform reports whether the rule only carries a description.
func (r *RecurrenceRule) IsFreeform() bool {
	return r.Type == RecurrenceTypeFreeform
}

// Describe renders the rule as short English text.
func (r *RecurrenceRule) Describe() string {
	if r.IsFreeform() {
		return r.Description
	}

	unit := map[string]string{
		RecurrenceTypeDaily:   "day",
		RecurrenceTypeWeekly:  "week",
		RecurrenceTypeMonthly: "month",
		RecurrenceTypeYearly:  "year",
	}[r.Type]

	var b strings.Builder
	switch {
	case r.Interval <= 1:
		b.WriteString("every " + unit)
	case r.Interval == 2:
		b.WriteString("every other " + unit)
	default:
		fmt.Fprintf(&b, "every %d %ss", r.Interval, unit)
	}

	if len(r.Weekdays) > 0 {
		labels := make([]string, 0, len(r.Weekdays))
		for _, d := range r.Weekdays {
			if d >= 1 && d <= 7 {
				labels = append(labels, weekdayLabels[d])
			}
		}
		b.WriteString(" on " + joinWithAnd(labels))
	}
	if r.MonthDay > 0 {
		fmt.Fprintf(&b, " on day %d", r.MonthDay)
	}
	if r.Count > 0 {
		fmt.Fprintf(&b, ", %d times", r.Count)
	}
	if r.Until != "" {
		b.WriteString(", until " + r.Until)
	}
	return b.String()
}

// ROption builds rrule-go options anchored at dtstart.
func (r *RecurrenceRule) ROption(dtstart time.Time) (*rrule.ROption, error) {
	if r.IsFreeform() {
		return nil, fmt.Errorf("freeform recurrence has no rule: %q", r.Description)
	}

	opt := &rrule.ROption{
		Dtstart:  dtstart,
		Interval: r.Interval,
		Count:    r.Count,
	}
	switch r.Type {
	case RecurrenceTypeDaily:
		opt.Freq = rrule.DAILY
	case RecurrenceTypeWeekly:
		opt.Freq = rrule.WEEKLY
	case RecurrenceTypeMonthly:
		opt.Freq = rrule.MONTHLY
	case RecurrenceTypeYearly:
		opt.Freq = rrule.YEARLY
	default:
		return nil, fmt.Errorf("unknown recurrence type: %s", r.Type)
	}
	if opt.Interval <= 0 {
		opt.Interval = 1
	}

	for _, d := range r.Weekdays {
		if d >= 1 && d <= 7 {
			opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(d))
		}
	}
	if r.MonthDay > 0 {
		opt.Bymonthday = []int{r.MonthDay}
	}
	if r.Until != "" {
		until, err := time.ParseInLocation("2006-01-02", r.Until, dtstart.Location())
		if err != nil {
			return nil, fmt.Errorf("invalid until date %q: %w", r.Until, err)
		}
		// Inclusive of the whole last day.
		opt.Until = until.Add(24*time.Hour - time.Second)
	}
	return opt, nil
}

// ToRRule renders the rule as an RFC 5545 RRULE value without DTSTART.
func (r *RecurrenceRule) ToRRule(dtstart time.Time) (string, error) {
	opt, err := r.ROption(dtstart)
	if err != nil {
		return "", err
	}
	// A zero Dtstart keeps DTSTART out of the rendered value.
	opt.Dtstart = time.Time{}
	rr, err := rrule.NewRRule(*opt)
	if err != nil {
		return "", fmt.Errorf("invalid recurrence rule: %w", err)
	}
	return rr.String(), nil
}

// Occurrences expands a stored RRULE value anchored at dtstart and returns the
// start times inside [from, until], at most max of them. Occurrences before
// from are skipped rather than counted against max.
func Occurrences(rule string, dtstart, from, until time.Time, max int) ([]time.Time, error) {
	if max <= 0 || max > MaxOccurrences {
		max = MaxOccurrences
	}
	opt, err := rrule.StrToROptionInLocation(rule, dtstart.Location())
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule %q: %w", rule, err)
	}
	opt.Dtstart = dtstart
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", rule, err)
	}
	if from.Before(dtstart) {
		from = dtstart
	}
	if until.Before(from) {
		return nil, nil
	}

	var set rrule.Set
	set.RRule(r)
	times := set.Between(from, until, true)
	if len(times) > max {
		times = times[:max]
	}
	return times, nil
}

func toRRuleWeekday(d int) rrule.Weekday {
	switch d {
	case 1:
		return rrule.MO
	case 2:
		return rrule.TU
	case 3:
		return rrule.WE
	case 4:
		return rrule.TH
	case 5:
		return rrule.FR
	case 6:
		return rrule.SA
	default:
		return rrule.SU
	}
}

// parseMultipleWeekdays parses "tuesday and thursday", "mon, wed & fri".
func parseMultipleWeekdays(s string) []int {
	seen := map[int]bool{}
	for _, token := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '&' || r == ' '
	}) {
		if day, ok := weekdayNames[token]; ok {
			seen[day] = true
		}
	}
	return sortedKeys(seen)
}

func parseInterval(s string) int {
	if s == "" {
		return 1
	}
	if n, ok := numberWords[s]; ok {
		return n
	}
	if n := parseInt(ordinalSuffix.ReplaceAllString(s, "")); n > 0 {
		return n
	}
	return 1
}

func unitType(unit string) string {
	switch unit {
	case "day":
		return RecurrenceTypeDaily
	case "week":
		return RecurrenceTypeWeekly
	case "month":
		return RecurrenceTypeMonthly
	default:
		return RecurrenceTypeYearly
	}
}

func sortedKeys(m map[int]bool) []int {
	if len(m) == 0 {
		return nil
	}
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func joinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

// parseInt parses an integer from string, returning 0 when invalid.
func parseInt(s string) int {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return val
}

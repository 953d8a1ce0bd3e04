package aitime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Patterns for date and time parsing
var (
	// 4pm, 4 pm, 2:30PM, 16:00, 07:45:10, 9 a.m.
	clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(?::(\d{2}))?\s*([ap])?\.?\s*(?:m\.?)?$`)

	// 3/21, 3/21/2025, 3/21/25
	slashDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?$`)

	// March 21, Mar 21st, March 21, 2025
	monthFirstPattern = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)

	// 21 March, 21st of March 2025
	dayFirstPattern = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)\.?(?:,?\s+(\d{4}))?$`)

	// in 3 days, in a week, 2 weeks from now
	inOffsetPattern  = regexp.MustCompile(`^in\s+(\d+|a|an|one|two|three|four|five|six|seven)\s+(day|week|month)s?$`)
	fromNowPattern   = regexp.MustCompile(`^(\d+|a|an|one|two|three|four|five|six|seven)\s+(day|week|month)s?\s+from\s+(?:now|today)$`)
	weekdayPattern   = regexp.MustCompile(`^(?:(this|next|coming)\s+)?([a-z]+)$`)
	leadingOnPattern = regexp.MustCompile(`^(?:on|at|by)\s+`)
)

// relDateOffsets maps relative date keywords to day offsets.
var relDateOffsets = map[string]int{
	"today":                  0,
	"tonight":                0,
	"this evening":           0,
	"this afternoon":         0,
	"this morning":           0,
	"tomorrow":               1,
	"tomorrow morning":       1,
	"tomorrow afternoon":     1,
	"tomorrow evening":       1,
	"tomorrow night":         1,
	"day after tomorrow":     2,
	"the day after tomorrow": 2,
	"yesterday":              -1,
	"next week":              7,
}

// wordNums maps spelled-out small numbers to integers.
var wordNums = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7,
}

// weekdayNames maps weekday names and abbreviations to time.Weekday.
var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

// monthNames maps month names and abbreviations to time.Month.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April, "may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// Parser parses date and time fragments in one timezone.
type Parser struct {
	timezone *time.Location
}

// NewParser creates a new parser with the given timezone.
func NewParser(timezone *time.Location) *Parser {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Parser{timezone: timezone}
}

// ParseDate resolves a date fragment relative to ref. The result is midnight
// of the resolved day in the parser's timezone.
func (p *Parser) ParseDate(input string, ref time.Time) (time.Time, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	input = strings.TrimRight(input, ".!?")
	input = leadingOnPattern.ReplaceAllString(input, "")
	if input == "" {
		return time.Time{}, fmt.Errorf("empty input")
	}

	ref = ref.In(p.timezone)
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, p.timezone)

	// Try standard formats first
	if t, ok := p.tryStandardFormats(input); ok {
		return t, nil
	}

	if offset, ok := relDateOffsets[input]; ok {
		return today.AddDate(0, 0, offset), nil
	}

	if t, ok := tryRelativeOffset(input, today); ok {
		return t, nil
	}
	if t, ok := tryWeekday(input, today); ok {
		return t, nil
	}
	if t, ok := p.tryMonthDate(input, today); ok {
		return t, nil
	}
	if t, ok := p.trySlashDate(input, today); ok {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", input)
}

// tryStandardFormats attempts to parse ISO-style dates. A time component, if
// present, is dropped; times are applied separately.
func (p *Parser) tryStandardFormats(input string) (time.Time, bool) {
	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02t15:04:05",
		"2006-01-02t15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02",
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, input, p.timezone); err == nil {
			if format == time.RFC3339 {
				t = t.In(p.timezone)
			}
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.timezone), true
		}
	}
	// RFC3339 layouts are case sensitive on the T and Z markers.
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(input)); err == nil {
		t = t.In(p.timezone)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.timezone), true
	}

	return time.Time{}, false
}

// tryRelativeOffset parses "in N days", "in a week", "2 weeks from now".
func tryRelativeOffset(input string, today time.Time) (time.Time, bool) {
	matches := inOffsetPattern.FindStringSubmatch(input)
	if matches == nil {
		matches = fromNowPattern.FindStringSubmatch(input)
	}
	if matches == nil {
		return time.Time{}, false
	}

	n, ok := wordNums[matches[1]]
	if !ok {
		var err error
		if n, err = strconv.Atoi(matches[1]); err != nil {
			return time.Time{}, false
		}
	}

	switch matches[2] {
	case "day":
		return today.AddDate(0, 0, n), true
	case "week":
		return today.AddDate(0, 0, 7*n), true
	case "month":
		return today.AddDate(0, n, 0), true
	}
	return time.Time{}, false
}

// tryWeekday parses weekday expressions. A bare or "this" weekday is the next
// occurrence on or after today; "next" is that weekday in the following week.
func tryWeekday(input string, today time.Time) (time.Time, bool) {
	matches := weekdayPattern.FindStringSubmatch(input)
	if matches == nil {
		return time.Time{}, false
	}
	target, ok := weekdayNames[matches[2]]
	if !ok {
		if matches[2] == "weekend" {
			target = time.Saturday
		} else {
			return time.Time{}, false
		}
	}

	if matches[1] == "next" {
		// Monday = 0
		current := (int(today.Weekday()) + 6) % 7
		daysUntilNextMonday := 7 - current
		return today.AddDate(0, 0, daysUntilNextMonday+(int(target)+6)%7), true
	}

	diff := (int(target) - int(today.Weekday()) + 7) % 7
	return today.AddDate(0, 0, diff), true
}

// tryMonthDate parses "March 21", "21 March", with an optional year. Without a
// year the next occurrence on or after today is used.
func (p *Parser) tryMonthDate(input string, today time.Time) (time.Time, bool) {
	var monthName, dayStr, yearStr string
	if m := monthFirstPattern.FindStringSubmatch(input); m != nil {
		monthName, dayStr, yearStr = m[1], m[2], m[3]
	} else if m := dayFirstPattern.FindStringSubmatch(input); m != nil {
		dayStr, monthName, yearStr = m[1], m[2], m[3]
	} else {
		return time.Time{}, false
	}

	month, ok := monthNames[monthName]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(dayStr)
	year := today.Year()
	if yearStr != "" {
		year, _ = strconv.Atoi(yearStr)
	}

	t, ok := p.makeDate(year, month, day)
	if !ok {
		return time.Time{}, false
	}
	if yearStr == "" && t.Before(today) {
		return p.makeDate(year+1, month, day)
	}
	return t, true
}

// trySlashDate parses US-style M/D[/YYYY] dates.
func (p *Parser) trySlashDate(input string, today time.Time) (time.Time, bool) {
	m := slashDatePattern.FindStringSubmatch(input)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year := today.Year()
	switch len(m[3]) {
	case 2:
		year, _ = strconv.Atoi(m[3])
		year += 2000
	case 4:
		year, _ = strconv.Atoi(m[3])
	}
	if month < 1 || month > 12 {
		return time.Time{}, false
	}

	t, ok := p.makeDate(year, time.Month(month), day)
	if !ok {
		return time.Time{}, false
	}
	if m[3] == "" && t.Before(today) {
		return p.makeDate(year+1, time.Month(month), day)
	}
	return t, true
}

// makeDate builds a date and rejects values time.Date would normalize (Feb 30).
func (p *Parser) makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, p.timezone)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// ParseClock parses a time of day fragment.
// 12-hour input converts PM hours below 12 by adding 12 and maps 12 AM to 0.
// Missing minutes default to 0.
func ParseClock(input string) (Clock, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	input = leadingOnPattern.ReplaceAllString(input, "")
	switch input {
	case "":
		return Clock{}, false
	case "noon", "midday", "12 noon":
		return Clock{Hour: 12}, true
	case "midnight", "12 midnight":
		return Clock{}, true
	}
	input = strings.ReplaceAll(input, "o'clock", "")
	input = strings.TrimSpace(input)

	matches := clockPattern.FindStringSubmatch(input)
	if matches == nil {
		return Clock{}, false
	}
	// A trailing "m" with no meridiem letter ("4m") is not a clock.
	if matches[4] == "" && strings.HasSuffix(input, "m") {
		return Clock{}, false
	}

	hour, _ := strconv.Atoi(matches[1])
	minute := 0
	if matches[2] != "" {
		minute, _ = strconv.Atoi(matches[2])
	}
	second := 0
	if matches[3] != "" {
		second, _ = strconv.Atoi(matches[3])
	}
	if minute > 59 || second > 59 {
		return Clock{}, false
	}

	switch matches[4] {
	case "p":
		if hour < 1 || hour > 12 {
			return Clock{}, false
		}
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour < 1 || hour > 12 {
			return Clock{}, false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return Clock{}, false
		}
	}

	return Clock{Hour: hour, Minute: minute, Second: second}, true
}

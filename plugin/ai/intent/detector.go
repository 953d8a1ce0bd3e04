package intent

import (
	"regexp"
	"strings"

	"github.com/hrygo/familycal/internal/util"
)

// Detection is the outcome of running the edit-intent rules over a message.
type Detection struct {
	// Candidate is the event title the message refers to, empty when none was found.
	Candidate string
	// IsEditIntent reports that some edit or reschedule rule matched.
	IsEditIntent bool
	// Reschedule reports that the match came from the reschedule pass.
	Reschedule bool
	// Rule names the rule that matched.
	Rule string
}

// titleShape tells how a rule's capture groups form the candidate title.
type titleShape int

const (
	// shapeRemainder uses group 1 as the title.
	shapeRemainder titleShape = iota
	// shapePossessive joins the owner in group 1 with the remainder in group 2.
	shapePossessive
)

type editRule struct {
	name    string
	pattern *regexp.Regexp
	shape   titleShape
}

const editVerbs = `(?:edit|modify|update|change|fix|adjust)`

// editRules are tried in order; the first match wins.
var editRules = []editRule{
	// edit Maya's soccer practice
	{"possessive_edit", regexp.MustCompile(`(?i)\b` + editVerbs + `\s+(?:the\s+|my\s+|our\s+)?([a-z][\w-]*)(?:'|’)s\s+(.+)`), shapePossessive},
	// I need to update the dentist appointment
	{"indirect_edit", regexp.MustCompile(`(?i)\b(?:need|needs|want|wants|have|has|would like|'d like)\s+to\s+` + editVerbs + `\s+(.+)`), shapeRemainder},
	// can you change my dentist appointment
	{"request_edit", regexp.MustCompile(`(?i)\b(?:can|could|would|will)\s+(?:you|we|i)\s+(?:please\s+)?` + editVerbs + `\s+(.+)`), shapeRemainder},
	// update soccer practice
	{"direct_edit", regexp.MustCompile(`(?i)^(?:please\s+|hey\s+|ok\s+)?` + editVerbs + `\s+(.+)`), shapeRemainder},
	// let's edit the recital
	{"lets_edit", regexp.MustCompile(`(?i)\blet(?:'s|’s| me| us)\s+` + editVerbs + `\s+(.+)`), shapeRemainder},
}

// rescheduleRules run only when no edit rule matched.
var rescheduleRules = []editRule{
	{"possessive_reschedule", regexp.MustCompile(`(?i)\b(?:reschedule|postpone|move|push back|delay)\s+(?:the\s+|my\s+|our\s+)?([a-z][\w-]*)(?:'|’)s\s+(.+)`), shapePossessive},
	{"reschedule", regexp.MustCompile(`(?i)\b(?:reschedule|postpone|delay)\s+(.+)`), shapeRemainder},
	{"push_back", regexp.MustCompile(`(?i)\bpush\s+back\s+(.+)`), shapeRemainder},
	{"push", regexp.MustCompile(`(?i)\bpush\s+(.+?)\s+(?:back|forward|later|earlier)\b`), shapeRemainder},
	{"move", regexp.MustCompile(`(?i)\bmove\s+(.+?)\s+(?:to|from|up|earlier|later)\b`), shapeRemainder},
}

var (
	// trailingClause cuts the title at the first word that starts a time, reason or change clause.
	trailingClause    = regexp.MustCompile(`(?i)\s+(?:to|on|at|for|from|until|till|by|so|because|since|instead|tomorrow|today|tonight|next|this|is|are|was|were|will|has|have|got|needs|should)\b.*$`)
	leadingDeterminer = regexp.MustCompile(`(?i)^(?:the|my|our|a|an|this|that|his|her|their|your)\s+`)
	// leadingField drops the field being edited: "the time of dance class".
	leadingField  = regexp.MustCompile(`(?i)^(?:(?:the|my|our)\s+)?(?:start time|end time|time|date|day|location|place|venue|title|name|start|end|details)\s+(?:of|for|on)\s+`)
	notAnEditTail = regexp.MustCompile(`(?i)^(?:of|in)\b`)
	trailingField = regexp.MustCompile(`(?i)\s+(?:time|date|details|info)$`)

	quotedTitle      = regexp.MustCompile(`["“]([^"”]{2,80})["”]`)
	possessivePhrase = regexp.MustCompile(`\b([A-Z][a-z]+)(?:'|’)s\s+([a-z]+(?:\s+[a-z]+){0,3})`)
)

// pronouns that refer back to an event without naming it.
var pronouns = map[string]bool{
	"it": true, "that": true, "this": true, "them": true, "one": true,
	"event": true, "events": true, "something": true, "everything": true,
	"appointment": true, "meeting": true,
	// field names left when no title follows ("change the time to 5pm")
	"time": true, "date": true, "day": true, "location": true, "place": true,
	"venue": true, "title": true, "name": true, "details": true,
}

// possessive owners that are really time words ("today's meeting").
var timeOwners = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true, "yesterday": true,
	"week": true, "weekend": true, "month": true, "year": true,
}

// Detect runs the edit rules, then the reschedule rules, over message.
// It never consults storage.
func Detect(message string) Detection {
	text := util.NormalizeSpace(message)
	if text == "" {
		return Detection{}
	}
	if d, ok := applyRules(text, editRules); ok {
		return d
	}
	if d, ok := applyRules(text, rescheduleRules); ok {
		d.Reschedule = true
		return d
	}
	return Detection{}
}

func applyRules(text string, rules []editRule) (Detection, bool) {
	for _, rule := range rules {
		matches := rule.pattern.FindStringSubmatch(text)
		if matches == nil {
			continue
		}
		var title string
		switch rule.shape {
		case shapePossessive:
			title = possessiveTitle(matches[1], matches[2])
		default:
			// "change of plans" uses the verb as a noun.
			if notAnEditTail.MatchString(matches[1]) {
				continue
			}
			title = cleanupTitle(matches[1])
		}
		return Detection{Candidate: title, IsEditIntent: true, Rule: rule.name}, true
	}
	return Detection{}, false
}

// ExtractCandidateTitle returns the event title a message refers to, with or
// without edit wording. Quoted titles and possessive phrases are recognized
// when no rule matches.
func ExtractCandidateTitle(message string) string {
	if d := Detect(message); d.Candidate != "" {
		return d.Candidate
	}
	if m := quotedTitle.FindStringSubmatch(message); m != nil {
		if title := cleanupTitle(m[1]); title != "" {
			return title
		}
	}
	if m := possessivePhrase.FindStringSubmatch(message); m != nil {
		return possessiveTitle(m[1], m[2])
	}
	return ""
}

func possessiveTitle(owner, remainder string) string {
	rest := cleanupTitle(remainder)
	if timeOwners[strings.ToLower(owner)] {
		return rest
	}
	if rest == "" {
		return ""
	}
	return owner + " " + rest
}

// cleanupTitle strips determiners, trailing clauses and punctuation from a
// captured fragment. Pronouns clean up to "".
func cleanupTitle(s string) string {
	s = strings.Trim(util.NormalizeSpace(s), ` "“”?.!,;:`)
	s = leadingField.ReplaceAllString(s, "")
	s = trailingClause.ReplaceAllString(s, "")
	for {
		stripped := leadingDeterminer.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = trailingField.ReplaceAllString(s, "")
	s = strings.Trim(s, ` "“”?.!,;:`)
	if pronouns[strings.ToLower(s)] {
		return ""
	}
	return s
}

package intent

import (
	"encoding/json"
	"strings"

	"github.com/hrygo/familycal/internal/errors"
)

const (
	// maxScavengeBytes bounds how much of a reply the scavenging stage reads.
	maxScavengeBytes = 64 << 10
	// maxScavengeStarts bounds how many '{' positions are tried.
	maxScavengeStarts = 32
)

// decodeObject parses a model reply into v. The reply is decoded strictly
// first; when that fails the first well-formed JSON object found in the text
// is used instead.
func decodeObject(raw string, v any) error {
	text := stripCodeFence(raw)
	if text == "" {
		return errors.ExtractionParseFailed("empty model reply", nil)
	}

	strictErr := json.Unmarshal([]byte(text), v)
	if strictErr == nil {
		return nil
	}

	obj, ok := scavengeObject(raw)
	if !ok {
		return errors.ExtractionParseFailed("no JSON object in model reply", strictErr)
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return errors.ExtractionParseFailed("model reply has unexpected shape", err)
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	var jsonLines []string
	inJSON := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inJSON = !inJSON
			continue
		}
		if inJSON {
			jsonLines = append(jsonLines, line)
		}
	}
	return strings.TrimSpace(strings.Join(jsonLines, "\n"))
}

// scavengeObject returns the first complete JSON object embedded in s.
// Each candidate start is handed to a streaming decoder that reads exactly one
// value, so work is linear per start and the number of starts is capped.
func scavengeObject(s string) (json.RawMessage, bool) {
	if len(s) > maxScavengeBytes {
		s = s[:maxScavengeBytes]
	}
	starts := 0
	for i := 0; i < len(s) && starts < maxScavengeStarts; i++ {
		if s[i] != '{' {
			continue
		}
		starts++
		var obj json.RawMessage
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		if err := dec.Decode(&obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

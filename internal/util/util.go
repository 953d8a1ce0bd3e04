package util

import (
	"strings"

	"github.com/lithammer/shortuuid/v4"
)

// GenUID returns a short, URL-safe unique identifier for persisted records.
func GenUID() string {
	return shortuuid.New()
}

// TruncateRunes shortens s to at most max runes, appending "..." when cut.
func TruncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// NormalizeSpace collapses runs of whitespace into single spaces.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

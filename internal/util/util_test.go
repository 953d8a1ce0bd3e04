package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenUID(t *testing.T) {
	a, b := GenUID(), GenUID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 5))
	assert.Equal(t, "ab...", TruncateRunes("abcdef", 2))
	assert.Equal(t, "日程...", TruncateRunes("日程安排", 2))
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "soccer practice", NormalizeSpace("  soccer \t practice\n"))
	assert.Equal(t, "", NormalizeSpace("   "))
}

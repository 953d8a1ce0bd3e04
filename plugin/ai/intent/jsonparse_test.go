package intent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/familycal/internal/errors"
)

type sampleReply struct {
	Message string `json:"message"`
	Intent  string `json:"intent"`
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    sampleReply
		wantErr bool
	}{
		{"strict", `{"message":"hi","intent":"create_event"}`, sampleReply{"hi", "create_event"}, false},
		{"code fence", "```json\n{\"message\":\"fenced\"}\n```", sampleReply{Message: "fenced"}, false},
		{"prose around object", `Sure! Here you go: {"message":"found","intent":"none"} hope that helps`, sampleReply{"found", "none"}, false},
		{"first object wins", `{"message":"one"} {"message":"two"}`, sampleReply{Message: "one"}, false},
		{"broken prefix then object", `{"message": oops {"message":"second"}`, sampleReply{Message: "second"}, false},
		{"no object", `I could not understand that.`, sampleReply{}, true},
		{"empty", "   ", sampleReply{}, true},
		{"wrong shape", `{"message": 42}`, sampleReply{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sampleReply
			err := decodeObject(tt.raw, &got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeExtractionParseFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScavengeObjectIsBounded(t *testing.T) {
	// Many unterminated objects before a valid one: the valid one is past the start cap.
	raw := strings.Repeat("{", maxScavengeStarts+5) + `{"message":"late"}`
	_, ok := scavengeObject(raw)
	assert.False(t, ok)

	huge := strings.Repeat("x", maxScavengeBytes) + `{"message":"too far"}`
	_, ok = scavengeObject(huge)
	assert.False(t, ok)
}

package queue

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMergeReason(t *testing.T) {
	tests := []struct {
		name    string
		current string
		next    string
		want    string
	}{
		{"empty next keeps current", "skills-updated", "", "skills-updated"},
		{"empty current takes next", "", "manual:ops", "manual:ops"},
		{"duplicate is not repeated", "skills-updated; manual:ops", "manual:ops", "skills-updated; manual:ops"},
		{"distinct reasons are joined", "skills-updated", "manual:ops", "skills-updated; manual:ops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeReason(tt.current, tt.next))
		})
	}
}

func TestMergeReason_TruncatesOnRuneBoundary(t *testing.T) {
	got := mergeReason(strings.Repeat("a", 1021), "é重新计算")

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxReasonLength, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("a", 1021)+"; é", got)
}

func TestTruncateReason(t *testing.T) {
	assert.Equal(t, "short", truncateReason("short"))
	assert.Equal(t, "", truncateReason(""))

	exact := strings.Repeat("重", maxReasonLength)
	assert.Equal(t, exact, truncateReason(exact))

	long := truncateReason(strings.Repeat("重", maxReasonLength+5))
	assert.True(t, utf8.ValidString(long))
	assert.Equal(t, maxReasonLength, utf8.RuneCountInString(long))
}

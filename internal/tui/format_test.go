package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatScore(t *testing.T) {
	tests := []struct {
		name     string
		score    float32
		expected string
	}{
		{"exact", 1, "1.000"},
		{"rounded", 0.87654, "0.877"},
		{"zero", 0, "0.000"},
		{"negative", -0.25, "-0.250"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatScore(tt.score))
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0 chunks"},
		{1, "1 chunk"},
		{9999, "9999 chunks"},
		{12345, "12.3K chunks"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatCount(tt.n))
		})
	}
}

func TestFormatSource(t *testing.T) {
	assert.Equal(t, "notes.txt #2", FormatSource("notes.txt", 2))
	assert.Equal(t, "(unnamed) #0", FormatSource("", 0))
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		width    int
		expected string
	}{
		{"fits", "short text", 20, "short text"},
		{"collapses whitespace", "a\n\n b\t c", 20, "a b c"},
		{"truncated", "abcdefghij", 5, "abcd…"},
		{"trailing space trimmed", "abc defgh", 5, "abc…"},
		{"multibyte", "héllo wörld", 4, "hél…"},
		{"width one", "abc", 1, "…"},
		{"zero width", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Snippet(tt.text, tt.width))
		})
	}
}

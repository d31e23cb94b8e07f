package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatScore formats a similarity score with three decimals.
func FormatScore(score float32) string {
	return fmt.Sprintf("%.3f", score)
}

// FormatCount formats a chunk count as "N chunk(s)", with a K suffix past 10000.
func FormatCount(n int) string {
	switch {
	case n == 1:
		return "1 chunk"
	case n >= 10000:
		return fmt.Sprintf("%.1fK chunks", float64(n)/1000)
	default:
		return fmt.Sprintf("%d chunks", n)
	}
}

// FormatSource renders a result's origin as "filename #ordinal".
func FormatSource(filename string, ordinal int) string {
	if filename == "" {
		filename = "(unnamed)"
	}
	return fmt.Sprintf("%s #%d", filename, ordinal)
}

// Snippet collapses whitespace in text and cuts it to at most width runes,
// ending in "…" when shortened.
func Snippet(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(flat) <= width {
		return flat
	}
	if width == 1 {
		return "…"
	}
	runes := []rune(flat)
	return strings.TrimRight(string(runes[:width-1]), " ") + "…"
}

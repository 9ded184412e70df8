// Package util provides common text helpers used across the console.
package util

import (
	"fmt"
	"strings"
)

// NormalizeNotes cleans operator free-text before it is stored: trims
// surrounding whitespace and collapses doubled quotes pasted from
// spreadsheet exports.
func NormalizeNotes(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, `""`, `"`)
}

// Truncate shortens a string to max runes, appending an ellipsis when it
// was cut. Used for status-file and notification display.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// FormatEventLabel builds the one-line display form of a timeline entry.
// Format: "P<period> <clock> <kind>: <subject>" with empty subject omitted.
func FormatEventLabel(period int, clock, kind, subject string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "P%d %s %s", period, clock, kind)
	if subject != "" {
		b.WriteString(": ")
		b.WriteString(subject)
	}
	return b.String()
}

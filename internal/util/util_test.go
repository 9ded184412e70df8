package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNotes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  handball in box  ", "handball in box"},
		{"collapses doubled quotes", `keeper said ""no way""`, `keeper said "no way"`},
		{"empty", "", ""},
		{"only whitespace", "   \t", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeNotes(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "long…", Truncate("longer text", 5))
	assert.Equal(t, "…", Truncate("ab", 1))
	assert.Equal(t, "", Truncate("anything", 0))
}

func TestFormatEventLabel(t *testing.T) {
	assert.Equal(t, "P1 12:34.000 card: Keller",
		FormatEventLabel(1, "12:34.000", "card", "Keller"))
	assert.Equal(t, "P2 45:00.000 game_stoppage",
		FormatEventLabel(2, "45:00.000", "game_stoppage", ""))
}

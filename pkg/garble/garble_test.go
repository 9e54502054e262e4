package garble

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestGarble(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple phrase", input: "untie the knots", expected: "mnnmm nhm gnmnh"},
		{name: "case preserved", input: "Help ME", expected: "Hmnm MM"},
		{name: "punctuation kept", input: "no, stop!", expected: "nm, hnmm!"},
		{name: "digits kept", input: "choice 2", expected: "ghmmgm 2"},
		{name: "empty", input: "", expected: ""},
		{name: "only spaces", input: "   ", expected: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Garble(tt.input))
		})
	}
}

func TestGarble_Idempotent(t *testing.T) {
	inputs := []string{
		"untie the knots",
		"PLEASE let me GO",
		"Wiggle wrists, then kick",
		"café ÀÉÎ naïve",
		"",
	}

	for _, in := range inputs {
		once := Garble(in)
		twice := Garble(once)
		assert.True(t, strings.EqualFold(once, twice), "garble(garble(%q)) = %q, want %q", in, twice, once)
	}
}

func TestGarble_PreservesShape(t *testing.T) {
	in := "I will   escape\tsoon."
	out := Garble(in)

	assert.Equal(t, utf8.RuneCountInString(in), utf8.RuneCountInString(out))
	for i, r := range []rune(in) {
		o := []rune(out)[i]
		if r == ' ' || r == '\t' || r == '.' {
			assert.Equal(t, r, o)
		}
	}
}

func TestGarble_Deterministic(t *testing.T) {
	assert.Equal(t, Garble("look around"), Garble("look around"))
}

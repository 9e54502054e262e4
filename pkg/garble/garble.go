// Package garble muffles player speech while a gag-class restraint is worn.
//
// Every letter collapses onto one of four muffled sounds and everything else
// (spaces, digits, punctuation) is kept, so the output has the same length and
// shape as the input. The mapping is a projection: muffled letters map to
// themselves, which makes Garble idempotent.
package garble

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Muffled is the placeholder every vowel becomes.
const Muffled = 'm'

var folder = cases.Fold()

var muffle = map[rune]rune{
	'a': Muffled, 'e': Muffled, 'i': Muffled, 'o': Muffled, 'u': Muffled,
	'b': 'm', 'p': 'm', 'm': 'm',
	'd': 'n', 't': 'n', 'n': 'n', 'l': 'n',
	'g': 'g', 'k': 'g', 'c': 'g', 'q': 'g', 'x': 'g',
	'f': 'h', 'v': 'h', 's': 'h', 'z': 'h', 'h': 'h',
	'w': 'h', 'r': 'h', 'y': 'h', 'j': 'h',
}

// Garble returns the muffled form of text.
func Garble(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	for _, r := range text {
		sb.WriteRune(muffleRune(r))
	}
	return sb.String()
}

func muffleRune(r rune) rune {
	if !unicode.IsLetter(r) {
		return r
	}

	base := []rune(folder.String(string(r)))
	if len(base) != 1 {
		return r
	}
	m, ok := muffle[base[0]]
	if !ok {
		// letters outside the table (accents, other scripts) are kept as-is
		return r
	}
	return preserveCase(r, m)
}

// preserveCase applies the case of original to replacement.
func preserveCase(original, replacement rune) rune {
	if unicode.IsUpper(original) {
		return unicode.ToUpper(replacement)
	}
	return replacement
}

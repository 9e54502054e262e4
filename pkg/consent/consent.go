// Package consent turns a player's free-text consent reply into the set of
// restraint kinds they agreed to. Parsing never fails.
package consent

import (
	"slices"
	"strings"

	"github.com/jwebster45206/escape-engine/pkg/restraint"
)

// MaxInputLength caps the consent reply, in runes, before parsing.
const MaxInputLength = 500

// Parse returns the subset of offerable the input consents to, in catalog
// order. "all" selects every offerable kind, "none" or an empty reply selects
// nothing, and anything else is a comma-separated list of machine or display
// names. Unmatched names are dropped.
func Parse(input string, offerable []restraint.Kind, catalog *restraint.Catalog) []restraint.Kind {
	input = truncate(input, MaxInputLength)
	input = strings.ToLower(strings.TrimSpace(input))

	switch input {
	case "all":
		return slices.Clone(offerable)
	case "", "none":
		return []restraint.Kind{}
	}

	picked := make(map[restraint.Kind]bool)
	for _, token := range strings.Split(input, ",") {
		if k, ok := catalog.Resolve(token); ok {
			picked[k] = true
		}
	}

	// intersect with offerable so a disallowed kind can never be consented to
	out := make([]restraint.Kind, 0, len(picked))
	for _, k := range offerable {
		if picked[k] {
			out = append(out, k)
		}
	}
	return out
}

// Render joins the display names of kinds with commas. Parse(Render(x))
// recovers x restricted to the offerable set.
func Render(kinds []restraint.Kind, catalog *restraint.Catalog) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, catalog.DisplayName(k))
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

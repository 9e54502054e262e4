package narrator

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

var folder = cases.Fold()

// inferOpening scans opening prose for the display names of allowed
// restraints and applies each one not yet in place at its default intensity.
// Only used on the first scene after consent.
func inferOpening(catalog *restraint.Catalog, s *session.Session, text string) []Effect {
	folded := folder.String(text)

	var out []Effect
	for _, k := range s.AllowedRestraints {
		if s.Level(k) > 0 {
			continue
		}
		name := folder.String(catalog.DisplayName(k))
		if name == "" || !strings.Contains(folded, name) {
			continue
		}
		out = append(out, Apply{Kind: k, Level: catalog.Default(k)})
	}
	return out
}

// Package restraint holds the catalog of restraint kinds the narrator may
// apply, their intensity bounds, and the incapacitation rule derived from them.
package restraint

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Kind is the stable machine name of a restraint, e.g. "rope".
type Kind string

func (k Kind) String() string {
	return string(k)
}

const (
	Rope      Kind = "rope"
	Handcuffs Kind = "handcuffs"
	Blindfold Kind = "blindfold"
	Gag       Kind = "gag"
	Tape      Kind = "tape"
	Chains    Kind = "chains"
)

// Spec describes one restraint kind.
type Spec struct {
	Kind         Kind   `json:"kind"`
	DisplayName  string `json:"display_name"`
	MaxIntensity int    `json:"max_intensity"`
	Default      int    `json:"default"`
	Gag          bool   `json:"gag,omitempty"` // muffles speech when active
}

// Catalog is an immutable set of restraint specs keyed by kind.
type Catalog struct {
	specs map[Kind]Spec
	order []Kind
}

// NewCatalog builds a catalog from specs. Specs with an empty kind or a
// non-positive maximum are skipped; defaults are clamped into [1, max].
func NewCatalog(specs ...Spec) *Catalog {
	c := &Catalog{specs: make(map[Kind]Spec, len(specs))}
	for _, s := range specs {
		if s.Kind == "" || s.MaxIntensity <= 0 {
			continue
		}
		if s.DisplayName == "" {
			s.DisplayName = string(s.Kind)
		}
		s.Default = min(max(s.Default, 1), s.MaxIntensity)
		if _, dup := c.specs[s.Kind]; !dup {
			c.order = append(c.order, s.Kind)
		}
		c.specs[s.Kind] = s
	}
	return c
}

var defaultCatalog = NewCatalog(
	Spec{Kind: Rope, DisplayName: "Rope", MaxIntensity: 5, Default: 2},
	Spec{Kind: Handcuffs, DisplayName: "Handcuffs", MaxIntensity: 3, Default: 1},
	Spec{Kind: Blindfold, DisplayName: "Blindfold", MaxIntensity: 3, Default: 1},
	Spec{Kind: Gag, DisplayName: "Ball Gag", MaxIntensity: 3, Default: 1, Gag: true},
	Spec{Kind: Tape, DisplayName: "Duct Tape", MaxIntensity: 4, Default: 2},
	Spec{Kind: Chains, DisplayName: "Chains", MaxIntensity: 5, Default: 2},
)

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Kinds returns all kinds in catalog order.
func (c *Catalog) Kinds() []Kind {
	return slices.Clone(c.order)
}

// Specs returns all specs in catalog order.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.specs[k])
	}
	return out
}

// Lookup returns the spec for k.
func (c *Catalog) Lookup(k Kind) (Spec, bool) {
	s, ok := c.specs[k]
	return s, ok
}

// Has reports whether k is in the catalog.
func (c *Catalog) Has(k Kind) bool {
	_, ok := c.specs[k]
	return ok
}

// Max returns the maximum intensity of k, or 0 for unknown kinds.
func (c *Catalog) Max(k Kind) int {
	return c.specs[k].MaxIntensity
}

// Default returns the default applied intensity of k, or 0 for unknown kinds.
func (c *Catalog) Default(k Kind) int {
	return c.specs[k].Default
}

// DisplayName returns the human-facing name of k. Unknown kinds render as
// their machine name.
func (c *Catalog) DisplayName(k Kind) string {
	if s, ok := c.specs[k]; ok {
		return s.DisplayName
	}
	return string(k)
}

// IsGag reports whether k belongs to the gag class.
func (c *Catalog) IsGag(k Kind) bool {
	return c.specs[k].Gag
}

var folder = cases.Fold()

// Resolve matches a machine name or display name under Unicode case folding.
func (c *Catalog) Resolve(name string) (Kind, bool) {
	name = folder.String(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	for _, k := range c.order {
		s := c.specs[k]
		if folder.String(string(k)) == name || folder.String(s.DisplayName) == name {
			return k, true
		}
	}
	return "", false
}

// Offerable returns the catalog kinds minus the disallowed ones, in catalog order.
func (c *Catalog) Offerable(disallowed []Kind) []Kind {
	out := make([]Kind, 0, len(c.order))
	for _, k := range c.order {
		if !slices.Contains(disallowed, k) {
			out = append(out, k)
		}
	}
	return out
}

// Levels maps restraint kinds to their current intensity. A missing key is
// intensity zero.
type Levels map[Kind]int

// Clone returns an independent copy of l.
func (l Levels) Clone() Levels {
	out := make(Levels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Active returns the kinds with positive intensity, sorted by name.
func (l Levels) Active() []Kind {
	out := make([]Kind, 0, len(l))
	for k, v := range l {
		if v > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsIncapacitated reports whether any restraint in l sits at its maximum.
func (c *Catalog) IsIncapacitated(l Levels) bool {
	for k, v := range l {
		if m := c.Max(k); m > 0 && v >= m {
			return true
		}
	}
	return false
}

// IsGagged reports whether any gag-class restraint has positive intensity.
func (c *Catalog) IsGagged(l Levels) bool {
	for k, v := range l {
		if v > 0 && c.IsGag(k) {
			return true
		}
	}
	return false
}

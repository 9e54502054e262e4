package narrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/escape-engine/pkg/restraint"
)

func TestValidate(t *testing.T) {
	cat := restraint.DefaultCatalog()
	policy := &restraint.Policy{Disallowed: []restraint.Kind{restraint.Chains}}

	tests := []struct {
		name       string
		allowed    []restraint.Kind
		current    restraint.Levels
		effects    []Effect
		wantOK     int
		wantReason []string
	}{
		{
			name:       "unknown kind",
			allowed:    []restraint.Kind{restraint.Rope},
			effects:    []Effect{Apply{Kind: "straitjacket", Level: 1}},
			wantReason: []string{ReasonUnknownKind},
		},
		{
			name:       "not consented",
			allowed:    []restraint.Kind{restraint.Rope},
			effects:    []Effect{Apply{Kind: restraint.Blindfold, Level: 1}, Tighten{Kind: restraint.Rope, Amount: 1}},
			wantOK:     1,
			wantReason: []string{ReasonNotAllowed},
		},
		{
			name:       "globally disallowed",
			allowed:    []restraint.Kind{restraint.Chains},
			effects:    []Effect{Apply{Kind: restraint.Chains, Level: 1}},
			wantReason: []string{ReasonDisallowed},
		},
		{
			name:       "apply above max",
			allowed:    []restraint.Kind{restraint.Rope},
			effects:    []Effect{Apply{Kind: restraint.Rope, Level: 6}},
			wantReason: []string{ReasonOutOfRange},
		},
		{
			name:       "apply negative",
			allowed:    []restraint.Kind{restraint.Rope},
			effects:    []Effect{Apply{Kind: restraint.Rope, Level: -1}},
			wantReason: []string{ReasonOutOfRange},
		},
		{
			name:    "apply zero removes",
			allowed: []restraint.Kind{restraint.Rope},
			current: restraint.Levels{restraint.Rope: 3},
			effects: []Effect{Apply{Kind: restraint.Rope, Level: 0}},
			wantOK:  1,
		},
		{
			name:    "tighten past max clamps",
			allowed: []restraint.Kind{restraint.Rope},
			current: restraint.Levels{restraint.Rope: 2},
			effects: []Effect{Tighten{Kind: restraint.Rope, Amount: 99}},
			wantOK:  1,
		},
		{
			name:       "tighten non-positive",
			allowed:    []restraint.Kind{restraint.Rope},
			effects:    []Effect{Tighten{Kind: restraint.Rope, Amount: 0}, Tighten{Kind: restraint.Rope, Amount: -2}},
			wantReason: []string{ReasonOutOfRange, ReasonOutOfRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := activeSession(tt.allowed...)
			if tt.current != nil {
				s.CurrentRestraints = tt.current
			}
			before := s.CurrentRestraints.Clone()

			ok, rejected := Validate(cat, policy, s, tt.effects)
			assert.Len(t, ok, tt.wantOK)
			require.Len(t, rejected, len(tt.wantReason))
			for i, r := range rejected {
				assert.Equal(t, tt.wantReason[i], r.Reason)
			}
			assert.Equal(t, before, s.CurrentRestraints, "validation must not mutate the session")
		})
	}
}

func TestApplyEffects(t *testing.T) {
	cat := restraint.DefaultCatalog()
	s := activeSession(restraint.Rope, restraint.Blindfold)
	s.CurrentRestraints[restraint.Blindfold] = 2

	ApplyEffects(cat, s, []Effect{
		Apply{Kind: restraint.Rope, Level: 2},
		Tighten{Kind: restraint.Rope, Amount: 99},
		Apply{Kind: restraint.Blindfold, Level: 0},
	})

	assert.Equal(t, restraint.Levels{restraint.Rope: cat.Max(restraint.Rope)}, s.CurrentRestraints)
	assert.True(t, s.Recompute(cat))
	assert.True(t, s.Incapacitated)
}

func TestValidate_SequentialIntensity(t *testing.T) {
	cat := restraint.DefaultCatalog()
	s := activeSession(restraint.Handcuffs)

	// second apply is judged after the first
	ok, rejected := Validate(cat, nil, s, []Effect{
		Tighten{Kind: restraint.Handcuffs, Amount: 2},
		Tighten{Kind: restraint.Handcuffs, Amount: 2},
	})
	assert.Len(t, ok, 2)
	assert.Empty(t, rejected)

	ApplyEffects(cat, s, ok)
	assert.Equal(t, cat.Max(restraint.Handcuffs), s.Level(restraint.Handcuffs))
}

func TestInferOpening(t *testing.T) {
	cat := restraint.DefaultCatalog()
	s := activeSession(restraint.Rope, restraint.Gag, restraint.Blindfold)
	s.CurrentRestraints[restraint.Blindfold] = 1

	got := inferOpening(cat, s, "Coarse ROPE binds your wrists, a ball gag muffles you, and the blindfold stays put. Chains rattle.")

	assert.Equal(t, []Effect{
		Apply{Kind: restraint.Rope, Level: cat.Default(restraint.Rope)},
		Apply{Kind: restraint.Gag, Level: cat.Default(restraint.Gag)},
	}, got)
}

// The system prompt describes apply with level 0 as a release, which is what
// Validate and ApplyEffects do.
func TestApplyLevelZeroReleases(t *testing.T) {
	assert.Contains(t, SystemPrompt, "level 0 removes it")

	cat := restraint.DefaultCatalog()
	s := activeSession(restraint.Rope)
	s.CurrentRestraints[restraint.Rope] = cat.Max(restraint.Rope)

	release := []Effect{Apply{Kind: restraint.Rope, Level: 0}}
	accepted, rejected := Validate(cat, nil, s, release)
	require.Empty(t, rejected)
	ApplyEffects(cat, s, accepted)

	assert.Zero(t, s.Level(restraint.Rope))
	assert.NotContains(t, s.CurrentRestraints, restraint.Rope)
}

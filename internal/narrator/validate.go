package narrator

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

// ErrEffectRejected is matched by every *RejectionError.
var ErrEffectRejected = errors.New("narrator effect rejected")

// Rejection reasons.
const (
	ReasonUnknownKind = "unknown_kind"
	ReasonNotAllowed  = "not_allowed"
	ReasonDisallowed  = "globally_disallowed"
	ReasonOutOfRange  = "out_of_range"
	ReasonMalformed   = "malformed"
)

// RejectionError describes one effect dropped by validation.
type RejectionError struct {
	Kind   restraint.Kind
	Op     string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s %s rejected: %s", e.Op, e.Kind, e.Reason)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrEffectRejected
}

// Validate checks effects in order against the catalog, the session's
// allowed set and the global policy. Each effect is judged against the
// intensities left by the effects accepted before it.
func Validate(catalog *restraint.Catalog, policy *restraint.Policy, s *session.Session, effects []Effect) ([]Effect, []*RejectionError) {
	levels := s.CurrentRestraints.Clone()
	accepted := make([]Effect, 0, len(effects))
	var rejected []*RejectionError

	for _, e := range effects {
		k := e.Target()
		reject := func(reason string) {
			rejected = append(rejected, &RejectionError{Kind: k, Op: e.Op(), Reason: reason})
		}

		switch {
		case !catalog.Has(k):
			reject(ReasonUnknownKind)
			continue
		case policy.IsDisallowed(k):
			reject(ReasonDisallowed)
			continue
		case !s.Allows(k):
			reject(ReasonNotAllowed)
			continue
		}

		next, ok := e.resolve(levels[k], catalog.Max(k))
		if !ok || next < 0 || next > catalog.Max(k) {
			reject(ReasonOutOfRange)
			continue
		}
		levels[k] = next
		accepted = append(accepted, e)
	}

	return accepted, rejected
}

// ApplyEffects mutates the session's intensities with already validated
// effects. A resulting intensity of zero removes the restraint.
func ApplyEffects(catalog *restraint.Catalog, s *session.Session, effects []Effect) {
	if s.CurrentRestraints == nil {
		s.CurrentRestraints = restraint.Levels{}
	}
	for _, e := range effects {
		k := e.Target()
		next, ok := e.resolve(s.CurrentRestraints[k], catalog.Max(k))
		if !ok {
			continue
		}
		if next == 0 {
			delete(s.CurrentRestraints, k)
			continue
		}
		s.CurrentRestraints[k] = next
	}
}

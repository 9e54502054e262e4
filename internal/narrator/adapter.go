// Package narrator turns a session into a prompt, asks the LLM for the next
// scene, and parses and polices the structured reply.
package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/escape-engine/internal/services"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

// DefaultTimeout bounds a single narrator request.
const DefaultTimeout = 60 * time.Second

// Adapter is stateless across sessions and safe for concurrent use.
type Adapter struct {
	llm       services.LLMService
	catalog   *restraint.Catalog
	policy    *restraint.Policy
	offerable []restraint.Kind
	timeout   time.Duration
	logger    *slog.Logger
}

func NewAdapter(llm services.LLMService, catalog *restraint.Catalog, policy *restraint.Policy, timeout time.Duration, logger *slog.Logger) *Adapter {
	if policy == nil {
		policy = &restraint.Policy{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{
		llm:       llm,
		catalog:   catalog,
		policy:    policy,
		offerable: catalog.Offerable(policy.Disallowed),
		timeout:   timeout,
		logger:    logger,
	}
}

// Offerable returns the kinds a player may consent to.
func (a *Adapter) Offerable() []restraint.Kind {
	return a.offerable
}

// Next requests the next scene for s. opening marks the first scene after
// consent, the only turn on which restraints may be inferred from prose.
// Every error wraps ErrAdapterFailure; s is not modified.
func (a *Adapter) Next(ctx context.Context, s *session.Session, opening bool) (*Reply, error) {
	messages, err := NewBuilder(a.catalog).
		WithSession(s).
		WithOfferable(a.offerable).
		WithRestrictions(a.policy.Restrictions).
		WithOpening(opening).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdapterFailure, err)
	}

	log := a.logger.With("room_id", s.RoomID, "player_id", s.PlayerID)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.llm.Chat(ctx, messages)
	if err != nil {
		log.Warn("Narrator request failed", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrAdapterFailure, err)
	}
	log.Debug("Narrator replied", "elapsed", time.Since(start), "bytes", len(raw))

	reply, malformed, err := parseReply(raw)
	if err != nil {
		log.Warn("Narrator reply unusable", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAdapterFailure, err)
	}

	declared := len(reply.Effects) + len(malformed)
	accepted, rejected := Validate(a.catalog, a.policy, s, reply.Effects)
	reply.Effects = accepted
	reply.Rejected = append(malformed, rejected...)

	for _, r := range reply.Rejected {
		log.Warn("Effect rejected", "kind", r.Kind, "op", r.Op, "reason", r.Reason)
	}

	if opening && declared == 0 {
		if inferred := inferOpening(a.catalog, s, reply.ScenarioText); len(inferred) > 0 {
			reply.Effects = inferred
			reply.Inferred = true
			log.Info("Inferred opening restraints", "count", len(inferred))
		}
	}

	return reply, nil
}

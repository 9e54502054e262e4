package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/logger"
	"github.com/jwebster45206/escape-engine/internal/narrator"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/pkg/consent"
	"github.com/jwebster45206/escape-engine/pkg/garble"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

// actor owns one session. Only run and the methods it calls touch s.
type actor struct {
	e        *Engine
	roomID   string
	playerID string
	s        *session.Session
	view     atomic.Pointer[session.Session]
	queue    *inbox
	log      *slog.Logger

	mu         sync.Mutex
	cancelTurn context.CancelFunc

	finished bool
}

func newActor(e *Engine, s *session.Session) *actor {
	a := &actor{
		e:        e,
		roomID:   s.RoomID,
		playerID: s.PlayerID,
		s:        s.Clone(),
		queue:    newInbox(),
		log:      logger.WithSession(e.logger, s),
	}
	a.view.Store(s.Clone())
	return a
}

// snapshot returns a copy of the last committed session.
func (a *actor) snapshot() *session.Session {
	return a.view.Load().Clone()
}

func (a *actor) run() {
	defer a.e.wg.Done()

	for {
		req, ok := a.queue.pop(a.e.ctx)
		if !ok {
			a.reject(ErrClosed)
			return
		}

		text, err := a.handle(req)
		if a.finished {
			a.e.unregister(a)
		}
		if req.done != nil {
			req.done <- result{text: text, err: err}
		}

		if a.finished {
			a.reject(ErrNoSession)
			return
		}
	}
}

// reject closes the inbox and fails every waiting caller.
func (a *actor) reject(err error) {
	for _, req := range a.queue.close() {
		if req.done != nil {
			req.done <- result{err: err}
		}
	}
}

func (a *actor) interrupt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelTurn != nil {
		a.cancelTurn()
	}
}

func (a *actor) turnContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a.e.ctx)
	a.mu.Lock()
	a.cancelTurn = cancel
	a.mu.Unlock()

	return ctx, func() {
		a.mu.Lock()
		a.cancelTurn = nil
		a.mu.Unlock()
		cancel()
	}
}

func (a *actor) handle(req request) (string, error) {
	switch req.kind {
	case reqMessage:
		return "", a.handleMessage(req.text)
	case reqRetry:
		return "", a.retry()
	case reqQuit:
		return "", a.quit()
	case reqEnd:
		return "", a.end()
	case reqResetConsent:
		return "", a.resetConsent()
	case reqStatus:
		return statusText(a.e.catalog, a.s), nil
	case reqResume:
		a.resume()
		return "", nil
	default:
		return "", fmt.Errorf("unknown request kind %d", req.kind)
	}
}

func (a *actor) handleMessage(raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	switch a.s.Phase {
	case session.PhaseAwaitingConsent:
		return a.consentTurn(text)
	case session.PhaseActive:
		return a.playTurn(text)
	case session.PhaseSurrendered:
		switch strings.ToLower(text) {
		case "retry":
			return a.retry()
		case "quit":
			return a.quit()
		}
		a.send(offer())
		return nil
	default:
		return ErrWrongPhase
	}
}

// consentTurn commits the player's consent and requests the opening scene.
// If the narrator fails the session stays awaiting consent.
func (a *actor) consentTurn(text string) error {
	cat := a.e.catalog

	var allowed []restraint.Kind
	if strings.EqualFold(text, "keep") && len(a.s.AllowedRestraints) > 0 {
		for _, k := range a.s.AllowedRestraints {
			if slices.Contains(a.e.offerable, k) {
				allowed = append(allowed, k)
			}
		}
	} else {
		allowed = consent.Parse(text, a.e.offerable, cat)
	}

	next := a.s.Clone()
	if err := next.CommitConsent(allowed); err != nil {
		return err
	}
	next.AppendHistory(session.RolePlayer, consentUtterance(cat, next.AllowedRestraints))
	a.log.Info("Consent committed", "allowed", next.AllowedRestraints)

	ctx, done := a.turnContext()
	defer done()

	reply, err := a.e.narrator.Next(ctx, next, true)
	if err != nil {
		return a.turnFailed(ctx, err, msgOpeningFailure, nil)
	}
	return a.finish(next, reply, nil)
}

// playTurn runs one player action through the narrator. The garble echo is
// held back and sent ahead of the turn's other messages once it commits.
func (a *actor) playTurn(text string) error {
	var lead []host.Message
	if a.e.catalog.IsGagged(a.s.CurrentRestraints) {
		text = garble.Garble(text)
		if a.e.echo {
			lead = append(lead, echo(a.s.PlayerDisplayName, text))
		}
	}

	action := resolveChoice(text, a.s.PendingChoices)

	next := a.s.Clone()
	next.AppendHistory(session.RolePlayer, action)

	ctx, done := a.turnContext()
	defer done()

	reply, err := a.e.narrator.Next(ctx, next, false)
	if err != nil {
		return a.turnFailed(ctx, err, msgAdapterFailure, lead)
	}
	return a.finish(next, reply, lead)
}

// turnFailed handles a narrator failure: nothing advances, the unchanged
// session is checkpointed, and the player is told how to continue. A turn
// cancelled by /end or shutdown is dropped silently.
func (a *actor) turnFailed(ctx context.Context, err error, msg string, lead []host.Message) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		a.log.Info("Turn interrupted")
		return nil
	}

	a.log.Warn("Narrator turn failed", "error", err)
	if cerr := a.commit(a.s.Clone()); cerr != nil {
		return cerr
	}
	a.send(append(lead, errorMessage(msg))...)
	return nil
}

// finish applies a narrator reply to next, commits it, and only then emits
// lead followed by the resulting messages.
func (a *actor) finish(next *session.Session, reply *narrator.Reply, lead []host.Message) error {
	cat := a.e.catalog

	next.AppendHistory(session.RoleNarrator, reply.ScenarioText)
	narrator.ApplyEffects(cat, next, reply.Effects)
	changed := next.Recompute(cat)
	if next.AdoptTheme(reply.Theme) {
		a.log.Info("Theme assigned", "theme", next.Theme)
	}

	msgs := slices.Clone(lead)
	if changed {
		if next.Incapacitated {
			msgs = append(msgs, notice(msgEscalation))
		} else {
			msgs = append(msgs, notice(msgRelief))
		}
	}

	switch reply.Outcome {
	case narrator.OutcomeEscape:
		next.Phase = session.PhaseWon
		next.PendingChoices = []string{}
		msgs = append(msgs, narration(reply.ScenarioText, nil), notice(msgVictory))
	case narrator.OutcomeSurrender:
		next.Phase = session.PhaseSurrendered
		next.PendingChoices = []string{}
		msgs = append(msgs, narration(reply.ScenarioText, nil), notice(msgSurrender), offer())
	default:
		next.PendingChoices = slices.Clone(reply.Choices)
		if next.PendingChoices == nil {
			next.PendingChoices = []string{}
		}
		msgs = append(msgs, narration(reply.ScenarioText, next.PendingChoices))
	}

	if err := a.commit(next); err != nil {
		a.send(errorMessage(msgPersistFailure))
		return err
	}
	a.send(msgs...)

	if next.Phase == session.PhaseWon {
		a.log.Info("Player escaped")
		a.teardown()
	}
	return nil
}

func (a *actor) retry() error {
	if a.s.Phase != session.PhaseSurrendered {
		return ErrWrongPhase
	}

	next := a.s.Clone()
	previous := slices.Clone(next.AllowedRestraints)
	next.Reset()
	if err := a.commit(next); err != nil {
		a.send(errorMessage(msgPersistFailure))
		return err
	}

	a.log.Info("Session retried")
	a.send(consentPrompt(a.e.catalog, a.e.offerable, previous))
	return nil
}

func (a *actor) quit() error {
	if a.s.Phase != session.PhaseSurrendered {
		return ErrWrongPhase
	}
	a.abort(msgQuit)
	return nil
}

func (a *actor) end() error {
	a.abort(msgEnded)
	return nil
}

// abort moves the session to Aborted and tears it down. Teardown runs even
// if the checkpoint fails.
func (a *actor) abort(msg string) {
	next := a.s.Clone()
	next.Phase = session.PhaseAborted
	if err := a.commit(next); err != nil {
		a.s = next
	}
	a.send(notice(msg))
	a.log.Info("Session aborted")
	a.teardown()
}

func (a *actor) resetConsent() error {
	if a.s.Phase.IsTerminal() && a.s.Phase != session.PhaseSurrendered {
		return ErrWrongPhase
	}

	next := a.s.Clone()
	next.Reset()
	next.AllowedRestraints = []restraint.Kind{}
	if err := a.commit(next); err != nil {
		a.send(errorMessage(msgPersistFailure))
		return err
	}

	a.log.Info("Consent reset by staff")
	a.send(notice(msgReset), consentPrompt(a.e.catalog, a.e.offerable, nil))
	return nil
}

// resume re-posts whatever the player last needed to see. A duplicate after
// a crash is acceptable.
func (a *actor) resume() {
	switch a.s.Phase {
	case session.PhaseAwaitingConsent:
		a.send(consentPrompt(a.e.catalog, a.e.offerable, a.s.AllowedRestraints))
	case session.PhaseActive:
		msgs := []host.Message{notice(msgResumed)}
		for i := len(a.s.History) - 1; i >= 0; i-- {
			if a.s.History[i].Role == session.RoleNarrator {
				msgs = append(msgs, narration(a.s.History[i].Text, a.s.PendingChoices))
				break
			}
		}
		a.send(msgs...)
	case session.PhaseSurrendered:
		a.send(offer())
	}
	a.log.Info("Session resumed", "phase", a.s.Phase)
}

// commit persists next and makes it the actor's session.
func (a *actor) commit(next *session.Session) error {
	next.Touch()

	ctx, cancel := opContext()
	defer cancel()
	if err := a.e.store.Put(ctx, next); err != nil {
		a.log.Error("Failed to persist session", "error", err)
		if !errors.Is(err, storage.ErrPersistence) {
			err = fmt.Errorf("%w: %w", storage.ErrPersistence, err)
		}
		return err
	}

	a.s = next
	a.view.Store(next.Clone())
	return nil
}

func (a *actor) send(msgs ...host.Message) {
	ctx, cancel := opContext()
	defer cancel()
	for _, m := range msgs {
		if err := a.e.platform.Send(ctx, a.roomID, m); err != nil {
			a.log.Warn("Failed to send message", "kind", m.Kind, "error", err)
		}
	}
}

func (a *actor) teardown() {
	ctx, cancel := opContext()
	defer cancel()
	a.e.teardown(ctx, a.s, a.log)
	a.finished = true
}

// resolveChoice maps "2" to the second pending choice. Anything else is a
// freeform action.
func resolveChoice(text string, choices []string) string {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(choices) {
		return text
	}
	return choices[n-1]
}

// Package engine runs the per-room session state machine. Each live session
// is owned by one actor goroutine that processes its requests in order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/logger"
	"github.com/jwebster45206/escape-engine/internal/narrator"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

var (
	ErrSessionExists = errors.New("player already has a session")
	ErrNoSession     = errors.New("no session")
	ErrNotStaff      = errors.New("staff role required")
	ErrNotPlayer     = errors.New("not the session's player")
	ErrWrongPhase    = errors.New("not available in the current phase")
	ErrClosed        = errors.New("engine closed")
)

// SessionExistsError carries the room of the session that blocked a start.
type SessionExistsError struct {
	RoomID string
}

func (e *SessionExistsError) Error() string {
	return fmt.Sprintf("player already has a session in room %s", e.RoomID)
}

func (e *SessionExistsError) Is(target error) bool {
	return target == ErrSessionExists
}

// Narrator produces the next scene for a session.
type Narrator interface {
	Next(ctx context.Context, s *session.Session, opening bool) (*narrator.Reply, error)
	Offerable() []restraint.Kind
}

// Custodian owns rooms and roles.
type Custodian interface {
	Setup(ctx context.Context, player host.Player, theme string, prompt host.Message) (*session.Session, error)
	Teardown(ctx context.Context, s *session.Session) error
	IsStaff(ctx context.Context, playerID string) bool
}

type Config struct {
	Catalog *restraint.Catalog
	Policy  *restraint.Policy
	// GarbleEcho posts the garbled form of gagged input into the room.
	GarbleEcho bool
}

// opTimeout bounds store and platform calls made on behalf of a turn.
const opTimeout = 30 * time.Second

const (
	teardownAttempts   = 3
	teardownRetryDelay = 100 * time.Millisecond
)

type Engine struct {
	narrator  Narrator
	custodian Custodian
	store     storage.Storage
	platform  host.Platform
	catalog   *restraint.Catalog
	policy    *restraint.Policy
	offerable []restraint.Kind
	echo      bool
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	rooms    map[string]*actor
	players  map[string]*actor
	starting map[string]bool
	closed   bool
}

func New(narr Narrator, cust Custodian, store storage.Storage, platform host.Platform, cfg Config, log *slog.Logger) *Engine {
	if cfg.Catalog == nil {
		cfg.Catalog = restraint.DefaultCatalog()
	}
	if cfg.Policy == nil {
		cfg.Policy = &restraint.Policy{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		narrator:  narr,
		custodian: cust,
		store:     store,
		platform:  platform,
		catalog:   cfg.Catalog,
		policy:    cfg.Policy,
		offerable: narr.Offerable(),
		echo:      cfg.GarbleEcho,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
		rooms:     make(map[string]*actor),
		players:   make(map[string]*actor),
		starting:  make(map[string]bool),
	}
}

// Offerable returns the restraint kinds players may consent to.
func (e *Engine) Offerable() []restraint.Kind {
	return e.offerable
}

// Start opens a room for the player and posts the consent prompt. A player
// holding any live session, staff included, is refused with a
// *SessionExistsError.
func (e *Engine) Start(ctx context.Context, player host.Player, theme string) (*session.Session, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if a, ok := e.players[player.ID]; ok {
		e.mu.Unlock()
		return nil, &SessionExistsError{RoomID: a.roomID}
	}
	if e.starting[player.ID] {
		e.mu.Unlock()
		return nil, &SessionExistsError{}
	}
	e.starting[player.ID] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.starting, player.ID)
		e.mu.Unlock()
	}()

	s, err := e.custodian.Setup(ctx, player, theme, consentPrompt(e.catalog, e.offerable, nil))
	if err != nil {
		e.logger.Error("Failed to start session", "player_id", player.ID, "error", err)
		return nil, err
	}

	a, err := e.spawn(s)
	if err != nil {
		return nil, err
	}
	logger.WithSession(e.logger, s).Info("Session started", "theme", s.Theme, "staff", s.Staff)
	return a.snapshot(), nil
}

// HandleMessage queues a player's room message for its session. It does not
// wait for the turn.
func (e *Engine) HandleMessage(roomID string, player host.Player, text string) error {
	a, err := e.ownedActor(roomID, player.ID)
	if err != nil {
		return err
	}
	if !a.queue.push(request{kind: reqMessage, text: text}, false) {
		return ErrNoSession
	}
	return nil
}

// Submit is HandleMessage that waits until the turn has been processed.
func (e *Engine) Submit(ctx context.Context, roomID string, player host.Player, text string) error {
	a, err := e.ownedActor(roomID, player.ID)
	if err != nil {
		return err
	}
	_, err = e.call(ctx, a, request{kind: reqMessage, text: text}, false)
	return err
}

// Retry resets the player's surrendered session and re-prompts for consent.
func (e *Engine) Retry(ctx context.Context, player host.Player) error {
	a, ok := e.byPlayer(player.ID)
	if !ok {
		return ErrNoSession
	}
	_, err := e.call(ctx, a, request{kind: reqRetry}, false)
	return err
}

// Quit ends the player's surrendered session.
func (e *Engine) Quit(ctx context.Context, player host.Player) error {
	a, ok := e.byPlayer(player.ID)
	if !ok {
		return ErrNoSession
	}
	_, err := e.call(ctx, a, request{kind: reqQuit}, false)
	return err
}

// End aborts a session. With an empty target or the invoker's own id it ends
// the invoker's session; ending someone else's requires a staff role.
func (e *Engine) End(ctx context.Context, invoker host.Player, target string) error {
	if target == "" || target == invoker.ID {
		return e.Abort(ctx, invoker.ID)
	}
	if !e.custodian.IsStaff(ctx, invoker.ID) {
		return ErrNotStaff
	}
	return e.Abort(ctx, target)
}

// Abort ends a player's session on behalf of an operator. Any turn in flight
// is cancelled and the abort runs before queued messages.
func (e *Engine) Abort(ctx context.Context, playerID string) error {
	a, ok := e.byPlayer(playerID)
	if !ok {
		return ErrNoSession
	}
	_, err := e.call(ctx, a, request{kind: reqEnd}, true)
	return err
}

// ResetConsent returns the session in roomID to awaiting consent. Staff only.
func (e *Engine) ResetConsent(ctx context.Context, invoker host.Player, roomID string) error {
	if !e.custodian.IsStaff(ctx, invoker.ID) {
		return ErrNotStaff
	}
	a, ok := e.byRoom(roomID)
	if !ok {
		return ErrNoSession
	}
	_, err := e.call(ctx, a, request{kind: reqResetConsent}, true)
	return err
}

// Status describes the session in roomID, or the player's own session when
// roomID is empty.
func (e *Engine) Status(ctx context.Context, player host.Player, roomID string) (string, error) {
	var (
		a  *actor
		ok bool
	)
	if roomID != "" {
		a, ok = e.byRoom(roomID)
	} else {
		a, ok = e.byPlayer(player.ID)
	}
	if !ok {
		return "", ErrNoSession
	}
	return e.call(ctx, a, request{kind: reqStatus}, false)
}

// RoomOf returns the room of the player's live session.
func (e *Engine) RoomOf(playerID string) (string, bool) {
	a, ok := e.byPlayer(playerID)
	if !ok {
		return "", false
	}
	return a.roomID, true
}

// Sessions returns a snapshot of every live session, ordered by room.
func (e *Engine) Sessions() []*session.Session {
	e.mu.Lock()
	actors := make([]*actor, 0, len(e.rooms))
	for _, a := range e.rooms {
		actors = append(actors, a)
	}
	e.mu.Unlock()

	out := make([]*session.Session, 0, len(actors))
	for _, a := range actors {
		out = append(out, a.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Resume loads persisted sessions after a restart. Finished sessions are torn
// down, a player with several live sessions keeps only the most recently
// updated one, and every kept session re-posts its last prompt.
func (e *Engine) Resume(ctx context.Context) error {
	sessions, err := e.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	kept := make(map[string]bool)
	resumed := 0
	for _, s := range sessions {
		log := logger.WithSession(e.logger, s).With("phase", s.Phase)

		if _, live := e.byRoom(s.RoomID); live {
			continue
		}

		switch {
		case s.Phase == session.PhaseWon || s.Phase == session.PhaseAborted:
			log.Info("Tearing down finished session")
			e.teardown(ctx, s, log)
			continue
		case kept[s.PlayerID]:
			log.Warn("Duplicate session for player, aborting older one")
			e.abortStale(ctx, s, log)
			continue
		}

		if err := s.Validate(e.catalog, e.policy.Disallowed); err != nil {
			log.Error("Persisted session violates invariants, aborting", "error", err)
			e.abortStale(ctx, s, log)
			continue
		}

		a, err := e.spawn(s)
		if err != nil {
			return err
		}
		kept[s.PlayerID] = true
		a.queue.push(request{kind: reqResume}, false)
		resumed++
	}

	e.logger.Info("Sessions resumed", "loaded", len(sessions), "resumed", resumed)
	return nil
}

func (e *Engine) abortStale(ctx context.Context, s *session.Session, log *slog.Logger) {
	s.Phase = session.PhaseAborted
	s.Touch()
	if err := e.store.Put(ctx, s); err != nil {
		log.Warn("Failed to checkpoint aborted session", "error", err)
	}
	if err := e.platform.Send(ctx, s.RoomID, notice(msgEnded)); err != nil {
		log.Warn("Failed to send message", "error", err)
	}
	e.teardown(ctx, s, log)
}

// teardown retries a failed teardown a few times; the custodian only repeats
// the record delete on later attempts.
func (e *Engine) teardown(ctx context.Context, s *session.Session, log *slog.Logger) {
	for attempt := 1; ; attempt++ {
		err := e.custodian.Teardown(ctx, s)
		if err == nil {
			return
		}
		if attempt == teardownAttempts {
			log.Error("Teardown incomplete", "error", err, "attempts", attempt)
			return
		}
		log.Warn("Teardown failed, retrying", "error", err, "attempt", attempt)

		select {
		case <-ctx.Done():
			log.Error("Teardown incomplete", "error", ctx.Err())
			return
		case <-time.After(teardownRetryDelay * time.Duration(attempt)):
		}
	}
}

// Close stops every actor after its current request and waits for them.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) spawn(s *session.Session) (*actor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	a := newActor(e, s)
	e.rooms[s.RoomID] = a
	e.players[s.PlayerID] = a
	e.wg.Add(1)
	go a.run()
	return a, nil
}

func (e *Engine) unregister(a *actor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rooms[a.roomID] == a {
		delete(e.rooms, a.roomID)
	}
	if e.players[a.playerID] == a {
		delete(e.players, a.playerID)
	}
}

func (e *Engine) byRoom(roomID string) (*actor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.rooms[roomID]
	return a, ok
}

func (e *Engine) byPlayer(playerID string) (*actor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.players[playerID]
	return a, ok
}

func (e *Engine) ownedActor(roomID, playerID string) (*actor, error) {
	a, ok := e.byRoom(roomID)
	if !ok {
		return nil, ErrNoSession
	}
	if a.playerID != playerID {
		return nil, ErrNotPlayer
	}
	return a, nil
}

// call queues req and waits for the actor's answer.
func (e *Engine) call(ctx context.Context, a *actor, req request, front bool) (string, error) {
	req.done = make(chan result, 1)
	if !a.queue.push(req, front) {
		return "", ErrNoSession
	}
	if front {
		a.interrupt()
	}

	select {
	case res := <-req.done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

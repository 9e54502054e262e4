// Package custodian creates and destroys play rooms and swaps a player's
// roles for the engine's player role while a session lives.
package custodian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

// DefaultGracePeriod is how long a finished room stays readable.
const DefaultGracePeriod = 30 * time.Second

// Config holds the role ids the custodian works with.
type Config struct {
	// PlayerRole is the engine-owned role granted for the session. Empty
	// disables the role swap entirely.
	PlayerRole string
	// StaffRoles exempt a player from the role swap.
	StaffRoles []string
	// ManagedRoles limits which roles may be removed and restored. Empty
	// means every role except staff roles and PlayerRole.
	ManagedRoles []string
	GracePeriod  time.Duration
}

type Custodian struct {
	platform host.Platform
	store    storage.Storage
	cfg      Config
	logger   *slog.Logger

	mu sync.Mutex
	// released holds rooms whose roles and room were already handled;
	// deleted holds rooms whose record is gone too.
	released map[string]bool
	deleted  map[string]bool
	pending  map[string]*time.Timer
	wg       sync.WaitGroup
}

func New(platform host.Platform, store storage.Storage, cfg Config, logger *slog.Logger) *Custodian {
	if cfg.GracePeriod < 0 {
		cfg.GracePeriod = 0
	}
	return &Custodian{
		platform: platform,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		released: make(map[string]bool),
		deleted:  make(map[string]bool),
		pending:  make(map[string]*time.Timer),
	}
}

// IsStaff reports whether the player holds a staff role. Lookup failures
// count as not staff.
func (c *Custodian) IsStaff(ctx context.Context, playerID string) bool {
	roles, err := c.platform.Roles(ctx, playerID)
	if err != nil {
		c.logger.Warn("Failed to read player roles", "player_id", playerID, "error", err)
		return false
	}
	return c.hasStaffRole(roles)
}

func (c *Custodian) hasStaffRole(roles []string) bool {
	for _, r := range roles {
		if slices.Contains(c.cfg.StaffRoles, r) {
			return true
		}
	}
	return false
}

func (c *Custodian) managed(role string) bool {
	if role == c.cfg.PlayerRole || slices.Contains(c.cfg.StaffRoles, role) {
		return false
	}
	return len(c.cfg.ManagedRoles) == 0 || slices.Contains(c.cfg.ManagedRoles, role)
}

// Setup opens a room for the player, swaps their roles, persists a new
// session awaiting consent and posts prompt into the room. On a persistence
// failure the room and roles are rolled back.
func (c *Custodian) Setup(ctx context.Context, player host.Player, theme string, prompt host.Message) (*session.Session, error) {
	log := c.logger.With("player_id", player.ID)

	roomID, err := c.platform.CreateRoom(ctx, player, roomName(player))
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	log = log.With("room_id", roomID)

	s := session.New(roomID, player.ID, player.DisplayName, strings.TrimSpace(theme))

	roles, err := c.platform.Roles(ctx, player.ID)
	if err != nil {
		// without a snapshot nothing can be restored, so nothing is removed
		log.Warn("Failed to snapshot roles, skipping role swap", "error", err)
		roles = nil
	}

	s.Staff = c.hasStaffRole(roles)
	if s.Staff {
		log.Info("Staff player, keeping roles")
	} else if c.cfg.PlayerRole != "" {
		for _, r := range roles {
			if !c.managed(r) {
				continue
			}
			if err := c.platform.RemoveRole(ctx, player.ID, r); err != nil {
				log.Warn("Failed to remove role", "role_id", r, "error", err)
				continue
			}
			s.PriorRoles = append(s.PriorRoles, r)
		}
		if err := c.platform.AddRole(ctx, player.ID, c.cfg.PlayerRole); err != nil {
			log.Warn("Failed to assign player role", "role_id", c.cfg.PlayerRole, "error", err)
		}
	}

	if err := c.store.Put(ctx, s); err != nil {
		log.Error("Failed to persist new session, rolling back", "error", err)
		c.restoreRoles(ctx, s, log)
		if derr := c.platform.DestroyRoom(ctx, roomID); derr != nil {
			log.Warn("Failed to destroy room", "error", derr)
		}
		return nil, wrapPersistence(err)
	}

	if err := c.platform.Send(ctx, roomID, prompt); err != nil {
		log.Warn("Failed to send consent prompt", "error", err)
	}

	log.Info("Session set up", "staff", s.Staff, "prior_roles", len(s.PriorRoles))
	return s, nil
}

// Teardown restores the player's roles, schedules the room for destruction
// after the grace period and deletes the session. Roles and the room are
// handled on the first call only. The delete is retried by later calls until
// it succeeds, after which Teardown is a no-op. Role and room failures are
// logged and never stop teardown; the returned error is only for a failed
// delete.
func (c *Custodian) Teardown(ctx context.Context, s *session.Session) error {
	c.mu.Lock()
	if c.deleted[s.RoomID] {
		c.mu.Unlock()
		return nil
	}
	release := !c.released[s.RoomID]
	c.released[s.RoomID] = true
	c.mu.Unlock()

	log := c.logger.With("room_id", s.RoomID, "player_id", s.PlayerID, "phase", s.Phase)

	if release {
		c.restoreRoles(ctx, s, log)
		c.scheduleDestroy(s.RoomID, log)
	}

	if err := c.store.Delete(ctx, s.RoomID); err != nil {
		log.Error("Failed to delete session", "error", err)
		return wrapPersistence(err)
	}

	c.mu.Lock()
	c.deleted[s.RoomID] = true
	c.mu.Unlock()

	log.Info("Session torn down")
	return nil
}

func (c *Custodian) restoreRoles(ctx context.Context, s *session.Session, log *slog.Logger) {
	if s.Staff || c.cfg.PlayerRole == "" {
		return
	}
	for _, r := range s.PriorRoles {
		if err := c.platform.AddRole(ctx, s.PlayerID, r); err != nil {
			if errors.Is(err, host.ErrUnmanagedRole) {
				log.Info("Skipping role the engine cannot manage", "role_id", r)
			} else {
				log.Warn("Failed to restore role", "role_id", r, "error", err)
			}
		}
	}
	if err := c.platform.RemoveRole(ctx, s.PlayerID, c.cfg.PlayerRole); err != nil {
		log.Warn("Failed to remove player role", "role_id", c.cfg.PlayerRole, "error", err)
	}
}

func (c *Custodian) scheduleDestroy(roomID string, log *slog.Logger) {
	if c.cfg.GracePeriod == 0 {
		c.destroy(roomID, log)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[roomID]; ok {
		return
	}
	c.wg.Add(1)
	c.pending[roomID] = time.AfterFunc(c.cfg.GracePeriod, func() {
		defer c.wg.Done()
		c.mu.Lock()
		delete(c.pending, roomID)
		c.mu.Unlock()
		c.destroy(roomID, log)
	})
}

func (c *Custodian) destroy(roomID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.platform.DestroyRoom(ctx, roomID); err != nil {
		log.Warn("Failed to destroy room", "error", err)
		return
	}
	log.Debug("Room destroyed")
}

// Close destroys rooms still waiting out their grace period and waits for
// in-flight destructions.
func (c *Custodian) Close() {
	c.mu.Lock()
	var now []string
	for roomID, t := range c.pending {
		if t.Stop() {
			c.wg.Done()
			now = append(now, roomID)
		}
		delete(c.pending, roomID)
	}
	c.mu.Unlock()

	for _, roomID := range now {
		c.destroy(roomID, c.logger.With("room_id", roomID))
	}
	c.wg.Wait()
}

func roomName(p host.Player) string {
	name := p.DisplayName
	if name == "" {
		name = p.ID
	}
	return "escape-" + name
}

func wrapPersistence(err error) error {
	if errors.Is(err, storage.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrPersistence, err)
}

// Package session defines the per-player state of one adventure in one play room.
package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/jwebster45206/escape-engine/pkg/restraint"
)

// HistoryLimit is the number of history entries retained per session.
const HistoryLimit = 20

// Phase is the lifecycle position of a session.
type Phase string

const (
	PhaseAwaitingConsent Phase = "awaiting_consent"
	PhaseActive          Phase = "active"
	PhaseWon             Phase = "won"
	PhaseSurrendered     Phase = "surrendered"
	PhaseAborted         Phase = "aborted"
)

func (p Phase) String() string {
	return string(p)
}

// IsValid checks if the phase is known
func (p Phase) IsValid() bool {
	switch p {
	case PhaseAwaitingConsent, PhaseActive, PhaseWon, PhaseSurrendered, PhaseAborted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the phase ends play.
func (p Phase) IsTerminal() bool {
	return p == PhaseWon || p == PhaseSurrendered || p == PhaseAborted
}

// Role identifies who produced a history entry.
type Role string

const (
	RolePlayer   Role = "player"
	RoleNarrator Role = "narrator"
)

// HistoryEntry is one turn of the conversation.
type HistoryEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Session is the complete state of one play.
type Session struct {
	RoomID            string `json:"room_id"`
	PlayerID          string `json:"player_id"`
	PlayerDisplayName string `json:"player_display_name"`

	Theme             string `json:"theme,omitempty"`
	ThemeAutoAssigned bool   `json:"theme_auto_assigned,omitempty"`

	AllowedRestraints []restraint.Kind `json:"allowed_restraints"`
	ConsentCommitted  bool             `json:"consent_committed"`
	CurrentRestraints restraint.Levels `json:"current_restraints"`
	Incapacitated     bool             `json:"incapacitated"`

	History        []HistoryEntry `json:"history"`
	PendingChoices []string       `json:"pending_choices"`
	Phase          Phase          `json:"phase"`

	// PriorRoles are the host roles removed at setup, restored at teardown.
	PriorRoles []string `json:"prior_roles"`
	// Staff sessions never had their roles swapped.
	Staff bool `json:"staff,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session awaiting consent.
func New(roomID, playerID, displayName, theme string) *Session {
	now := time.Now().UTC()
	return &Session{
		RoomID:            roomID,
		PlayerID:          playerID,
		PlayerDisplayName: displayName,
		Theme:             theme,
		AllowedRestraints: []restraint.Kind{},
		CurrentRestraints: restraint.Levels{},
		History:           []HistoryEntry{},
		PendingChoices:    []string{},
		PriorRoles:        []string{},
		Phase:             PhaseAwaitingConsent,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// AppendHistory adds an entry, dropping the oldest entries beyond HistoryLimit.
func (s *Session) AppendHistory(role Role, text string) {
	s.History = append(s.History, HistoryEntry{Role: role, Text: text})
	if over := len(s.History) - HistoryLimit; over > 0 {
		s.History = slices.Clone(s.History[over:])
	}
}

// Allows reports whether the player consented to k.
func (s *Session) Allows(k restraint.Kind) bool {
	return slices.Contains(s.AllowedRestraints, k)
}

// Level returns the current intensity of k.
func (s *Session) Level(k restraint.Kind) int {
	return s.CurrentRestraints[k]
}

// CommitConsent fixes the allowed set and activates the session. It is an
// error to commit twice.
func (s *Session) CommitConsent(kinds []restraint.Kind) error {
	if s.ConsentCommitted || s.Phase != PhaseAwaitingConsent {
		return fmt.Errorf("consent already committed for room %s", s.RoomID)
	}
	s.AllowedRestraints = slices.Clone(kinds)
	if s.AllowedRestraints == nil {
		s.AllowedRestraints = []restraint.Kind{}
	}
	s.ConsentCommitted = true
	s.Phase = PhaseActive
	return nil
}

// AdoptTheme sets the theme if none is set yet. It reports whether the theme changed.
func (s *Session) AdoptTheme(theme string) bool {
	if s.Theme != "" || theme == "" {
		return false
	}
	s.Theme = theme
	s.ThemeAutoAssigned = true
	return true
}

// Recompute refreshes Incapacitated from the current intensities and reports
// whether it changed.
func (s *Session) Recompute(catalog *restraint.Catalog) bool {
	was := s.Incapacitated
	s.Incapacitated = catalog.IsIncapacitated(s.CurrentRestraints)
	return was != s.Incapacitated
}

// Reset wipes play state for a retry. The allowed set, prior roles and a
// player-supplied theme survive; the session returns to awaiting consent.
func (s *Session) Reset() {
	s.History = []HistoryEntry{}
	s.CurrentRestraints = restraint.Levels{}
	s.PendingChoices = []string{}
	s.Incapacitated = false
	if s.ThemeAutoAssigned {
		s.Theme = ""
		s.ThemeAutoAssigned = false
	}
	s.ConsentCommitted = false
	s.Phase = PhaseAwaitingConsent
}

// Touch stamps UpdatedAt.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.AllowedRestraints = slices.Clone(s.AllowedRestraints)
	cp.CurrentRestraints = s.CurrentRestraints.Clone()
	cp.History = slices.Clone(s.History)
	cp.PendingChoices = slices.Clone(s.PendingChoices)
	cp.PriorRoles = slices.Clone(s.PriorRoles)
	return &cp
}

// Validate checks the session invariants against the catalog and the globally
// disallowed kinds.
func (s *Session) Validate(catalog *restraint.Catalog, disallowed []restraint.Kind) error {
	if s.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	if s.PlayerID == "" {
		return fmt.Errorf("player id is required")
	}
	if !s.Phase.IsValid() {
		return fmt.Errorf("invalid phase %q", s.Phase)
	}
	if (s.Phase == PhaseAwaitingConsent && s.ConsentCommitted) || (s.Phase == PhaseActive && !s.ConsentCommitted) {
		return fmt.Errorf("phase %s inconsistent with consent committed=%t", s.Phase, s.ConsentCommitted)
	}
	for _, k := range s.AllowedRestraints {
		if slices.Contains(disallowed, k) {
			return fmt.Errorf("allowed restraint %s is globally disallowed", k)
		}
	}
	for k, v := range s.CurrentRestraints {
		if !s.Allows(k) {
			return fmt.Errorf("restraint %s is set but not allowed", k)
		}
		if v < 0 || v > catalog.Max(k) {
			return fmt.Errorf("restraint %s intensity %d out of range [0, %d]", k, v, catalog.Max(k))
		}
	}
	if len(s.History) > HistoryLimit {
		return fmt.Errorf("history has %d entries, limit is %d", len(s.History), HistoryLimit)
	}
	if s.Incapacitated != catalog.IsIncapacitated(s.CurrentRestraints) {
		return fmt.Errorf("incapacitated flag out of date")
	}
	return nil
}

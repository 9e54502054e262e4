package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/escape-engine/internal/engine"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionSummary is the operator view of a live session. History is
// summarised by length only.
type SessionSummary struct {
	RoomID            string           `json:"room_id"`
	PlayerID          string           `json:"player_id"`
	PlayerDisplayName string           `json:"player_display_name"`
	Phase             session.Phase    `json:"phase"`
	Theme             string           `json:"theme,omitempty"`
	AllowedRestraints []restraint.Kind `json:"allowed_restraints"`
	CurrentRestraints restraint.Levels `json:"current_restraints"`
	Incapacitated     bool             `json:"incapacitated"`
	Turns             int              `json:"history_length"`
	Staff             bool             `json:"staff,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func summarize(s *session.Session) SessionSummary {
	return SessionSummary{
		RoomID:            s.RoomID,
		PlayerID:          s.PlayerID,
		PlayerDisplayName: s.PlayerDisplayName,
		Phase:             s.Phase,
		Theme:             s.Theme,
		AllowedRestraints: s.AllowedRestraints,
		CurrentRestraints: s.CurrentRestraints,
		Incapacitated:     s.Incapacitated,
		Turns:             len(s.History),
		Staff:             s.Staff,
		UpdatedAt:         s.UpdatedAt,
	}
}

// SessionEngine is the engine surface the admin API needs.
type SessionEngine interface {
	Sessions() []*session.Session
	Abort(ctx context.Context, playerID string) error
}

type SessionsHandler struct {
	engine SessionEngine
	logger *slog.Logger
}

func NewSessionsHandler(e SessionEngine, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{engine: e, logger: logger}
}

// Count implements SessionCounter.
func (h *SessionsHandler) Count() int {
	return len(h.engine.Sessions())
}

// List handles GET /v1/sessions
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	out := make([]SessionSummary, 0)
	for _, s := range h.engine.Sessions() {
		out = append(out, summarize(s))
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

// Get handles GET /v1/sessions/{player}
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	for _, s := range h.engine.Sessions() {
		if s.PlayerID == player {
			writeJSON(w, h.logger, http.StatusOK, summarize(s))
			return
		}
	}
	writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "Session not found"})
}

// End handles DELETE /v1/sessions/{player}. The room is torn down as if the
// player had been ended by staff.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	err := h.engine.Abort(r.Context(), player)
	switch {
	case errors.Is(err, engine.ErrNoSession):
		writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "Session not found"})
		return
	case err != nil:
		h.logger.Error("Failed to end session", "error", err, "player_id", player)
		writeJSON(w, h.logger, http.StatusInternalServerError, ErrorResponse{Error: "Failed to end session"})
		return
	}

	h.logger.Info("Session ended by operator", "player_id", player)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

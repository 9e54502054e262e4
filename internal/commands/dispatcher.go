package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/escape-engine/internal/engine"
	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

// Private replies to the invoking player.
const (
	replyStarted      = "Your room is ready. Answer the consent question there to begin."
	replyExists       = "You already have a session running in %s. Use /end to stop it first."
	replyStarting     = "Your room is still being set up. Try again in a moment."
	replyNoSession    = "You do not have a session running."
	replyNoRoom       = "There is no session in this room."
	replyNoTarget     = "That player does not have a session running."
	replyNotStaff     = "Only staff can do that."
	replyNotSurrender = "That only works after you have given in."
	replyEnded        = "Session ended."
	replyReset        = "Consent reset. The player has been asked again."
	replyRoomOnly     = "Run this command inside a play room."
	replyUnavailable  = "Something went wrong. Try again in a moment."
	replyStartFailed  = "Could not open a room right now. Try again in a moment."
	replyUnknown      = "Unknown command."
)

const helpText = "Commands:\n" +
	"/start [theme] - open a private room and begin an adventure\n" +
	"/end - end your session (staff: /end @player)\n" +
	"/retry - start over after giving in\n" +
	"/quit - leave after giving in\n" +
	"/status - show your session\n" +
	"/reset_consent - staff only, run inside a play room"

// Engine is the part of the engine the dispatcher drives.
type Engine interface {
	Start(ctx context.Context, player host.Player, theme string) (*session.Session, error)
	HandleMessage(roomID string, player host.Player, text string) error
	Retry(ctx context.Context, player host.Player) error
	Quit(ctx context.Context, player host.Player) error
	End(ctx context.Context, invoker host.Player, target string) error
	ResetConsent(ctx context.Context, invoker host.Player, roomID string) error
	Status(ctx context.Context, player host.Player, roomID string) (string, error)
}

var _ Engine = (*engine.Engine)(nil)

// Dispatcher routes host events to the engine.
type Dispatcher struct {
	engine   Engine
	roomLink func(roomID string) string
	logger   *slog.Logger
}

var _ host.Handler = (*Dispatcher)(nil)

func NewDispatcher(e Engine, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		engine:   e,
		roomLink: func(roomID string) string { return roomID },
		logger:   logger,
	}
}

// WithRoomLink sets how room ids are rendered in replies, e.g. as a channel
// mention on Slack.
func (d *Dispatcher) WithRoomLink(link func(roomID string) string) *Dispatcher {
	d.roomLink = link
	return d
}

// HandleEvent runs one command or room message. Expected refusals come back
// as reply text with a nil error; the error is reserved for failures the host
// should log.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev host.Event) (string, error) {
	if ev.Kind == host.EventMessage {
		return "", d.handleMessage(ev)
	}

	cmd, ok := Parse(ev.Text)
	if !ok {
		return replyUnknown + "\n" + helpText, nil
	}

	log := d.logger.With("command", string(cmd.Name), "player_id", ev.Player.ID)
	if ev.RoomID != "" {
		log = log.With("room_id", ev.RoomID)
	}
	log.Debug("Handling command")

	switch cmd.Name {
	case CmdStart:
		_, err := d.engine.Start(ctx, ev.Player, cmd.Arg)
		if err != nil {
			return d.reply(log, err, replyStartFailed)
		}
		return replyStarted, nil

	case CmdEnd:
		target := PlayerRef(cmd.Arg)
		if err := d.engine.End(ctx, ev.Player, target); err != nil {
			if errors.Is(err, engine.ErrNoSession) && target != "" && target != ev.Player.ID {
				return replyNoTarget, nil
			}
			return d.reply(log, err, replyUnavailable)
		}
		return replyEnded, nil

	case CmdRetry:
		if err := d.engine.Retry(ctx, ev.Player); err != nil {
			return d.reply(log, err, replyUnavailable)
		}
		return "", nil

	case CmdQuit:
		if err := d.engine.Quit(ctx, ev.Player); err != nil {
			return d.reply(log, err, replyUnavailable)
		}
		return "", nil

	case CmdStatus:
		text, err := d.engine.Status(ctx, ev.Player, "")
		if err != nil {
			return d.reply(log, err, replyUnavailable)
		}
		return text, nil

	case CmdResetConsent:
		if ev.RoomID == "" {
			return replyRoomOnly, nil
		}
		if err := d.engine.ResetConsent(ctx, ev.Player, ev.RoomID); err != nil {
			if errors.Is(err, engine.ErrNoSession) {
				return replyNoRoom, nil
			}
			return d.reply(log, err, replyUnavailable)
		}
		return replyReset, nil

	case CmdHelp:
		return helpText, nil
	}

	return replyUnknown, nil
}

// handleMessage forwards room chatter. Messages outside play rooms, or from
// anyone but the room's player, are ignored.
func (d *Dispatcher) handleMessage(ev host.Event) error {
	if ev.RoomID == "" {
		return nil
	}
	err := d.engine.HandleMessage(ev.RoomID, ev.Player, ev.Text)
	if errors.Is(err, engine.ErrNoSession) || errors.Is(err, engine.ErrNotPlayer) {
		return nil
	}
	return err
}

// reply maps an engine error to the invoker's reply. Unexpected errors are
// returned so the host logs them.
func (d *Dispatcher) reply(log *slog.Logger, err error, fallback string) (string, error) {
	var exists *engine.SessionExistsError
	switch {
	case errors.As(err, &exists):
		if exists.RoomID == "" {
			return replyStarting, nil
		}
		return fmt.Sprintf(replyExists, d.roomLink(exists.RoomID)), nil
	case errors.Is(err, engine.ErrSessionExists):
		return replyStarting, nil
	case errors.Is(err, engine.ErrNoSession):
		return replyNoSession, nil
	case errors.Is(err, engine.ErrNotStaff):
		return replyNotStaff, nil
	case errors.Is(err, engine.ErrWrongPhase):
		return replyNotSurrender, nil
	case errors.Is(err, storage.ErrPersistence):
		log.Error("Command failed to persist", "error", err)
		return fallback, nil
	}
	log.Error("Command failed", "error", err)
	return fallback, err
}

// Package host defines what the engine needs from a chat platform: private
// play rooms, role membership, and message delivery.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnmanagedRole is returned when the platform refuses to touch a role,
// e.g. because it sits above the bot in the hierarchy or no longer exists.
var ErrUnmanagedRole = errors.New("role cannot be managed")

// ErrRoomNotFound is returned for operations on a room that does not exist.
var ErrRoomNotFound = errors.New("room not found")

// MessageKind tells the platform how to present a message.
type MessageKind string

const (
	KindNarration MessageKind = "narration" // scene prose, with numbered choices
	KindPrompt    MessageKind = "prompt"    // consent and retry/quit offers
	KindNotice    MessageKind = "notice"    // state notes, victory, surrender
	KindEcho      MessageKind = "echo"      // garbled player text
	KindError     MessageKind = "error"     // recoverable problems
)

// Message is one outbound message to a play room.
type Message struct {
	Kind    MessageKind
	Text    string
	Choices []string
	// Author is set on echoes to attribute the text to the player.
	Author string
}

// Body is the message text followed by its choices as a numbered list.
func (m Message) Body() string {
	if len(m.Choices) == 0 {
		return m.Text
	}
	var sb strings.Builder
	sb.WriteString(m.Text)
	sb.WriteString("\n")
	for i, c := range m.Choices {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, c)
	}
	return sb.String()
}

// Player identifies a user on the platform.
type Player struct {
	ID          string
	DisplayName string
}

// Platform is implemented by each chat host. All methods may fail and must be
// safe for concurrent use.
type Platform interface {
	// CreateRoom opens an isolated room visible to the player and returns its id.
	CreateRoom(ctx context.Context, player Player, name string) (string, error)
	// DestroyRoom removes a room. Destroying a missing room is not an error.
	DestroyRoom(ctx context.Context, roomID string) error

	// Roles returns the role ids the player currently holds.
	Roles(ctx context.Context, playerID string) ([]string, error)
	AddRole(ctx context.Context, playerID, roleID string) error
	RemoveRole(ctx context.Context, playerID, roleID string) error

	// Send posts a message into a room.
	Send(ctx context.Context, roomID string, msg Message) error
}

// EventKind separates slash commands from plain room messages.
type EventKind string

const (
	EventCommand EventKind = "command"
	EventMessage EventKind = "message"
)

// Event is an inbound command or message from a player.
type Event struct {
	Kind   EventKind
	Player Player
	// RoomID is the room or channel the event happened in, if any. Whether it
	// is a play room is for the engine to decide.
	RoomID string
	Text   string
}

// Handler consumes inbound events. The returned text, if any, is shown only to
// the invoking player.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) (string, error)

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) (string, error) {
	return f(ctx, ev)
}

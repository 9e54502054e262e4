// Package hostfake provides an in-memory host.Platform for tests.
package hostfake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jwebster45206/escape-engine/internal/host"
)

// Sent is one recorded outbound message.
type Sent struct {
	RoomID  string
	Message host.Message
}

// Platform is a mock implementation of host.Platform for testing. Set the
// ...Func fields to inject failures.
type Platform struct {
	CreateRoomFunc  func(ctx context.Context, player host.Player, name string) (string, error)
	DestroyRoomFunc func(ctx context.Context, roomID string) error
	AddRoleFunc     func(ctx context.Context, playerID, roleID string) error
	RemoveRoleFunc  func(ctx context.Context, playerID, roleID string) error
	SendFunc        func(ctx context.Context, roomID string, msg host.Message) error

	// Track calls for testing
	CreateRoomCalls  []string
	DestroyRoomCalls []string
	AddRoleCalls     [][2]string
	RemoveRoleCalls  [][2]string
	SentMessages     []Sent

	rooms map[string]bool
	roles map[string][]string
	next  int

	mu sync.Mutex
}

var _ host.Platform = (*Platform)(nil)

func New() *Platform {
	return &Platform{
		rooms: make(map[string]bool),
		roles: make(map[string][]string),
	}
}

// SetRoles seeds the roles a player holds.
func (p *Platform) SetRoles(playerID string, roles ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[playerID] = slices.Clone(roles)
}

// RolesOf returns the roles a player currently holds.
func (p *Platform) RolesOf(playerID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.roles[playerID])
}

// RoomExists reports whether a room is open.
func (p *Platform) RoomExists(roomID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rooms[roomID]
}

// Messages returns the messages sent to a room, in order.
func (p *Platform) Messages(roomID string) []host.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []host.Message
	for _, s := range p.SentMessages {
		if s.RoomID == roomID {
			out = append(out, s.Message)
		}
	}
	return out
}

// Last returns the most recent message sent to a room.
func (p *Platform) Last(roomID string) (host.Message, bool) {
	msgs := p.Messages(roomID)
	if len(msgs) == 0 {
		return host.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

func (p *Platform) CreateRoom(ctx context.Context, player host.Player, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CreateRoomCalls = append(p.CreateRoomCalls, player.ID)
	if p.CreateRoomFunc != nil {
		id, err := p.CreateRoomFunc(ctx, player, name)
		if err == nil {
			p.rooms[id] = true
		}
		return id, err
	}

	p.next++
	id := fmt.Sprintf("room-%d", p.next)
	p.rooms[id] = true
	return id, nil
}

func (p *Platform) DestroyRoom(ctx context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DestroyRoomCalls = append(p.DestroyRoomCalls, roomID)
	if p.DestroyRoomFunc != nil {
		if err := p.DestroyRoomFunc(ctx, roomID); err != nil {
			return err
		}
	}
	delete(p.rooms, roomID)
	return nil
}

func (p *Platform) Roles(ctx context.Context, playerID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.roles[playerID]), nil
}

func (p *Platform) AddRole(ctx context.Context, playerID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.AddRoleCalls = append(p.AddRoleCalls, [2]string{playerID, roleID})
	if p.AddRoleFunc != nil {
		if err := p.AddRoleFunc(ctx, playerID, roleID); err != nil {
			return err
		}
	}
	if !slices.Contains(p.roles[playerID], roleID) {
		p.roles[playerID] = append(p.roles[playerID], roleID)
	}
	return nil
}

func (p *Platform) RemoveRole(ctx context.Context, playerID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.RemoveRoleCalls = append(p.RemoveRoleCalls, [2]string{playerID, roleID})
	if p.RemoveRoleFunc != nil {
		if err := p.RemoveRoleFunc(ctx, playerID, roleID); err != nil {
			return err
		}
	}
	p.roles[playerID] = slices.DeleteFunc(p.roles[playerID], func(r string) bool { return r == roleID })
	return nil
}

func (p *Platform) Send(ctx context.Context, roomID string, msg host.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.SendFunc != nil {
		if err := p.SendFunc(ctx, roomID, msg); err != nil {
			return err
		}
	}
	p.SentMessages = append(p.SentMessages, Sent{RoomID: roomID, Message: msg})
	return nil
}

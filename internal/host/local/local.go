// Package local is an in-process host.Platform. Rooms and roles live in
// memory and every sent message is delivered on a channel, which the console
// renders.
package local

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/escape-engine/internal/host"
)

// Delivery is a message sent to a room.
type Delivery struct {
	RoomID  string
	Message host.Message
}

type Platform struct {
	mu    sync.Mutex
	rooms map[string]string // id -> name
	roles map[string][]string
	out   chan Delivery
}

var _ host.Platform = (*Platform)(nil)

// New returns a platform whose delivery channel holds up to buffer messages.
// Send blocks once the buffer is full.
func New(buffer int) *Platform {
	return &Platform{
		rooms: make(map[string]string),
		roles: make(map[string][]string),
		out:   make(chan Delivery, buffer),
	}
}

// Deliveries returns the channel every sent message arrives on.
func (p *Platform) Deliveries() <-chan Delivery {
	return p.out
}

// SetRoles seeds the roles a player holds.
func (p *Platform) SetRoles(playerID string, roles ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[playerID] = slices.Clone(roles)
}

// Restore re-opens rooms that outlived a previous process so resumed
// sessions can post to them.
func (p *Platform) Restore(roomIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range roomIDs {
		if _, ok := p.rooms[id]; !ok {
			p.rooms[id] = id
		}
	}
}

// Rooms returns the ids of open rooms.
func (p *Platform) Rooms() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.rooms))
	for id := range p.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *Platform) CreateRoom(ctx context.Context, player host.Player, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.NewString()
	p.rooms[id] = name
	return id, nil
}

func (p *Platform) DestroyRoom(ctx context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
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
	if !slices.Contains(p.roles[playerID], roleID) {
		p.roles[playerID] = append(p.roles[playerID], roleID)
	}
	return nil
}

func (p *Platform) RemoveRole(ctx context.Context, playerID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[playerID] = slices.DeleteFunc(p.roles[playerID], func(r string) bool { return r == roleID })
	return nil
}

func (p *Platform) Send(ctx context.Context, roomID string, msg host.Message) error {
	p.mu.Lock()
	_, ok := p.rooms[roomID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", host.ErrRoomNotFound, roomID)
	}

	select {
	case p.out <- Delivery{RoomID: roomID, Message: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/jwebster45206/escape-engine/pkg/session"
)

// MockStorage is an in-memory Storage for testing. Func fields override the
// default behavior; calls are tracked.
type MockStorage struct {
	PingFunc    func(ctx context.Context) error
	LoadAllFunc func(ctx context.Context) ([]*session.Session, error)
	PutFunc     func(ctx context.Context, s *session.Session) error
	DeleteFunc  func(ctx context.Context, roomID string) error

	PutCalls    []string
	DeleteCalls []string

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[string]*session.Session),
	}
}

func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) LoadAll(ctx context.Context) ([]*session.Session, error) {
	if m.LoadAllFunc != nil {
		return m.LoadAllFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

func (m *MockStorage) Put(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	m.PutCalls = append(m.PutCalls, s.RoomID)
	m.mu.Unlock()

	if m.PutFunc != nil {
		if err := m.PutFunc(ctx, s); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.RoomID] = s.Clone()
	return nil
}

func (m *MockStorage) Delete(ctx context.Context, roomID string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, roomID)
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, roomID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, roomID)
	return nil
}

// Get returns a copy of the stored session, or nil.
func (m *MockStorage) Get(roomID string) *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[roomID]; ok {
		return s.Clone()
	}
	return nil
}

// Seed stores sessions directly, bypassing call tracking.
func (m *MockStorage) Seed(sessions ...*session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		m.sessions[s.RoomID] = s.Clone()
	}
}

// Calls returns copies of the tracked put and delete calls.
func (m *MockStorage) Calls() (puts []string, deletes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.PutCalls...), append([]string(nil), m.DeleteCalls...)
}

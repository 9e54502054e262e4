package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jwebster45206/escape-engine/pkg/session"
)

// SessionsFile is the name of the session map inside the data directory.
const SessionsFile = "sessions.json"

// FileStorage keeps every session in one JSON file. Each write serializes the
// whole map to a sibling temp file and renames it over the live file, so a
// crash leaves either the old map or the new one on disk.
type FileStorage struct {
	path     string
	logger   *slog.Logger
	mu       sync.Mutex
	sessions map[string]*session.Session
	loaded   bool
}

// Ensure FileStorage implements Storage interface
var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates a file store under dataDir.
func NewFileStorage(dataDir string, logger *slog.Logger) (*FileStorage, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileStorage{
		path:     filepath.Join(dataDir, SessionsFile),
		logger:   logger,
		sessions: make(map[string]*session.Session),
	}, nil
}

func (f *FileStorage) Ping(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("data directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", dir)
	}
	return nil
}

func (f *FileStorage) Close() error {
	return nil
}

func (f *FileStorage) LoadAll(ctx context.Context) ([]*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return nil, err
	}

	out := make([]*session.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

func (f *FileStorage) Put(ctx context.Context, s *session.Session) error {
	if s == nil || s.RoomID == "" {
		return fmt.Errorf("%w: session with a room id is required", ErrPersistence)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	prev, existed := f.sessions[s.RoomID]
	f.sessions[s.RoomID] = s.Clone()

	if err := f.flushLocked(); err != nil {
		if existed {
			f.sessions[s.RoomID] = prev
		} else {
			delete(f.sessions, s.RoomID)
		}
		f.logger.Error("Failed to save session", "room_id", s.RoomID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}

func (f *FileStorage) Delete(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	prev, existed := f.sessions[roomID]
	if !existed {
		return nil
	}
	delete(f.sessions, roomID)

	if err := f.flushLocked(); err != nil {
		f.sessions[roomID] = prev
		f.logger.Error("Failed to delete session", "room_id", roomID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}

func (f *FileStorage) loadLocked() error {
	if f.loaded {
		return nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read sessions file: %w", err)
	}

	sessions := make(map[string]*session.Session)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sessions); err != nil {
			return fmt.Errorf("failed to unmarshal sessions file: %w", err)
		}
	}

	for roomID, s := range sessions {
		if s == nil {
			delete(sessions, roomID)
			continue
		}
		s.RoomID = roomID
	}

	f.sessions = sessions
	f.loaded = true
	return nil
}

func (f *FileStorage) flushLocked() error {
	data, err := json.MarshalIndent(f.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+SessionsFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace sessions file: %w", err)
	}

	// the rename is only durable once the directory entry is
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}

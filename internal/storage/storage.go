// Package storage persists live sessions so that play survives a restart.
package storage

import (
	"context"
	"errors"

	"github.com/jwebster45206/escape-engine/pkg/session"
)

// ErrPersistence wraps every failed write. Callers abort the current turn on it.
var ErrPersistence = errors.New("session persistence failed")

// Storage is a crash-safe map from room id to session.
type Storage interface {
	// Ping tests the backend connection
	Ping(ctx context.Context) error

	// Close releases the backend
	Close() error

	// LoadAll returns every committed session
	LoadAll(ctx context.Context) ([]*session.Session, error)

	// Put commits a session. When it returns nil the session is durable.
	Put(ctx context.Context, s *session.Session) error

	// Delete removes a session. Deleting a missing room is not an error.
	Delete(ctx context.Context, roomID string) error
}

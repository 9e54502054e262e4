package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwebster45206/escape-engine/pkg/session"
)

// SQLiteStorage keeps one row per room in a WAL-mode SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStorage implements Storage interface
var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (or creates) the database in dataDir.
func NewSQLiteStorage(dataDir string, logger *slog.Logger) (*SQLiteStorage, error) {
	dbPath := filepath.Join(dataDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode so a crash mid-write never corrupts committed rows.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting synchronous mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStorage{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			room_id    TEXT PRIMARY KEY,
			player_id  TEXT NOT NULL,
			phase      TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_player_id
			ON sessions(player_id);
	`)
	return err
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) LoadAll(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT room_id, data FROM sessions ORDER BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		var roomID, data string
		if err := rows.Scan(&roomID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		var sess session.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			s.logger.Error("Failed to unmarshal session", "room_id", roomID, "error", err)
			continue
		}
		sess.RoomID = roomID
		out = append(out, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return out, nil
}

func (s *SQLiteStorage) Put(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.RoomID == "" {
		return fmt.Errorf("%w: session with a room id is required", ErrPersistence)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal session: %w", ErrPersistence, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (room_id, player_id, phase, data, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET
			player_id = excluded.player_id,
			phase = excluded.phase,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		sess.RoomID, sess.PlayerID, string(sess.Phase), string(data), time.Now().UTC(),
	)
	if err != nil {
		s.logger.Error("Failed to save session", "room_id", sess.RoomID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE room_id = ?`, roomID); err != nil {
		s.logger.Error("Failed to delete session", "room_id", roomID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

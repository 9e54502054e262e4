package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/escape-engine/pkg/session"
)

// sessionsKey is the hash holding one field per room.
const sessionsKey = "escape:sessions"

// RedisStorage keeps sessions in a Redis hash. A single HSET is atomic, so a
// failed write never touches other rooms.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis storage instance from a redis:// URL.
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisStorage{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) LoadAll(ctx context.Context) ([]*session.Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	out := make([]*session.Session, 0, len(fields))
	for roomID, data := range fields {
		var s session.Session
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			// one bad record must not hide the other rooms
			r.logger.Error("Failed to unmarshal session", "room_id", roomID, "error", err)
			continue
		}
		s.RoomID = roomID
		out = append(out, &s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

func (r *RedisStorage) Put(ctx context.Context, s *session.Session) error {
	if s == nil || s.RoomID == "" {
		return fmt.Errorf("%w: session with a room id is required", ErrPersistence)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal session: %w", ErrPersistence, err)
	}

	if err := r.client.HSet(ctx, sessionsKey, s.RoomID, string(data)).Err(); err != nil {
		r.logger.Error("Failed to save session", "room_id", s.RoomID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, roomID string) error {
	if err := r.client.HDel(ctx, sessionsKey, roomID).Err(); err != nil {
		r.logger.Error("Failed to delete session", "room_id", roomID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

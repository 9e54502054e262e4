package storage

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Open creates the storage backend named by backend.
func Open(backend, dataDir, redisURL string, logger *slog.Logger) (Storage, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileStorage(dataDir, logger)
	case BackendRedis:
		return NewRedisStorage(redisURL, logger)
	case BackendSQLite:
		return NewSQLiteStorage(dataDir, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

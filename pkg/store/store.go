package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tycho-hq/meridian/pkg/config"
)

// Store is a small key-value surface with per-key TTLs. The health and
// quota trackers persist their records through it; the memory backend
// scopes them to one process, the sqlite backend shares them across
// restarts and co-located replicas.
type Store interface {
	// Get returns the value for key, or nil when the key is absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put upserts key with a time-to-live. A ttl of zero or less stores
	// the entry without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries and returns how many were dropped.
	Cleanup(ctx context.Context) (int, error)

	// Close releases resources. Close is idempotent.
	Close() error
}

// Open constructs the configured store backend.
func Open(cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil

	case "sqlite":
		return NewSQLiteStore(SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

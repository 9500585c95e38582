package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registers "sqlite3"
	_ "modernc.org/sqlite"          // pure-Go driver, registers "sqlite"
)

// SQLiteConfig configures the sqlite store backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the implementation: "auto" (cgo build gets
	// mattn/go-sqlite3, otherwise modernc.org/sqlite), "cgo", or "pure".
	Driver string

	// BusyTimeout is how long a locked database is retried before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// SQLiteStore implements Store on a WAL-mode SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt     *sql.Stmt
	putStmt     *sql.Stmt
	deleteStmt  *sql.Stmt
	cleanupStmt *sql.Stmt

	done      chan struct{}
	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if necessary) the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store.sqlite")

	driver, err := sqliteDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := s.initialize(cfg.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	go s.checkpointLoop(cfg.CheckpointInterval)

	logger.Info("sqlite store initialized",
		"path", cfg.Path,
		"driver", driver,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// sqliteDriverName maps the configured driver selection to a registered
// database/sql driver name.
func sqliteDriverName(selection string) (string, error) {
	switch selection {
	case "", "auto":
		return autoSQLiteDriver, nil
	case "cgo":
		return "sqlite3", nil
	case "pure":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", selection)
	}
}

// initialize applies pragmas and creates the schema. Pragmas are issued as
// statements rather than DSN parameters so both drivers behave the same.
func (s *SQLiteStore) initialize(busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_entries(expires_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT value FROM kv_entries
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.putStmt, err = s.db.Prepare(`
		INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare put statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM kv_entries WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM kv_entries
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Get returns the value for key, or nil when absent or expired.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.getStmt.QueryRowContext(ctx, key, time.Now().UnixMilli()).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// Put upserts key with a time-to-live.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()

	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixMilli()
	}

	if _, err := s.putStmt.ExecContext(ctx, key, value, expiresAt, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Cleanup removes expired entries.
func (s *SQLiteStore) Cleanup(ctx context.Context) (int, error) {
	result, err := s.cleanupStmt.ExecContext(ctx, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(removed), nil
}

// Close stops the checkpoint loop and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{s.getStmt, s.putStmt, s.deleteStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic passive WAL checkpoints so the log does not
// grow unbounded between restarts.
func (s *SQLiteStore) checkpointLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

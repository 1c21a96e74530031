package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// memoryPath selects an in-memory database, mainly for tests.
const memoryPath = ":memory:"

// SQLite is the application database provider. It holds a single-writer
// pool in WAL mode.
type SQLite struct {
	path   string
	logger *zap.SugaredLogger

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLite creates an uninitialized provider for the database at path.
func NewSQLite(path string, logger *zap.SugaredLogger) *SQLite {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLite{path: path, logger: logger}
}

// Name identifies the provider in logs and metrics.
func (s *SQLite) Name() string { return "sqlite" }

// Path returns the configured database path.
func (s *SQLite) Path() string { return s.path }

// sqliteDSN builds a DSN whose pragmas are applied by the driver to every new
// pool connection, not only the first one.
func sqliteDSN(path string) string {
	pragmas := strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}, "&")
	if path == memoryPath {
		return "file::memory:?cache=shared&" + pragmas
	}
	return "file:" + path + "?" + pragmas
}

// configureSQLiteConnection verifies the pragmas took effect and the
// connection answers.
func configureSQLiteConnection(ctx context.Context, db *sql.DB, logger *zap.SugaredLogger, dbPath string) error {
	// SQLite disables foreign keys by default
	var fkEnabled int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got: %d, expected: 1)", fkEnabled)
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// in-memory databases report "memory", not "wal"
	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != memoryPath && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s, expected: wal)", journalMode)
	}
	logger.Debugw("SQLite connection configured", "journal_mode", journalMode)

	return nil
}

// Initialize opens and configures the connection pool. Calling it on an
// initialized provider is a no-op.
func (s *SQLite) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if err := validateDatabasePath(s.path); err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}

	if s.path != memoryPath {
		if dir := filepath.Dir(s.path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(s.path))
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // in-memory databases vanish with their last connection
	if err := configureSQLiteConnection(ctx, db, s.logger, s.path); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to configure connection: %w", err)
	}

	s.db = db
	s.logger.Infow("SQLite database initialized", "path", s.path)
	return nil
}

// DB returns the connection pool, or nil before Initialize.
func (s *SQLite) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Ping checks the connection.
func (s *SQLite) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrNotInitialized
	}
	return s.db.PingContext(ctx)
}

// Close closes the pool. Safe to call more than once and before Initialize.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.logger.Infow("SQLite database closed", "path", s.path)
	if err != nil {
		return fmt.Errorf("failed to close SQLite: %w", err)
	}
	return nil
}

// validateDatabasePath rejects paths that could escape the working directory.
func validateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if dbPath == memoryPath {
		return nil
	}
	if len(dbPath) > 512 {
		return fmt.Errorf("database path exceeds maximum length of 512 characters")
	}
	if strings.Contains(dbPath, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("path traversal not allowed (..): %s", dbPath)
	}
	// absolute paths only inside the temp directory, where tests put databases
	if filepath.IsAbs(dbPath) && !strings.HasPrefix(filepath.Clean(dbPath), filepath.Clean(os.TempDir())) {
		return fmt.Errorf("absolute paths not allowed: %s", dbPath)
	}
	return nil
}

package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default, file-backed Store.
type SQLiteStore struct {
	sqlStore
	path string
}

// OpenSQLite opens the SQLite database at path. Use ":memory:" for an
// in-memory database. Parent directories are created as needed.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Debug("opened state store", slog.String("driver", "sqlite"), slog.String("path", path))
	return &SQLiteStore{sqlStore: sqlStore{db: db, logger: logger}, path: path}, nil
}

// Migrate applies pending migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrate(ctx, s.db, dialectSQLite, s.logger)
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

type dialect struct {
	goose goose.Dialect
	dir   string
}

var (
	dialectSQLite   = dialect{goose: goose.DialectSQLite3, dir: "migrations/sqlite"}
	dialectPostgres = dialect{goose: goose.DialectPostgres, dir: "migrations/postgres"}
)

func newProvider(db *sql.DB, d dialect) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	p, err := goose.NewProvider(d.goose, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

func migrate(ctx context.Context, db *sql.DB, d dialect, logger *slog.Logger) error {
	if db == nil {
		return fmt.Errorf("database not opened")
	}
	p, err := newProvider(db, d)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug("applied migration", slog.Int64("version", r.Source.Version), slog.Duration("duration", r.Duration))
	}
	return nil
}

// MigrationVersion returns the current schema version of a store.
func MigrationVersion(ctx context.Context, s Store) (int64, error) {
	switch st := s.(type) {
	case *SQLiteStore:
		return version(ctx, st.db, dialectSQLite)
	case *PostgresStore:
		return version(ctx, st.db, dialectPostgres)
	}
	return 0, fmt.Errorf("unsupported store %T", s)
}

func version(ctx context.Context, db *sql.DB, d dialect) (int64, error) {
	p, err := newProvider(db, d)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

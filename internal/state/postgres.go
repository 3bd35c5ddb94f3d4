package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps run history in a shared Postgres database.
type PostgresStore struct {
	sqlStore
}

// OpenPostgres connects using a pgx connection string.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres state store requires a DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres state store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres state store: %w", err)
	}
	return newPostgresStore(db, logger), nil
}

func newPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresStore{sqlStore: sqlStore{db: db, logger: logger, numbered: true}}
}

// Migrate applies pending migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migrate(ctx, s.db, dialectPostgres, s.logger)
}

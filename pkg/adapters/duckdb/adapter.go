// Package duckdb provides the DuckDB warehouse adapter.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/payinsight/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

const defaultSchema = "main"

// Adapter implements adapter.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a DuckDB adapter. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}, params: &Params{}}
}

// DefaultSchema returns the configured schema or "main".
func (a *Adapter) DefaultSchema() string {
	if a.params != nil && a.params.Schema != "" {
		return a.params.Schema
	}
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return defaultSchema
}

// Connect opens the database at cfg.Path (":memory:" when empty) and applies
// extensions and settings from cfg.Params.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	if err := a.applyParams(ctx); err != nil {
		_ = a.Close()
		a.DB = nil
		return err
	}
	a.Logger.Debug("connected to duckdb", slog.String("path", path))
	return nil
}

func (a *Adapter) applyParams(ctx context.Context) error {
	for _, ext := range a.params.Extensions {
		for _, stmt := range []string{"INSTALL " + ext, "LOAD " + ext} {
			if err := a.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to load extension %s: %w", ext, err)
			}
		}
	}

	keys := make([]string, 0, len(a.params.Settings))
	for k := range a.params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.ReplaceAll(a.params.Settings[k], "'", "''")
		if err := a.Exec(ctx, fmt.Sprintf("SET %s = '%s'", k, v)); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}

	if schema := a.DefaultSchema(); schema != defaultSchema {
		if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+adapter.QuoteIdent(schema)); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}
	return nil
}

// GetTableMetadata describes a loaded table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, a.DefaultSchema(), adapter.QuestionPlaceholder)
}

// LoadCSV replaces tableName with the CSV contents, letting DuckDB infer
// column types.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	schema, name := adapter.ParseQualifiedName(tableName, a.DefaultSchema())
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s.%s AS SELECT * FROM read_csv_auto('%s', header=true)",
		adapter.QuoteIdent(schema),
		adapter.QuoteIdent(name),
		strings.ReplaceAll(absPath, "'", "''"),
	)
	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)

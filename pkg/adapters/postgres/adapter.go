// Package postgres provides the PostgreSQL warehouse adapter.
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/payinsight/pkg/adapter"
)

const defaultSchema = "public"

// Adapter implements adapter.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a PostgreSQL adapter. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DefaultSchema returns the configured schema or "public".
func (a *Adapter) DefaultSchema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return defaultSchema
}

// Connect opens a pgx-backed database/sql pool and ensures the schema exists.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	if schema := a.DefaultSchema(); schema != defaultSchema {
		if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+adapter.QuoteIdent(schema)); err != nil {
			_ = a.Close()
			a.DB = nil
			return err
		}
	}
	return nil
}

// buildPostgresDSN renders a key=value connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	parts := []string{
		"host=" + dsnValue(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + dsnValue(cfg.Database),
		"sslmode=" + dsnValue(sslmode),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}
	if app, ok := cfg.Options["application_name"]; ok {
		parts = append(parts, "application_name="+dsnValue(app))
	}
	return strings.Join(parts, " ")
}

// dsnValue single-quotes values containing spaces or quotes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// GetTableMetadata describes a loaded table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, a.DefaultSchema(), adapter.DollarPlaceholder)
}

// LoadCSV replaces tableName with the CSV contents using COPY FROM STDIN.
// Every column is created as TEXT.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	file, err := os.Open(absPath) //nolint:gosec // caller-provided export path
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	headers, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	target := a.qualified(tableName)
	if err := a.createTextTable(ctx, target, headers); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}
	if err := a.copyFromCSV(ctx, target, file); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}
	a.Logger.Debug("loaded csv into postgres", slog.String("table", target), slog.String("file", absPath))
	return nil
}

func (a *Adapter) qualified(tableName string) string {
	schema, name := adapter.ParseQualifiedName(tableName, a.DefaultSchema())
	return adapter.QuoteIdent(schema) + "." + adapter.QuoteIdent(name)
}

// createTextTable drops and recreates target with one TEXT column per header.
func (a *Adapter) createTextTable(ctx context.Context, target string, columns []string) error {
	if _, err := a.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+target); err != nil {
		return err
	}

	colDefs := make([]string, 0, len(columns))
	for _, col := range columns {
		colDefs = append(colDefs, sanitizeIdentifier(col)+" TEXT")
	}
	_, err := a.DB.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", target, strings.Join(colDefs, ", ")))
	return err
}

// copyFromCSV streams the file through the raw pgx connection.
func (a *Adapter) copyFromCSV(ctx context.Context, target string, r io.Reader) error {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", target)
		_, err := pgxConn.Conn().PgConn().CopyFrom(ctx, r, copySQL)
		return err
	})
}

// sanitizeIdentifier lowercases a header, replaces separators with
// underscores and quotes reserved words or names with other punctuation.
func sanitizeIdentifier(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(safe)
	if safe == "" || isReservedWord(safe) || strings.ContainsFunc(safe, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) || (safe[0] >= '0' && safe[0] <= '9') {
		return adapter.QuoteIdent(safe)
	}
	return safe
}

var reservedWords = map[string]bool{
	"user": true, "order": true, "group": true, "table": true,
	"select": true, "from": true, "where": true, "index": true,
	"limit": true, "offset": true, "window": true, "all": true,
}

// isReservedWord reports whether name is a PostgreSQL reserved word.
func isReservedWord(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

var _ adapter.Adapter = (*Adapter)(nil)

// Package adapter defines the warehouse adapter contract and its registry.
//
// Exported tables and raw inputs are loaded into an analytics warehouse
// through these adapters. Concrete implementations live in pkg/adapters/
// subdirectories and register themselves from init().
package adapter

import (
	"context"

	"github.com/leapstack-labs/payinsight/pkg/core"
)

type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// Adapter is implemented by every warehouse backend.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata describes a loaded table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV replaces tableName with the contents of a headered CSV file.
	LoadCSV(ctx context.Context, tableName string, filePath string) error

	// DefaultSchema is the schema unqualified table names resolve to.
	DefaultSchema() string
}

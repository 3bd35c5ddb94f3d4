package core

import "database/sql"

// AdapterConfig holds configuration for connecting to a warehouse.
type AdapterConfig struct {
	Type     string            `koanf:"type" yaml:"type"`
	Path     string            `koanf:"path" yaml:"path,omitempty"`
	Host     string            `koanf:"host" yaml:"host,omitempty"`
	Port     int               `koanf:"port" yaml:"port,omitempty"`
	Database string            `koanf:"database" yaml:"database,omitempty"`
	Username string            `koanf:"user" yaml:"user,omitempty"`
	Password string            `koanf:"password" yaml:"password,omitempty"`
	Schema   string            `koanf:"schema" yaml:"schema,omitempty"`
	Options  map[string]string `koanf:"options" yaml:"options,omitempty"`
	Params   map[string]any    `koanf:"params" yaml:"params,omitempty"`
}

// Column represents a column in a warehouse table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata holds metadata about a warehouse table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}

// Package config holds the payinsight configuration model, its defaults,
// environment profiles and validation. Loading from files, environment
// variables and flags lives in internal/cli/config.
package config

import (
	"time"

	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Config is the complete runtime configuration.
type Config struct {
	Environment string `koanf:"environment" yaml:"environment"`
	LogLevel    string `koanf:"log_level" yaml:"log_level,omitempty"`
	Verbose     bool   `koanf:"verbose" yaml:"-"`
	Output      string `koanf:"output" yaml:"output,omitempty"`

	Data        loader.Paths        `koanf:"data" yaml:"data"`
	Analysis    core.AnalysisConfig `koanf:"analysis" yaml:"analysis"`
	Performance PerformanceConfig   `koanf:"performance" yaml:"performance"`
	Export      ExportConfig        `koanf:"export" yaml:"export"`
	Alerts      AlertConfig         `koanf:"alerts" yaml:"alerts"`
	State       StateConfig         `koanf:"state" yaml:"state"`
	Server      ServerConfig        `koanf:"server" yaml:"server"`

	// Warehouse is optional; nil disables warehouse loads.
	Warehouse *core.AdapterConfig `koanf:"warehouse" yaml:"warehouse,omitempty"`

	Environments map[string]EnvConfig `koanf:"environments" yaml:"environments,omitempty"`
}

// PerformanceConfig tunes pipeline execution.
type PerformanceConfig struct {
	Parallel bool          `koanf:"parallel" yaml:"parallel"`
	Timeout  time.Duration `koanf:"timeout" yaml:"timeout"`
}

// ExportConfig controls the export command.
type ExportConfig struct {
	Dir             string `koanf:"dir" yaml:"dir"`
	Format          string `koanf:"format" yaml:"format"`
	Gzip            bool   `koanf:"gzip" yaml:"gzip"`
	IncludeMetadata bool   `koanf:"include_metadata" yaml:"include_metadata"`
}

// AlertConfig controls alert evaluation. Thresholds live in
// Analysis.Alerts; notifications are only described here.
type AlertConfig struct {
	Enabled bool        `koanf:"enabled" yaml:"enabled"`
	Email   EmailConfig `koanf:"email" yaml:"email,omitempty"`
}

// EmailConfig describes an alert mailbox. Delivery is not implemented; the
// settings are validated so misconfiguration is reported early.
type EmailConfig struct {
	SMTPServer string   `koanf:"smtp_server" yaml:"smtp_server,omitempty"`
	SMTPPort   int      `koanf:"smtp_port" yaml:"smtp_port,omitempty"`
	From       string   `koanf:"from" yaml:"from,omitempty"`
	To         []string `koanf:"to" yaml:"to,omitempty"`
}

// StateConfig selects the run history backend.
type StateConfig struct {
	Driver string `koanf:"driver" yaml:"driver"` // sqlite or postgres
	Path   string `koanf:"path" yaml:"path,omitempty"`
	DSN    string `koanf:"dsn" yaml:"dsn,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// EnvConfig holds per-environment overrides declared in the config file.
type EnvConfig struct {
	LogLevel  string              `koanf:"log_level" yaml:"log_level,omitempty"`
	Data      loader.Paths        `koanf:"data" yaml:"data,omitempty"`
	State     StateConfig         `koanf:"state" yaml:"state,omitempty"`
	Warehouse *core.AdapterConfig `koanf:"warehouse" yaml:"warehouse,omitempty"`
}

// PipelineTimeout returns the configured wall-clock budget.
func (c *Config) PipelineTimeout() time.Duration {
	return c.Performance.Timeout
}

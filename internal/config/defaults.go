package config

import (
	"strings"
	"time"

	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Default configuration values.
const (
	ConfigFileName    = "payinsight.yaml"
	ConfigFileNameAlt = "payinsight.yml"

	DefaultEnv           = EnvDevelopment
	DefaultOutput        = "auto" // TTY=text, otherwise markdown
	DefaultUsersFile     = "data/smartpay_users.csv"
	DefaultTxFile        = "data/smartpay_transactions.csv"
	DefaultActivityFile  = "data/smartpay_app_activity.csv"
	DefaultExportDir     = "output"
	DefaultExportFormat  = "csv"
	DefaultStateDriver   = "sqlite"
	DefaultStateFile     = ".payinsight/state.db"
	DefaultServerAddr    = ":8080"
	DefaultTimeout       = 5 * time.Minute
	DefaultSMTPPort      = 587
	DefaultLogLevel      = "info"
	InMemoryStatePath    = ":memory:"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Profile is the built-in behavior of an environment.
type Profile struct {
	LogLevel string
	// InMemoryState keeps run history out of the on-disk store.
	InMemoryState bool
}

var profiles = map[string]Profile{
	EnvDevelopment: {LogLevel: "debug"},
	EnvProduction:  {LogLevel: "warn"},
	EnvTesting:     {LogLevel: "debug", InMemoryState: true},
}

// ProfileFor returns the built-in profile for env. Unknown names fall back
// to development.
func ProfileFor(env string) (Profile, bool) {
	p, ok := profiles[strings.ToLower(env)]
	if !ok {
		return profiles[EnvDevelopment], false
	}
	return p, true
}

// Environments lists the built-in environment names.
func Environments() []string {
	return []string{EnvDevelopment, EnvProduction, EnvTesting}
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Environment: DefaultEnv,
		LogLevel:    DefaultLogLevel,
		Output:      DefaultOutput,
		Data: loader.Paths{
			Users:        DefaultUsersFile,
			Transactions: DefaultTxFile,
			Activity:     DefaultActivityFile,
		},
		Analysis:    core.DefaultAnalysisConfig(),
		Performance: PerformanceConfig{Timeout: DefaultTimeout},
		Export: ExportConfig{
			Dir:             DefaultExportDir,
			Format:          DefaultExportFormat,
			IncludeMetadata: true,
		},
		Alerts: AlertConfig{
			Enabled: true,
			Email:   EmailConfig{SMTPPort: DefaultSMTPPort, From: "analytics@payinsight.local"},
		},
		State:  StateConfig{Driver: DefaultStateDriver, Path: DefaultStateFile},
		Server: ServerConfig{Addr: DefaultServerAddr},
	}
}

// ApplyEnvironment merges the selected environment's overrides from the
// config file. Only non-empty fields replace the base values.
func (c *Config) ApplyEnvironment() {
	env, ok := c.Environments[c.Environment]
	if !ok {
		return
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.Data.Users != "" {
		c.Data.Users = env.Data.Users
	}
	if env.Data.Transactions != "" {
		c.Data.Transactions = env.Data.Transactions
	}
	if env.Data.Activity != "" {
		c.Data.Activity = env.Data.Activity
	}
	if env.State.Driver != "" {
		c.State.Driver = env.State.Driver
	}
	if env.State.Path != "" {
		c.State.Path = env.State.Path
	}
	if env.State.DSN != "" {
		c.State.DSN = env.State.DSN
	}
	if env.Warehouse != nil {
		c.Warehouse = MergeWarehouse(c.Warehouse, env.Warehouse)
	}
}

// MergeWarehouse merges two warehouse configs, with override taking
// precedence field by field.
func MergeWarehouse(base, override *core.AdapterConfig) *core.AdapterConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Path != "" {
		merged.Path = override.Path
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Username != "" {
		merged.Username = override.Username
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return &merged
}

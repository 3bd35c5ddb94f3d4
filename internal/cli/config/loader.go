package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	sharedcfg "github.com/leapstack-labs/payinsight/internal/config"
	"github.com/leapstack-labs/payinsight/pkg/core"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store config in context.
type configKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var (
	k              = koanf.New(".")
	configFileUsed string
)

// flagKeys maps CLI flag names to config keys where they differ.
var flagKeys = map[string]string{
	"users":        "data.users",
	"transactions": "data.transactions",
	"activity":     "data.activity",
	"state":        "state.path",
	"env":          "environment",
	"log-level":    "log_level",
	"addr":         "server.addr",
}

// flags handled outside koanf
var manualFlags = map[string]bool{"config": true, "as-of": true}

// pathFlags are resolved against the working directory, not the project root.
var pathFlags = []string{"users", "transactions", "activity", "state"}

func configExistsIn(dir string) string {
	for _, name := range []string{sharedcfg.ConfigFileName, sharedcfg.ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRoot searches upward from startDir for a payinsight config
// file and returns the directory and file found.
func findProjectRoot(startDir string) (string, string) {
	dir := startDir
	for range maxUpwardSearchLevels {
		if f := configExistsIn(dir); f != "" {
			return dir, f
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ""
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == sharedcfg.InMemoryStatePath || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// defaultsMap flattens the built-in defaults into a koanf-loadable map.
// Keys whose absence selects environment profile behavior are left out.
func defaultsMap() (map[string]any, error) {
	data, err := yamlv3.Marshal(sharedcfg.Default())
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yamlv3.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	delete(m, "log_level")
	if st, ok := m["state"].(map[string]any); ok {
		delete(st, "path")
	}
	return m, nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// 1. Defaults
	defaults, err := defaultsMap()
	if err != nil {
		return nil, fmt.Errorf("failed to build defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit path, otherwise search upward from CWD.
	projectRoot := cwd
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
		configFileUsed = cfgFile
	} else if root, f := findProjectRoot(cwd); f != "" {
		projectRoot = root
		configFileUsed = f
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || manualFlags[f.Name] {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Environment = strings.ToLower(cfg.Environment)

	// 6. Environment profile, then the file's per-environment overrides.
	profile, _ := sharedcfg.ProfileFor(cfg.Environment)
	if !k.Exists("log_level") {
		cfg.LogLevel = profile.LogLevel
	}
	if !k.Exists("state.path") {
		if profile.InMemoryState {
			cfg.State.Path = sharedcfg.InMemoryStatePath
		} else {
			cfg.State.Path = sharedcfg.DefaultStateFile
		}
	}
	cfg.ApplyEnvironment()

	// 7. Paths: flags relative to CWD, everything else relative to the project root.
	changed := map[string]bool{}
	if flags != nil {
		for _, name := range pathFlags {
			if f := flags.Lookup(name); f != nil && f.Changed {
				changed[name] = true
			}
		}
	}
	resolve := func(flag string, p *string) {
		base := projectRoot
		if changed[flag] {
			base = cwd
		}
		*p = resolvePathRelativeTo(*p, base)
	}
	resolve("users", &cfg.Data.Users)
	resolve("transactions", &cfg.Data.Transactions)
	resolve("activity", &cfg.Data.Activity)
	if cfg.State.Driver == "sqlite" {
		resolve("state", &cfg.State.Path)
	}
	cfg.Export.Dir = resolvePathRelativeTo(cfg.Export.Dir, projectRoot)

	// 8. Reference instant
	if flags != nil {
		if f := flags.Lookup("as-of"); f != nil && f.Value.String() != "" {
			asOf, err := sharedcfg.ParseAsOf(f.Value.String())
			if err != nil {
				return nil, fmt.Errorf("--as-of: %w", err)
			}
			cfg.Analysis.AsOf = asOf
		}
	}

	expandSecrets(&cfg)

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// ConfigKey returns the context key used for storing the loaded config.
func ConfigKey() interface{} {
	return configKey{}
}

// GetConfig retrieves the config from the command context, falling back to
// the built-in defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return sharedcfg.Default()
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

func expandSecrets(cfg *Config) {
	cfg.State.DSN = expandEnvVars(cfg.State.DSN)
	cfg.Alerts.Email.SMTPServer = expandEnvVars(cfg.Alerts.Email.SMTPServer)
	expandWarehouseEnvVars(cfg.Warehouse)
}

func expandWarehouseEnvVars(w *core.AdapterConfig) {
	if w == nil {
		return
	}
	w.Password = expandEnvVars(w.Password)
	w.Username = expandEnvVars(w.Username)
	w.Host = expandEnvVars(w.Host)
	w.Database = expandEnvVars(w.Database)
	w.Path = expandEnvVars(w.Path)
}

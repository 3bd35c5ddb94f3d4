package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	sharedcfg "github.com/leapstack-labs/payinsight/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("env", "", "")
	fs.String("users", "", "")
	fs.String("transactions", "", "")
	fs.String("activity", "", "")
	fs.String("state", "", "")
	fs.String("as-of", "", "")
	fs.String("log-level", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.StringP("output", "o", "", "")
	return fs
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, sharedcfg.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	cfg, err := LoadConfig("", newFlags())
	require.NoError(t, err)

	assert.Equal(t, sharedcfg.EnvDevelopment, cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel, "development profile")
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, filepath.Join(dir, sharedcfg.DefaultUsersFile), cfg.Data.Users)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.State.Path)
	assert.Equal(t, 30, cfg.Analysis.ChurnThresholdDays)
	assert.Len(t, cfg.Analysis.Features, 3)
	assert.Equal(t, sharedcfg.DefaultTimeout, cfg.Performance.Timeout)
	assert.Nil(t, cfg.Warehouse)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	writeConfig(t, dir, `
environment: production
data:
  users: in/users.csv
analysis:
  churn_threshold_days: 45
  value_tiers:
    low: 0.4
    medium: 0.7
    high: 0.9
  features:
    - name: Payment
      category: Core
      success_threshold: 0.95
performance:
  parallel: true
  timeout: 90s
warehouse:
  type: duckdb
  path: ${PAYINSIGHT_TEST_WAREHOUSE}
`)
	t.Setenv("PAYINSIGHT_TEST_WAREHOUSE", "wh.duckdb")

	cfg, err := LoadConfig("", newFlags())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, sharedcfg.ConfigFileName), GetConfigFileUsed())
	assert.Equal(t, "warn", cfg.LogLevel, "production profile")
	assert.Equal(t, filepath.Join(dir, "in/users.csv"), cfg.Data.Users)
	assert.Equal(t, 45, cfg.Analysis.ChurnThresholdDays)
	assert.Equal(t, 7, cfg.Analysis.AtRiskMinDays, "untouched defaults survive")
	assert.InDelta(t, 0.7, cfg.Analysis.ValueTiers.Medium, 1e-9)
	require.Len(t, cfg.Analysis.Features, 1, "lists replace, not merge")
	assert.True(t, cfg.Performance.Parallel)
	assert.Equal(t, 90*time.Second, cfg.Performance.Timeout)
	require.NotNil(t, cfg.Warehouse)
	assert.Equal(t, "wh.duckdb", cfg.Warehouse.Path)
}

func TestLoadConfig_SearchesUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "export:\n  format: json\n")
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)
	ResetConfig()

	cfg, err := LoadConfig("", newFlags())
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Export.Format)
	assert.Equal(t, filepath.Join(root, sharedcfg.DefaultActivityFile), cfg.Data.Activity)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	writeConfig(t, dir, `
log_level: error
output: text
analysis:
  dau_window_days: 10
`)
	t.Setenv("PAYINSIGHT_OUTPUT", "json")
	t.Setenv("PAYINSIGHT_ANALYSIS__DAU_WINDOW_DAYS", "14")
	t.Setenv("PAYINSIGHT_ANALYSIS__MAU_WINDOW_DAYS", "60")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"-o", "markdown", "--users", "cli_users.csv"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel, "explicit level beats profile")
	assert.Equal(t, "markdown", cfg.Output, "flag beats env")
	assert.Equal(t, 14, cfg.Analysis.DAUWindowDays, "env beats file")
	assert.Equal(t, 60, cfg.Analysis.MAUWindowDays)
	assert.Equal(t, filepath.Join(dir, "cli_users.csv"), cfg.Data.Users)
}

func TestLoadConfig_ExplicitFileAnchorsPaths(t *testing.T) {
	cwd := t.TempDir()
	projDir := t.TempDir()
	t.Chdir(cwd)
	ResetConfig()

	path := writeConfig(t, projDir, "data:\n  transactions: tx.csv\n")
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--config", path, "--activity", "act.csv"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projDir, "tx.csv"), cfg.Data.Transactions)
	assert.Equal(t, filepath.Join(cwd, "act.csv"), cfg.Data.Activity)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	writeConfig(t, dir, `
environments:
  production:
    log_level: info
    data:
      users: prod/users.csv
`)
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--env", "Production"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, sharedcfg.EnvProduction, cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "prod/users.csv"), cfg.Data.Users)
}

func TestLoadConfig_TestingProfileUsesMemoryState(t *testing.T) {
	t.Chdir(t.TempDir())
	ResetConfig()
	t.Setenv("PAYINSIGHT_ENVIRONMENT", "testing")

	cfg, err := LoadConfig("", newFlags())
	require.NoError(t, err)
	assert.Equal(t, sharedcfg.InMemoryStatePath, cfg.State.Path)
}

func TestLoadConfig_AsOf(t *testing.T) {
	t.Chdir(t.TempDir())
	ResetConfig()

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--as-of", "2024-06-30"}))
	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC), cfg.Analysis.AsOf)

	flags = newFlags()
	require.NoError(t, flags.Parse([]string{"--as-of", "yesterday"}))
	_, err = LoadConfig("", flags)
	assert.ErrorContains(t, err, "--as-of: invalid as-of")
}

func TestLoadConfig_BadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	path := writeConfig(t, dir, "analysis: [unclosed\n")
	_, err := LoadConfig(path, newFlags())
	assert.ErrorContains(t, err, "error reading config file")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PAYINSIGHT_TEST_SECRET", "s3cret")
	assert.Equal(t, "pw=s3cret", expandEnvVars("pw=${PAYINSIGHT_TEST_SECRET}"))
	assert.Equal(t, "${PAYINSIGHT_UNSET_VAR}", expandEnvVars("${PAYINSIGHT_UNSET_VAR}"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewLogger_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &Config{LogLevel: "error", Verbose: true})
	logger.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestGetConfig_Fallback(t *testing.T) {
	cfg := GetConfig(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultEnv, cfg.Environment)

	want := &Config{Environment: "production"}
	ctx := context.WithValue(context.Background(), ConfigKey(), want)
	assert.Same(t, want, GetConfig(ctx))
}

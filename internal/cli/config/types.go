// Package config loads payinsight configuration for the CLI.
//
// The configuration model lives in internal/config and is re-exported here
// via type aliases so commands only need this package.
package config

import (
	sharedcfg "github.com/leapstack-labs/payinsight/internal/config"
)

// Config is an alias for the shared configuration model.
type Config = sharedcfg.Config

// EnvConfig is an alias for the shared per-environment overrides.
type EnvConfig = sharedcfg.EnvConfig

// Validation is an alias for the shared validation result.
type Validation = sharedcfg.Validation

// Default configuration values re-exported for the CLI.
const (
	DefaultStateFile = sharedcfg.DefaultStateFile
	DefaultEnv       = sharedcfg.DefaultEnv
	DefaultOutput    = sharedcfg.DefaultOutput
)

// EnvPrefix is the prefix for configuration environment variables.
// A double underscore separates nesting levels:
// PAYINSIGHT_ANALYSIS__CHURN_THRESHOLD_DAYS sets analysis.churn_threshold_days.
const EnvPrefix = "PAYINSIGHT_"

package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/leapstack-labs/payinsight/pkg/adapter"
)

// Validation collects problems found in a Config. Errors make the
// configuration unusable; warnings are reported but do not stop a run.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether no errors were found.
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err joins all errors into one, or returns nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	errs := make([]error, len(v.Errors))
	for i, e := range v.Errors {
		errs[i] = errors.New(e)
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

func (v *Validation) errorf(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *Validation) warnf(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

var exportFormats = []string{"csv", "json", "xlsx"}

// Validate checks the configuration for invalid values and likely mistakes.
func (c *Config) Validate() Validation {
	var v Validation

	if _, ok := ProfileFor(c.Environment); !ok {
		if _, declared := c.Environments[c.Environment]; !declared {
			v.warnf("unknown environment %q, using development profile", c.Environment)
		}
	}

	paths := c.Data.All()
	for _, name := range slices.Sorted(maps.Keys(paths)) {
		path := paths[name]
		if path == "" {
			v.errorf("data.%s path is not set", name)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			v.warnf("data file not found: %s", path)
		}
	}

	c.validateAnalysis(&v)

	if c.Performance.Timeout < 0 {
		v.errorf("performance.timeout must not be negative")
	}

	if !slices.Contains(exportFormats, strings.ToLower(c.Export.Format)) {
		v.errorf("export.format %q is not supported (want %s)", c.Export.Format, strings.Join(exportFormats, ", "))
	}

	switch c.State.Driver {
	case "sqlite":
		if c.State.Path == "" {
			v.errorf("state.path is required for the sqlite state driver")
		}
	case "postgres":
		if c.State.DSN == "" {
			v.errorf("state.dsn is required for the postgres state driver")
		}
	default:
		v.errorf("state.driver %q is not supported (want sqlite or postgres)", c.State.Driver)
	}

	if c.Warehouse == nil {
		v.warnf("warehouse not configured; warehouse loads are disabled")
	} else if !adapter.IsRegistered(c.Warehouse.Type) {
		v.errorf("warehouse.type %q is not registered (available: %s)", c.Warehouse.Type, strings.Join(adapter.ListAdapters(), ", "))
	}

	if c.Alerts.Email.SMTPServer != "" && len(c.Alerts.Email.To) == 0 {
		v.warnf("SMTP configured but no recipient emails specified")
	}

	return v
}

func (c *Config) validateAnalysis(v *Validation) {
	a := c.Analysis
	windows := []struct {
		name string
		val  int
	}{
		{"mau_window_days", a.MAUWindowDays},
		{"dau_window_days", a.DAUWindowDays},
		{"retention_window_days", a.RetentionWindowDays},
		{"churn_threshold_days", a.ChurnThresholdDays},
		{"at_risk_min_days", a.AtRiskMinDays},
		{"at_risk_max_days", a.AtRiskMaxDays},
		{"activity_low_max", a.ActivityLowMax},
		{"activity_medium_max", a.ActivityMediumMax},
	}
	for _, w := range windows {
		if w.val < 0 {
			v.errorf("analysis.%s must not be negative", w.name)
		}
	}
	if a.AtRiskMinDays > a.AtRiskMaxDays {
		v.errorf("analysis.at_risk_min_days (%d) exceeds at_risk_max_days (%d)", a.AtRiskMinDays, a.AtRiskMaxDays)
	}
	if a.ActivityLowMax > a.ActivityMediumMax {
		v.errorf("analysis.activity_low_max (%d) exceeds activity_medium_max (%d)", a.ActivityLowMax, a.ActivityMediumMax)
	}

	fractions := []struct {
		name string
		val  float64
	}{
		{"value_tiers.low", a.ValueTiers.Low},
		{"value_tiers.medium", a.ValueTiers.Medium},
		{"value_tiers.high", a.ValueTiers.High},
		{"high_value_percentile", a.HighValuePercentile},
		{"alerts.churn_rate", a.Alerts.ChurnRate},
		{"alerts.success_rate", a.Alerts.SuccessRate},
		{"alerts.user_growth", a.Alerts.UserGrowth},
	}
	for _, f := range fractions {
		if f.val < 0 || f.val > 1 {
			v.errorf("analysis.%s must be between 0 and 1, got %g", f.name, f.val)
		}
	}
	if !(a.ValueTiers.Low <= a.ValueTiers.Medium && a.ValueTiers.Medium <= a.ValueTiers.High) {
		v.errorf("analysis.value_tiers must be ordered low <= medium <= high")
	}
	if a.TopRecommendations < 0 {
		v.errorf("analysis.top_recommendations must not be negative")
	}

	seen := map[string]bool{}
	for _, f := range a.Features {
		if f.Name == "" {
			v.errorf("analysis.features entry without a name")
			continue
		}
		if seen[f.Name] {
			v.errorf("analysis.features: duplicate feature %q", f.Name)
		}
		seen[f.Name] = true
		if f.SuccessThreshold < 0 || f.SuccessThreshold > 1 {
			v.errorf("analysis.features[%s].success_threshold must be between 0 and 1", f.Name)
		}
	}
}

package core

import (
	"time"
)

// Default analysis thresholds.
const (
	DefaultMAUWindowDays       = 90
	DefaultDAUWindowDays       = 30
	DefaultChurnThresholdDays  = 30
	DefaultAtRiskMinDays       = 7
	DefaultAtRiskMaxDays       = 30
	DefaultRetentionWindowDays = 30
	DefaultActivityLowMax      = 10
	DefaultActivityMediumMax   = 20
	DefaultHighValuePercentile = 0.9
	DefaultTopRecommendations  = 5
)

// ValueTierConfig holds the percentile cut points for value segmentation.
type ValueTierConfig struct {
	Low    float64 `koanf:"low" json:"low" yaml:"low"`
	Medium float64 `koanf:"medium" json:"medium" yaml:"medium"`
	High   float64 `koanf:"high" json:"high" yaml:"high"`
}

// FeatureSpec describes a product feature known to the catalog.
type FeatureSpec struct {
	Name             string  `koanf:"name" json:"name" yaml:"name"`
	Category         string  `koanf:"category" json:"category" yaml:"category"`
	LaunchDate       string  `koanf:"launch_date" json:"launch_date" yaml:"launch_date"`
	SuccessThreshold float64 `koanf:"success_threshold" json:"success_threshold" yaml:"success_threshold"`
}

// AlertThresholds bound the headline metrics. Rates are fractions (0.1 = 10%).
type AlertThresholds struct {
	ChurnRate   float64 `koanf:"churn_rate" json:"churn_rate" yaml:"churn_rate"`
	SuccessRate float64 `koanf:"success_rate" json:"success_rate" yaml:"success_rate"`
	UserGrowth  float64 `koanf:"user_growth" json:"user_growth" yaml:"user_growth"`
}

// AnalysisConfig carries every threshold the engines use.
// It is passed by value into each computation; nothing reads globals.
type AnalysisConfig struct {
	// AsOf anchors the rolling windows. Zero means time.Now().
	AsOf time.Time `koanf:"-" json:"as_of" yaml:"-"`

	MAUWindowDays       int `koanf:"mau_window_days" json:"mau_window_days" yaml:"mau_window_days"`
	DAUWindowDays       int `koanf:"dau_window_days" json:"dau_window_days" yaml:"dau_window_days"`
	RetentionWindowDays int `koanf:"retention_window_days" json:"retention_window_days" yaml:"retention_window_days"`

	// ChurnThresholdDays marks a user churned when inactive strictly longer.
	ChurnThresholdDays int `koanf:"churn_threshold_days" json:"churn_threshold_days" yaml:"churn_threshold_days"`

	// AtRiskMinDays and AtRiskMaxDays bound the inclusive at-risk window.
	AtRiskMinDays int `koanf:"at_risk_min_days" json:"at_risk_min_days" yaml:"at_risk_min_days"`
	AtRiskMaxDays int `koanf:"at_risk_max_days" json:"at_risk_max_days" yaml:"at_risk_max_days"`

	ActivityLowMax    int `koanf:"activity_low_max" json:"activity_low_max" yaml:"activity_low_max"`
	ActivityMediumMax int `koanf:"activity_medium_max" json:"activity_medium_max" yaml:"activity_medium_max"`

	ValueTiers          ValueTierConfig `koanf:"value_tiers" json:"value_tiers" yaml:"value_tiers"`
	HighValuePercentile float64         `koanf:"high_value_percentile" json:"high_value_percentile" yaml:"high_value_percentile"`
	TopRecommendations  int             `koanf:"top_recommendations" json:"top_recommendations" yaml:"top_recommendations"`

	Alerts   AlertThresholds `koanf:"alerts" json:"alerts" yaml:"alerts"`
	Features []FeatureSpec   `koanf:"features" json:"features" yaml:"features"`
}

// DefaultAnalysisConfig returns the production defaults.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MAUWindowDays:       DefaultMAUWindowDays,
		DAUWindowDays:       DefaultDAUWindowDays,
		RetentionWindowDays: DefaultRetentionWindowDays,
		ChurnThresholdDays:  DefaultChurnThresholdDays,
		AtRiskMinDays:       DefaultAtRiskMinDays,
		AtRiskMaxDays:       DefaultAtRiskMaxDays,
		ActivityLowMax:      DefaultActivityLowMax,
		ActivityMediumMax:   DefaultActivityMediumMax,
		ValueTiers:          ValueTierConfig{Low: 0.5, Medium: 0.8, High: 0.95},
		HighValuePercentile: DefaultHighValuePercentile,
		TopRecommendations:  DefaultTopRecommendations,
		Alerts: AlertThresholds{
			ChurnRate:   0.1,
			SuccessRate: 0.9,
			UserGrowth:  0.05,
		},
		Features: DefaultFeatures(),
	}
}

// DefaultFeatures returns the built-in feature catalog.
func DefaultFeatures() []FeatureSpec {
	return []FeatureSpec{
		{Name: "Payment", Category: "Core", LaunchDate: "2024-01-01", SuccessThreshold: 0.95},
		{Name: "Transfer", Category: "Core", LaunchDate: "2024-01-01", SuccessThreshold: 0.90},
		{Name: "Bill Pay", Category: "Premium", LaunchDate: "2024-02-01", SuccessThreshold: 0.85},
	}
}

// Now returns the instant rolling windows are measured from.
func (c AnalysisConfig) Now() time.Time {
	if c.AsOf.IsZero() {
		return time.Now()
	}
	return c.AsOf
}

// Since returns Now minus the given number of days.
func (c AnalysisConfig) Since(days int) time.Time {
	return c.Now().AddDate(0, 0, -days)
}

// Feature looks up a catalog entry by name.
func (c AnalysisConfig) Feature(name string) (FeatureSpec, bool) {
	for _, f := range c.Features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureSpec{}, false
}

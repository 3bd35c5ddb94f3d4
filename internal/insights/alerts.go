package insights

import (
	"fmt"

	"github.com/leapstack-labs/payinsight/internal/metrics"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Alert is a headline metric outside its configured bound.
type Alert struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Alerts checks the metric bundles against cfg.Alerts and the feature catalog.
// Thresholds are fractions; metric values are percentages.
func Alerts(u metrics.UserMetrics, tx metrics.TransactionMetrics, cfg core.AnalysisConfig) []Alert {
	var out []Alert

	if limit := cfg.Alerts.ChurnRate * 100; u.ChurnRate > limit {
		out = append(out, Alert{
			Metric:    "churn_rate",
			Value:     u.ChurnRate,
			Threshold: limit,
			Message:   fmt.Sprintf("Churn rate %.1f%% exceeds %.1f%%", u.ChurnRate, limit),
		})
	}

	if limit := cfg.Alerts.SuccessRate * 100; tx.TotalTransactions > 0 && tx.SuccessRate < limit {
		out = append(out, Alert{
			Metric:    "success_rate",
			Value:     tx.SuccessRate,
			Threshold: limit,
			Message:   fmt.Sprintf("Transaction success rate %.1f%% is below %.1f%%", tx.SuccessRate, limit),
		})
	}

	if limit := cfg.Alerts.UserGrowth * 100; u.TotalUsers > 0 && u.GrowthRate < limit {
		out = append(out, Alert{
			Metric:    "user_growth",
			Value:     u.GrowthRate,
			Threshold: limit,
			Message:   fmt.Sprintf("User growth %.1f%% is below %.1f%%", u.GrowthRate, limit),
		})
	}

	for _, f := range tx.Features {
		spec, ok := cfg.Feature(f.Feature)
		if !ok {
			continue
		}
		if limit := spec.SuccessThreshold * 100; f.SuccessRate < limit {
			out = append(out, Alert{
				Metric:    "feature_success_rate:" + f.Feature,
				Value:     f.SuccessRate,
				Threshold: limit,
				Message:   fmt.Sprintf("%s success rate %.1f%% is below its %.1f%% target", f.Feature, f.SuccessRate, limit),
			})
		}
	}
	return out
}

// Package insights turns the metric bundles into natural-language insights,
// prioritized recommendations and threshold alerts.
package insights

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/leapstack-labs/payinsight/internal/funnel"
	"github.com/leapstack-labs/payinsight/internal/metrics"
	"github.com/leapstack-labs/payinsight/internal/segment"
	"github.com/leapstack-labs/payinsight/internal/stats"
	"github.com/leapstack-labs/payinsight/internal/textfmt"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Impact ranks an insight.
type Impact string

// Impact levels.
const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// Insight types.
const (
	TypePeakUsage      = "Peak Usage Time"
	TypeWeeklyPattern  = "Weekly Pattern"
	TypeHighValueUsers = "High-Value Users"
	TypeFeatureRevenue = "Revenue by Feature"
	TypeChurnRisk      = "Churn Risk"
	TypeFeatureSuccess = "Feature Success Rate"
)

// Insight is one finding with a suggested action.
type Insight struct {
	Type    string `json:"type"`
	Insight string `json:"insight"`
	Impact  Impact `json:"impact"`
	Action  string `json:"action"`
}

// Generator derives insights from a set of tables.
// It holds no state beyond its inputs; every call recomputes.
type Generator struct {
	tables core.Tables
	cfg    core.AnalysisConfig
}

// New creates a Generator.
func New(t core.Tables, cfg core.AnalysisConfig) *Generator {
	return &Generator{tables: t, cfg: cfg}
}

// All returns behavior, revenue, churn and feature insights in that order.
func (g *Generator) All() []Insight {
	var out []Insight
	out = append(out, g.BehaviorPatterns()...)
	out = append(out, g.RevenueOptimization()...)
	out = append(out, g.ChurnRisk()...)
	out = append(out, g.FeaturePerformance()...)
	return out
}

// BehaviorPatterns reports the peak hour and the busiest and slowest weekdays.
func (g *Generator) BehaviorPatterns() []Insight {
	txs := g.tables.Transactions()

	hourly := funnel.HourlyTotals(txs)
	peakHour, peakCount := 0, 0
	for h, n := range hourly {
		if n > peakCount {
			peakHour, peakCount = h, n
		}
	}

	peak := Insight{
		Type:    TypePeakUsage,
		Insight: fmt.Sprintf("Peak transaction activity occurs at %d:00 with %s transactions", peakHour, textfmt.Int(peakCount)),
		Impact:  ImpactHigh,
		Action:  "Optimize server capacity and support during peak hours",
	}

	weekly := Insight{
		Type:    TypeWeeklyPattern,
		Insight: "No transactions recorded to establish a weekly pattern",
		Impact:  ImpactMedium,
		Action:  "Schedule promotions and maintenance accordingly",
	}
	if busiest, slowest, ok := busiestAndSlowest(funnel.DailyTotals(txs)); ok {
		weekly.Insight = fmt.Sprintf("%s is the busiest day, %s is the slowest", busiest, slowest)
	}

	return []Insight{peak, weekly}
}

// busiestAndSlowest picks the first max and first min weekday in Weekdays
// order, so ties go to the earlier day of the week (Monday first), not the
// alphabetically first name. Days without transactions are not candidates
// for slowest.
func busiestAndSlowest(daily [7]int) (busiest, slowest string, ok bool) {
	maxN, minN := 0, math.MaxInt
	bi, si := -1, -1
	for i, n := range daily {
		if n == 0 {
			continue
		}
		if n > maxN {
			maxN, bi = n, i
		}
		if n < minN {
			minN, si = n, i
		}
	}
	if bi < 0 {
		return "", "", false
	}
	return funnel.Weekdays[bi].String(), funnel.Weekdays[si].String(), true
}

// RevenueOptimization reports the high-value user cohort and the top revenue feature.
func (g *Generator) RevenueOptimization() []Insight {
	txs := g.tables.Transactions()
	revenue := segment.UserRevenue(txs)
	cut := stats.Quantile(segment.Amounts(revenue), g.cfg.HighValuePercentile)

	count := 0
	var total float64
	for _, r := range revenue {
		if r.Revenue >= cut {
			count++
			total += r.Revenue
		}
	}

	topShare := int(math.Round((1 - g.cfg.HighValuePercentile) * 100))
	highValue := Insight{
		Type:    TypeHighValueUsers,
		Insight: fmt.Sprintf("%s users (top %d%%) generate %s in revenue", textfmt.Int(count), topShare, textfmt.Float(total, 2)),
		Impact:  ImpactHigh,
		Action:  "Implement VIP program and personalized offers for high-value users",
	}

	byFeature := Insight{
		Type:    TypeFeatureRevenue,
		Insight: "No feature has generated revenue yet",
		Impact:  ImpactHigh,
		Action:  "Invest in feature development and marketing",
	}
	var best *metrics.FeatureMetrics
	features := metrics.ByFeature(txs)
	for i := range features {
		f := &features[i]
		if f.SuccessCount == 0 {
			continue
		}
		if best == nil || f.TotalRevenue > best.TotalRevenue {
			best = f
		}
	}
	if best != nil {
		byFeature.Insight = fmt.Sprintf("%s generates the highest revenue: %s", best.Feature, textfmt.Money(best.TotalRevenue))
		byFeature.Action = fmt.Sprintf("Invest in %s feature development and marketing", best.Feature)
	}

	return []Insight{highValue, byFeature}
}

// ChurnRisk counts known users inside the at-risk inactivity window.
func (g *Generator) ChurnRisk() []Insight {
	n := len(AtRisk(g.tables, g.cfg))
	text := fmt.Sprintf("%s users are at risk of churning (%d-%d days inactive)",
		textfmt.Int(n), g.cfg.AtRiskMinDays, g.cfg.AtRiskMaxDays)
	return []Insight{{
		Type:    TypeChurnRisk,
		Insight: text,
		Impact:  ImpactHigh,
		Action:  "Implement re-engagement campaigns for at-risk users",
	}}
}

// AtRisk returns activity records of known users whose days since last
// transaction fall inside [AtRiskMinDays, AtRiskMaxDays].
func AtRisk(t core.Tables, cfg core.AnalysisConfig) []core.ActivityRecord {
	known := make(map[string]struct{}, len(t.Users()))
	for _, u := range t.Users() {
		known[u.ID] = struct{}{}
	}
	now := cfg.Now()
	var out []core.ActivityRecord
	for _, a := range t.Activity() {
		if _, ok := known[a.UserID]; !ok {
			continue
		}
		days := DaysSince(now, a.LastTransactionDate)
		if days >= cfg.AtRiskMinDays && days <= cfg.AtRiskMaxDays {
			out = append(out, a)
		}
	}
	return out
}

// DaysSince returns whole days elapsed from then to now, floored.
func DaysSince(now, then time.Time) int {
	return int(math.Floor(now.Sub(then).Hours() / 24))
}

// FeaturePerformance reports the feature with the lowest success rate and
// names every catalog feature below its success threshold.
func (g *Generator) FeaturePerformance() []Insight {
	features := metrics.ByFeature(g.tables.Transactions())
	if len(features) == 0 {
		return []Insight{{
			Type:    TypeFeatureSuccess,
			Insight: "No feature transactions recorded",
			Impact:  ImpactHigh,
			Action:  "Investigate and optimize feature user experience",
		}}
	}
	worst := features[0]
	for _, f := range features[1:] {
		if f.SuccessRate < worst.SuccessRate {
			worst = f
		}
	}
	text := fmt.Sprintf("%s has the lowest success rate: %.1f%%", worst.Feature, worst.SuccessRate)
	var below []string
	for _, f := range features {
		if spec, ok := g.cfg.Feature(f.Feature); ok && f.SuccessRate < spec.SuccessThreshold*100 {
			below = append(below, f.Feature)
		}
	}
	if len(below) > 0 {
		text += "; below target: " + strings.Join(below, ", ")
	}
	return []Insight{{
		Type:    TypeFeatureSuccess,
		Insight: text,
		Impact:  ImpactHigh,
		Action:  fmt.Sprintf("Investigate and optimize %s user experience", worst.Feature),
	}}
}

package funnel

import (
	"slices"
	"time"

	"github.com/leapstack-labs/payinsight/internal/stats"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Weekdays lists days Monday first, the order used by every day grid.
var Weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// WeekdayIndex maps a weekday onto its position in Weekdays.
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// FeatureUsage is one feature's dense usage grids and retention.
type FeatureUsage struct {
	Feature       string  `json:"feature"`
	Hourly        [24]int `json:"hourly"`
	Daily         [7]int  `json:"daily"` // Monday first
	RetentionRate float64 `json:"retention_rate"`
	TotalUsers    int     `json:"total_users"`
	RetainedUsers int     `json:"retained_users"`
}

// Engagement holds per-feature usage, sorted by feature name.
type Engagement struct {
	Features []FeatureUsage `json:"features"`
}

// Feature returns usage for one feature.
func (e Engagement) Feature(name string) (FeatureUsage, bool) {
	for _, f := range e.Features {
		if f.Feature == name {
			return f, true
		}
	}
	return FeatureUsage{}, false
}

// Retention returns retention rate keyed by feature.
func (e Engagement) Retention() map[string]float64 {
	out := make(map[string]float64, len(e.Features))
	for _, f := range e.Features {
		out[f.Feature] = f.RetentionRate
	}
	return out
}

// ComputeEngagement builds hourly and daily grids and retention per feature.
// Retention is the share of a feature's all-time users who used it again
// within the retention window.
func ComputeEngagement(t core.Tables, cfg core.AnalysisConfig) Engagement {
	since := cfg.Since(cfg.RetentionWindowDays)

	type acc struct {
		usage    FeatureUsage
		all      map[string]struct{}
		retained map[string]struct{}
	}
	groups := make(map[string]*acc)
	for _, tx := range t.Transactions() {
		g, ok := groups[tx.Feature]
		if !ok {
			g = &acc{
				usage:    FeatureUsage{Feature: tx.Feature},
				all:      make(map[string]struct{}),
				retained: make(map[string]struct{}),
			}
			groups[tx.Feature] = g
		}
		g.usage.Hourly[tx.Hour()]++
		g.usage.Daily[WeekdayIndex(tx.Weekday())]++
		g.all[tx.UserID] = struct{}{}
		if !tx.Timestamp.Before(since) {
			g.retained[tx.UserID] = struct{}{}
		}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	slices.Sort(names)

	e := Engagement{Features: make([]FeatureUsage, 0, len(names))}
	for _, name := range names {
		g := groups[name]
		u := g.usage
		u.TotalUsers = len(g.all)
		u.RetainedUsers = len(g.retained)
		u.RetentionRate = stats.Percent(float64(u.RetainedUsers), float64(u.TotalUsers))
		e.Features = append(e.Features, u)
	}
	return e
}

// HourlyTotals counts transactions per hour across all features.
func HourlyTotals(txs []core.Transaction) [24]int {
	var out [24]int
	for _, tx := range txs {
		out[tx.Hour()]++
	}
	return out
}

// DailyTotals counts transactions per weekday (Monday first) across all features.
func DailyTotals(txs []core.Transaction) [7]int {
	var out [7]int
	for _, tx := range txs {
		out[WeekdayIndex(tx.Weekday())]++
	}
	return out
}

// Package segment buckets users by activity level and by revenue value.
//
// Value tiers are derived from percentiles of the current data and are
// recomputed on every call.
package segment

import (
	"cmp"
	"slices"

	"github.com/leapstack-labs/payinsight/internal/stats"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// ActivityBand labels activity segments.
type ActivityBand string

// Activity bands.
const (
	LowActivity    ActivityBand = "Low Activity"
	MediumActivity ActivityBand = "Medium Activity"
	HighActivity   ActivityBand = "High Activity"
)

// ActivityBands lists bands from least to most active.
var ActivityBands = []ActivityBand{LowActivity, MediumActivity, HighActivity}

// ValueTier labels value segments.
type ValueTier string

// Value tiers.
const (
	HighValue    ValueTier = "High Value"
	MediumValue  ValueTier = "Medium Value"
	LowValue     ValueTier = "Low Value"
	MinimalValue ValueTier = "Minimal Value"
)

// ValueTiers lists tiers from most to least valuable.
var ValueTiers = []ValueTier{HighValue, MediumValue, LowValue, MinimalValue}

// Count is one segment with its share of the population.
type Count struct {
	Segment string  `json:"segment"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ActivitySegments counts activity records per band.
type ActivitySegments struct {
	Total    int     `json:"total"`
	Segments []Count `json:"segments"`
}

// Get returns the count for one band.
func (a ActivitySegments) Get(b ActivityBand) int {
	return lookup(a.Segments, string(b))
}

// ValueSegments counts revenue-generating users per tier.
type ValueSegments struct {
	Total      int     `json:"total"`
	Thresholds Cuts    `json:"thresholds"`
	Segments   []Count `json:"segments"`
}

// Get returns the count for one tier.
func (v ValueSegments) Get(tier ValueTier) int {
	return lookup(v.Segments, string(tier))
}

// Cuts are the revenue values at the configured percentiles.
type Cuts struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// Band classifies days active per month.
// Values at or below ActivityLowMax (including zero) are Low.
func Band(days int, cfg core.AnalysisConfig) ActivityBand {
	switch {
	case days <= cfg.ActivityLowMax:
		return LowActivity
	case days <= cfg.ActivityMediumMax:
		return MediumActivity
	default:
		return HighActivity
	}
}

// Tier classifies a revenue total against the cut points.
func (c Cuts) Tier(revenue float64) ValueTier {
	switch {
	case revenue >= c.High:
		return HighValue
	case revenue >= c.Medium:
		return MediumValue
	case revenue >= c.Low:
		return LowValue
	default:
		return MinimalValue
	}
}

// Activity buckets activity records into bands.
func Activity(t core.Tables, cfg core.AnalysisConfig) ActivitySegments {
	counts := make(map[ActivityBand]int, len(ActivityBands))
	activity := t.Activity()
	for _, a := range activity {
		counts[Band(a.DaysActivePerMonth, cfg)]++
	}
	out := ActivitySegments{Total: len(activity)}
	for _, b := range ActivityBands {
		out.Segments = append(out.Segments, Count{
			Segment: string(b),
			Count:   counts[b],
			Percent: stats.Percent(float64(counts[b]), float64(len(activity))),
		})
	}
	return out
}

// Value buckets users with successful revenue into value tiers.
func Value(t core.Tables, cfg core.AnalysisConfig) ValueSegments {
	revenue := UserRevenue(t.Transactions())
	cuts := CutsFor(revenue, cfg)

	counts := make(map[ValueTier]int, len(ValueTiers))
	for _, r := range revenue {
		counts[cuts.Tier(r.Revenue)]++
	}
	out := ValueSegments{Total: len(revenue), Thresholds: cuts}
	for _, tier := range ValueTiers {
		out.Segments = append(out.Segments, Count{
			Segment: string(tier),
			Count:   counts[tier],
			Percent: stats.Percent(float64(counts[tier]), float64(len(revenue))),
		})
	}
	return out
}

// Revenue is a user's total successful transaction amount.
type Revenue struct {
	UserID  string  `json:"user_id"`
	Revenue float64 `json:"revenue"`
}

// UserRevenue sums successful amounts per user, sorted by user ID.
// Users without a successful transaction are absent.
func UserRevenue(txs []core.Transaction) []Revenue {
	sums := make(map[string]float64)
	for _, tx := range txs {
		if tx.Succeeded() {
			sums[tx.UserID] += tx.Amount
		}
	}
	out := make([]Revenue, 0, len(sums))
	for id, sum := range sums {
		out = append(out, Revenue{UserID: id, Revenue: sum})
	}
	slices.SortFunc(out, func(a, b Revenue) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

// Amounts extracts the revenue values.
func Amounts(revenue []Revenue) []float64 {
	out := make([]float64, len(revenue))
	for i, r := range revenue {
		out[i] = r.Revenue
	}
	return out
}

// CutsFor evaluates the configured value-tier percentiles.
func CutsFor(revenue []Revenue, cfg core.AnalysisConfig) Cuts {
	q := stats.Quantiles(Amounts(revenue), cfg.ValueTiers.Low, cfg.ValueTiers.Medium, cfg.ValueTiers.High)
	return Cuts{Low: q[0], Medium: q[1], High: q[2]}
}

func lookup(counts []Count, name string) int {
	for _, c := range counts {
		if c.Segment == name {
			return c.Count
		}
	}
	return 0
}

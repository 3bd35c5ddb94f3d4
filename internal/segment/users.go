package segment

import (
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// UserSegment is one user's activity band and value tier.
// Fields are empty when the user has no activity record or no revenue.
type UserSegment struct {
	UserID       string       `json:"user_id"`
	ActivityBand ActivityBand `json:"activity_level"`
	ValueTier    ValueTier    `json:"value_segment"`
	Revenue      float64      `json:"revenue"`
}

// Users classifies every known user, in users-table order.
func Users(t core.Tables, cfg core.AnalysisConfig) []UserSegment {
	revenue := UserRevenue(t.Transactions())
	cuts := CutsFor(revenue, cfg)
	byUser := make(map[string]float64, len(revenue))
	for _, r := range revenue {
		byUser[r.UserID] = r.Revenue
	}

	bands := make(map[string]ActivityBand)
	for _, a := range t.Activity() {
		bands[a.UserID] = Band(a.DaysActivePerMonth, cfg)
	}

	users := t.Users()
	out := make([]UserSegment, 0, len(users))
	for _, u := range users {
		s := UserSegment{UserID: u.ID, ActivityBand: bands[u.ID]}
		if r, ok := byUser[u.ID]; ok {
			s.Revenue = r
			s.ValueTier = cuts.Tier(r)
		}
		out = append(out, s)
	}
	return out
}

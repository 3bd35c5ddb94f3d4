// Package metrics computes the user and transaction metric bundles.
//
// Every function is a pure read over core.Tables. A zero denominator yields
// a zero metric instead of an error.
package metrics

import (
	"slices"
	"time"

	"github.com/leapstack-labs/payinsight/internal/stats"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// UserMetrics summarizes the user base.
type UserMetrics struct {
	TotalUsers         int     `json:"total_users"`
	MAU                int     `json:"mau_last_3_months"`
	DAU                int     `json:"dau_last_30_days"`
	ChurnRate          float64 `json:"churn_rate"`
	GrowthRate         float64 `json:"growth_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	AvgPageViews       float64 `json:"avg_page_views"`
	AvgLoginCount      float64 `json:"avg_login_count"`
}

// Map returns the metrics keyed by their report names.
func (m UserMetrics) Map() map[string]float64 {
	return map[string]float64{
		"total_users":          float64(m.TotalUsers),
		"mau_last_3_months":    float64(m.MAU),
		"dau_last_30_days":     float64(m.DAU),
		"churn_rate":           m.ChurnRate,
		"growth_rate":          m.GrowthRate,
		"avg_session_duration": m.AvgSessionDuration,
		"avg_page_views":       m.AvgPageViews,
		"avg_login_count":      m.AvgLoginCount,
	}
}

// Users computes UserMetrics.
func Users(t core.Tables, cfg core.AnalysisConfig) UserMetrics {
	users := t.Users()
	activity := t.Activity()

	m := UserMetrics{
		TotalUsers: len(users),
		MAU:        ActiveUsers(t, cfg.Since(cfg.MAUWindowDays)),
		DAU:        ActiveUsers(t, cfg.Since(cfg.DAUWindowDays)),
		ChurnRate:  ChurnRate(activity, cfg),
		GrowthRate: GrowthRate(users),
	}

	if n := float64(len(activity)); n > 0 {
		var session, pages, logins float64
		for _, a := range activity {
			session += a.SessionDuration
			pages += float64(a.PageViews)
			logins += float64(a.LoginCount)
		}
		m.AvgSessionDuration = session / n
		m.AvgPageViews = pages / n
		m.AvgLoginCount = logins / n
	}
	return m
}

// ActiveUsers counts distinct users with a transaction at or after since.
func ActiveUsers(t core.Tables, since time.Time) int {
	seen := make(map[string]struct{})
	for _, tx := range t.Transactions() {
		if !tx.Timestamp.Before(since) {
			seen[tx.UserID] = struct{}{}
		}
	}
	return len(seen)
}

// ChurnRate is the percentage of activity records whose last transaction
// is older than the churn threshold.
func ChurnRate(activity []core.ActivityRecord, cfg core.AnalysisConfig) float64 {
	cutoff := cfg.Since(cfg.ChurnThresholdDays)
	churned := 0
	for _, a := range activity {
		if a.LastTransactionDate.Before(cutoff) {
			churned++
		}
	}
	return stats.Percent(float64(churned), float64(len(activity)))
}

// GrowthRate compares the two most recent calendar months that have signups.
// It returns 0 with fewer than two months.
func GrowthRate(users []core.User) float64 {
	cohorts := SignupCohorts(users)
	if len(cohorts) < 2 {
		return 0
	}
	current := cohorts[len(cohorts)-1].Count
	previous := cohorts[len(cohorts)-2].Count
	return stats.Percent(float64(current-previous), float64(previous))
}

// Cohort is the signup count for one calendar month.
type Cohort struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// SignupCohorts groups users by signup month, oldest first.
func SignupCohorts(users []core.User) []Cohort {
	counts := make(map[string]int)
	for _, u := range users {
		counts[u.SignupDate.Format("2006-01")]++
	}
	months := make([]string, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	slices.Sort(months)

	out := make([]Cohort, len(months))
	for i, m := range months {
		out[i] = Cohort{Month: m, Count: counts[m]}
	}
	return out
}

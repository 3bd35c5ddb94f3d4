package metrics

import (
	"cmp"
	"slices"

	"github.com/leapstack-labs/payinsight/internal/stats"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// TransactionMetrics summarizes transaction outcomes and revenue.
// Revenue figures count successful transactions only.
type TransactionMetrics struct {
	TotalTransactions   int              `json:"total_transactions"`
	SuccessfulCount     int              `json:"successful_transactions"`
	FailedCount         int              `json:"failed_transactions"`
	SuccessRate         float64          `json:"success_rate"`
	AvgTransactionValue float64          `json:"avg_transaction_value"`
	TotalRevenue        float64          `json:"total_revenue"`
	ARPU                float64          `json:"arpu"`
	TransactingUsers    int              `json:"transacting_users"`
	TransactionsPerUser float64          `json:"transactions_per_user"`
	Features            []FeatureMetrics `json:"feature_metrics"`
}

// FeatureMetrics is the per-feature breakdown.
type FeatureMetrics struct {
	Feature          string  `json:"feature"`
	TransactionCount int     `json:"transaction_count"`
	SuccessCount     int     `json:"success_count"`
	TotalRevenue     float64 `json:"total_revenue"`
	SuccessRate      float64 `json:"success_rate"`
	AvgAmount        float64 `json:"avg_amount"`
	UserCount        int     `json:"user_count"`
}

// Map returns the scalar metrics keyed by their report names.
func (m TransactionMetrics) Map() map[string]float64 {
	return map[string]float64{
		"total_transactions":      float64(m.TotalTransactions),
		"successful_transactions": float64(m.SuccessfulCount),
		"failed_transactions":     float64(m.FailedCount),
		"success_rate":            m.SuccessRate,
		"avg_transaction_value":   m.AvgTransactionValue,
		"total_revenue":           m.TotalRevenue,
		"arpu":                    m.ARPU,
		"transactions_per_user":   m.TransactionsPerUser,
	}
}

// Feature returns the breakdown for one feature.
func (m TransactionMetrics) Feature(name string) (FeatureMetrics, bool) {
	for _, f := range m.Features {
		if f.Feature == name {
			return f, true
		}
	}
	return FeatureMetrics{}, false
}

// Transactions computes TransactionMetrics.
func Transactions(t core.Tables, _ core.AnalysisConfig) TransactionMetrics {
	txs := t.Transactions()
	m := TransactionMetrics{TotalTransactions: len(txs)}

	users := make(map[string]struct{})
	for _, tx := range txs {
		users[tx.UserID] = struct{}{}
		if tx.Succeeded() {
			m.SuccessfulCount++
			m.TotalRevenue += tx.Amount
		} else {
			m.FailedCount++
		}
	}
	m.TransactingUsers = len(users)
	m.SuccessRate = stats.Percent(float64(m.SuccessfulCount), float64(m.TotalTransactions))
	m.AvgTransactionValue = stats.Ratio(m.TotalRevenue, float64(m.SuccessfulCount))
	m.ARPU = stats.Ratio(m.TotalRevenue, float64(m.TransactingUsers))
	m.TransactionsPerUser = stats.Ratio(float64(m.TotalTransactions), float64(m.TransactingUsers))
	m.Features = ByFeature(txs)
	return m
}

// ByFeature groups transactions by feature, sorted by feature name.
func ByFeature(txs []core.Transaction) []FeatureMetrics {
	type acc struct {
		FeatureMetrics
		amount float64
		users  map[string]struct{}
	}
	groups := make(map[string]*acc)
	for _, tx := range txs {
		g, ok := groups[tx.Feature]
		if !ok {
			g = &acc{FeatureMetrics: FeatureMetrics{Feature: tx.Feature}, users: make(map[string]struct{})}
			groups[tx.Feature] = g
		}
		g.TransactionCount++
		g.amount += tx.Amount
		g.users[tx.UserID] = struct{}{}
		if tx.Succeeded() {
			g.SuccessCount++
			g.TotalRevenue += tx.Amount
		}
	}

	out := make([]FeatureMetrics, 0, len(groups))
	for _, g := range groups {
		f := g.FeatureMetrics
		f.SuccessRate = stats.Percent(float64(f.SuccessCount), float64(f.TransactionCount))
		f.AvgAmount = stats.Ratio(g.amount, float64(f.TransactionCount))
		f.UserCount = len(g.users)
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b FeatureMetrics) int {
		return cmp.Compare(a.Feature, b.Feature)
	})
	return out
}

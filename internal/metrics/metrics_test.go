package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/leapstack-labs/payinsight/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_Sample(t *testing.T) {
	m := Users(testutil.SampleDataset(), testutil.SampleConfig())

	assert.Equal(t, 5, m.TotalUsers)
	assert.Equal(t, 5, m.MAU)
	assert.Equal(t, 4, m.DAU)
	assert.InDelta(t, 40.0, m.ChurnRate, 1e-9)
	assert.InDelta(t, 50.0, m.GrowthRate, 1e-9)
	assert.InDelta(t, 9.0, m.AvgSessionDuration, 1e-9)
	assert.InDelta(t, 15.2, m.AvgPageViews, 1e-9)
	assert.InDelta(t, 11.6, m.AvgLoginCount, 1e-9)

	assert.Equal(t, float64(5), m.Map()["total_users"])
}

func TestTransactions_Sample(t *testing.T) {
	m := Transactions(testutil.SampleDataset(), testutil.SampleConfig())

	assert.Equal(t, 10, m.TotalTransactions)
	assert.Equal(t, 7, m.SuccessfulCount)
	assert.Equal(t, 3, m.FailedCount)
	assert.InDelta(t, 70.0, m.SuccessRate, 1e-9)
	assert.InDelta(t, 920.0, m.TotalRevenue, 1e-9)
	assert.InDelta(t, 920.0/7, m.AvgTransactionValue, 1e-9)
	assert.InDelta(t, 184.0, m.ARPU, 1e-9)
	assert.InDelta(t, 2.0, m.TransactionsPerUser, 1e-9)

	require.Len(t, m.Features, 3)
	assert.Equal(t, []string{"Bill Pay", "Payment", "Transfer"},
		[]string{m.Features[0].Feature, m.Features[1].Feature, m.Features[2].Feature})

	tests := []struct {
		feature string
		want    FeatureMetrics
	}{
		{"Bill Pay", FeatureMetrics{Feature: "Bill Pay", TransactionCount: 2, SuccessCount: 1, TotalRevenue: 20, SuccessRate: 50, AvgAmount: 25, UserCount: 2}},
		{"Payment", FeatureMetrics{Feature: "Payment", TransactionCount: 5, SuccessCount: 4, TotalRevenue: 350, SuccessRate: 80, AvgAmount: 86, UserCount: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			got, ok := m.Feature(tt.feature)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	transfer, ok := m.Feature("Transfer")
	require.True(t, ok)
	assert.InDelta(t, 200.0/3, transfer.SuccessRate, 1e-9)
	assert.InDelta(t, 550.0, transfer.TotalRevenue, 1e-9)
}

func TestSuccessRate_NineOfTen(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var txs []core.Transaction
	for i := range 10 {
		status := core.StatusSuccess
		if i == 0 {
			status = core.StatusFailed
		}
		txs = append(txs, core.NewTransaction(fmt.Sprintf("t%d", i), "u1", 10, status, "Payment", ts))
	}

	m := Transactions(testutil.StubTables{TransactionRows: txs}, core.DefaultAnalysisConfig())
	assert.InDelta(t, 90.0, m.SuccessRate, 1e-9)
}

func TestChurnRate_TwoOfFive(t *testing.T) {
	cfg := testutil.SampleConfig()
	old := cfg.Since(45)
	recent := cfg.Since(2)
	activity := []core.ActivityRecord{
		{UserID: "a", LastTransactionDate: old},
		{UserID: "b", LastTransactionDate: old},
		{UserID: "c", LastTransactionDate: recent},
		{UserID: "d", LastTransactionDate: recent},
		{UserID: "e", LastTransactionDate: recent},
	}
	assert.InDelta(t, 40.0, ChurnRate(activity, cfg), 1e-9)
}

func TestEmptyTables(t *testing.T) {
	cfg := core.DefaultAnalysisConfig()
	empty := testutil.StubTables{}

	u := Users(empty, cfg)
	assert.Equal(t, UserMetrics{}, u)

	tx := Transactions(empty, cfg)
	assert.Equal(t, 0.0, tx.SuccessRate)
	assert.Equal(t, 0.0, tx.ARPU)
	assert.Equal(t, 0.0, tx.AvgTransactionValue)
	assert.Empty(t, tx.Features)
}

func TestGrowthRate(t *testing.T) {
	month := func(m time.Month) core.User {
		return core.User{SignupDate: time.Date(2024, m, 3, 0, 0, 0, 0, time.UTC)}
	}
	tests := []struct {
		name  string
		users []core.User
		want  float64
	}{
		{"no users", nil, 0},
		{"single month", []core.User{month(1), month(1)}, 0},
		{"decline", []core.User{month(1), month(1), month(1), month(1), month(3)}, -75},
		{"latest months only", []core.User{month(1), month(2), month(2), month(3), month(3), month(3)}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, GrowthRate(tt.users), 1e-9)
		})
	}
}

func TestRatesBounded(t *testing.T) {
	cfg := testutil.SampleConfig()
	ds := testutil.SampleDataset()

	tx := Transactions(ds, cfg)
	assert.GreaterOrEqual(t, tx.SuccessRate, 0.0)
	assert.LessOrEqual(t, tx.SuccessRate, 100.0)
	for _, f := range tx.Features {
		assert.GreaterOrEqual(t, f.SuccessRate, 0.0)
		assert.LessOrEqual(t, f.SuccessRate, 100.0)
	}

	u := Users(ds, cfg)
	assert.GreaterOrEqual(t, u.ChurnRate, 0.0)
	assert.LessOrEqual(t, u.ChurnRate, 100.0)
}

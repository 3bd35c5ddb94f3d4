package segment

import (
	"fmt"
	"testing"

	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/leapstack-labs/payinsight/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBand(t *testing.T) {
	cfg := core.DefaultAnalysisConfig()
	tests := []struct {
		days int
		want ActivityBand
	}{
		{0, LowActivity},
		{1, LowActivity},
		{10, LowActivity},
		{11, MediumActivity},
		{20, MediumActivity},
		{21, HighActivity},
		{31, HighActivity},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d days", tt.days), func(t *testing.T) {
			assert.Equal(t, tt.want, Band(tt.days, cfg))
		})
	}
}

func TestActivity_Sample(t *testing.T) {
	s := Activity(testutil.SampleDataset(), testutil.SampleConfig())

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Get(LowActivity))
	assert.Equal(t, 1, s.Get(MediumActivity))
	assert.Equal(t, 2, s.Get(HighActivity))
	require.Len(t, s.Segments, 3)
	assert.InDelta(t, 40.0, s.Segments[0].Percent, 1e-9)
}

func TestValue_Sample(t *testing.T) {
	v := Value(testutil.SampleDataset(), testutil.SampleConfig())

	assert.Equal(t, 4, v.Total)
	assert.InDelta(t, 195.0, v.Thresholds.Low, 1e-9)
	assert.InDelta(t, 324.0, v.Thresholds.Medium, 1e-9)
	assert.InDelta(t, 463.5, v.Thresholds.High, 1e-9)

	assert.Equal(t, 1, v.Get(HighValue))
	assert.Equal(t, 0, v.Get(MediumValue))
	assert.Equal(t, 1, v.Get(LowValue))
	assert.Equal(t, 2, v.Get(MinimalValue))
}

func TestValue_PartitionsRevenueUsers(t *testing.T) {
	var txs []core.Transaction
	for i := range 40 {
		user := fmt.Sprintf("u%02d", i%17)
		status := core.StatusSuccess
		if i%5 == 0 {
			status = core.StatusFailed
		}
		txs = append(txs, core.NewTransaction(fmt.Sprintf("t%d", i), user, float64(i*7%53), status, "Payment", testutil.SampleAsOf))
	}
	tables := testutil.StubTables{TransactionRows: txs}
	cfg := core.DefaultAnalysisConfig()

	v := Value(tables, cfg)
	sum := 0
	for _, c := range v.Segments {
		sum += c.Count
	}
	assert.Equal(t, len(UserRevenue(txs)), sum)
	assert.Equal(t, v.Total, sum)
}

func TestValue_Idempotent(t *testing.T) {
	ds := testutil.SampleDataset()
	cfg := testutil.SampleConfig()
	assert.Equal(t, Value(ds, cfg), Value(ds, cfg))
	assert.Equal(t, Users(ds, cfg), Users(ds, cfg))
}

func TestValue_Empty(t *testing.T) {
	v := Value(testutil.StubTables{}, core.DefaultAnalysisConfig())
	assert.Equal(t, 0, v.Total)
	for _, c := range v.Segments {
		assert.Equal(t, 0, c.Count)
		assert.Equal(t, 0.0, c.Percent)
	}
}

func TestUsers_Sample(t *testing.T) {
	got := Users(testutil.SampleDataset(), testutil.SampleConfig())
	want := []UserSegment{
		{UserID: "u1", ActivityBand: HighActivity, ValueTier: MinimalValue, Revenue: 190},
		{UserID: "u2", ActivityBand: MediumActivity, ValueTier: LowValue, Revenue: 200},
		{UserID: "u3", ActivityBand: LowActivity, ValueTier: MinimalValue, Revenue: 20},
		{UserID: "u4", ActivityBand: HighActivity, ValueTier: HighValue, Revenue: 510},
		{UserID: "u5", ActivityBand: LowActivity},
	}
	assert.Equal(t, want, got)
}

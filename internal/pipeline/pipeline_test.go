package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOptions(t *testing.T) Options {
	t.Helper()
	files := testutil.WriteSampleData(t)
	return Options{
		Paths:    loader.Paths{Users: files.Users, Transactions: files.Transactions, Activity: files.Activity},
		Analysis: testutil.SampleConfig(),
		Logger:   testutil.NewTestLogger(t),
	}
}

func TestRun_Sequential(t *testing.T) {
	res, err := Run(context.Background(), sampleOptions(t))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Users.TotalUsers)
	assert.InDelta(t, 70.0, res.Transactions.SuccessRate, 1e-9)
	assert.Equal(t, 4, res.Funnel.TransactionCompleted)
	assert.Len(t, res.Engagement.Features, 3)
	assert.Equal(t, 5, res.ActivitySegments.Total)
	assert.Equal(t, 4, res.ValueSegments.Total)
	assert.Len(t, res.UserSegments, 5)
	assert.Len(t, res.Insights, 6)
	assert.Len(t, res.Recommendations, 3)
	assert.NotEmpty(t, res.Alerts)

	assert.Positive(t, res.Timings.Total)
	assert.GreaterOrEqual(t, res.Timings.Total, res.Timings.DataLoading)
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	opts := sampleOptions(t)
	seq, err := Run(context.Background(), opts)
	require.NoError(t, err)

	opts.Parallel = true
	par, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, seq.Users, par.Users)
	assert.Equal(t, seq.Transactions, par.Transactions)
	assert.Equal(t, seq.Funnel, par.Funnel)
	assert.Equal(t, seq.Engagement, par.Engagement)
	assert.Equal(t, seq.ValueSegments, par.ValueSegments)
	assert.Equal(t, seq.Insights, par.Insights)
}

func TestRun_LoadError(t *testing.T) {
	opts := sampleOptions(t)
	opts.Paths.Activity = opts.Paths.Activity + ".missing"

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, loader.ErrDataNotFound))
}

func TestAnalyze_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, testutil.SampleDataset(), Options{Analysis: testutil.SampleConfig()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_PinsAsOf(t *testing.T) {
	opts := Options{Analysis: testutil.SampleConfig()}
	res, err := Analyze(context.Background(), testutil.SampleDataset(), opts)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleAsOf, res.Analysis.AsOf)

	opts.Analysis.AsOf = time.Time{}
	res, err = Analyze(context.Background(), testutil.SampleDataset(), opts)
	require.NoError(t, err)
	assert.False(t, res.Analysis.AsOf.IsZero())
}

func TestBench(t *testing.T) {
	res, err := Bench(context.Background(), sampleOptions(t), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Runs)
	require.Len(t, res.Phases, 4)
	assert.Equal(t, "total", res.Phases[3].Phase)
	assert.GreaterOrEqual(t, res.Phases[3].Max, res.Phases[3].Min)

	_, err = Bench(context.Background(), sampleOptions(t), 0)
	assert.Error(t, err)
}

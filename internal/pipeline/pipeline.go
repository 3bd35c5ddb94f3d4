// Package pipeline loads the input tables and runs every engine over them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/payinsight/internal/funnel"
	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/internal/metrics"
	"github.com/leapstack-labs/payinsight/internal/segment"
	"github.com/leapstack-labs/payinsight/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Options controls a pipeline run.
type Options struct {
	Paths    loader.Paths
	Analysis core.AnalysisConfig

	// Parallel runs the independent engines concurrently.
	Parallel bool

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration

	Logger *slog.Logger
}

// Timings records how long each phase took.
type Timings struct {
	DataLoading time.Duration `json:"data_loading_time"`
	Processing  time.Duration `json:"processing_time"`
	Analytics   time.Duration `json:"analytics_time"`
	Total       time.Duration `json:"total_time"`
}

// Result holds every metric bundle from one run.
type Result struct {
	Dataset  *core.Dataset      `json:"-"`
	Analysis core.AnalysisConfig `json:"analysis"`

	Users            metrics.UserMetrics        `json:"user_metrics"`
	Transactions     metrics.TransactionMetrics `json:"transaction_metrics"`
	Funnel           funnel.Funnel              `json:"funnel"`
	Engagement       funnel.Engagement          `json:"engagement"`
	ActivitySegments segment.ActivitySegments   `json:"activity_segments"`
	ValueSegments    segment.ValueSegments      `json:"value_segments"`
	UserSegments     []segment.UserSegment      `json:"-"`
	Insights         []insights.Insight         `json:"insights"`
	Recommendations  []insights.Category        `json:"recommendations"`
	Alerts           []insights.Alert           `json:"alerts"`

	Timings Timings `json:"timings"`
}

// Run loads the dataset and analyzes it.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.logger()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	logger.Debug("loading dataset",
		slog.String("users", opts.Paths.Users),
		slog.String("transactions", opts.Paths.Transactions),
		slog.String("activity", opts.Paths.Activity))

	ds, err := loader.Load(ctx, opts.Paths, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	loadTime := time.Since(start)

	res, err := analyze(ctx, ds, opts)
	if err != nil {
		return nil, err
	}
	res.Timings.DataLoading = loadTime
	res.Timings.Total = time.Since(start)
	return res, nil
}

// Analyze runs the engines over an already loaded dataset.
func Analyze(ctx context.Context, ds *core.Dataset, opts Options) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := analyze(ctx, ds, opts)
	if err != nil {
		return nil, err
	}
	res.Timings.Total = time.Since(start)
	return res, nil
}

func analyze(ctx context.Context, ds *core.Dataset, opts Options) (*Result, error) {
	logger := opts.logger()
	cfg := opts.Analysis
	if cfg.AsOf.IsZero() {
		// Pin the reference instant so every engine sees the same windows.
		cfg.AsOf = time.Now()
	}
	res := &Result{Dataset: ds, Analysis: cfg}

	start := time.Now()
	engines := []func(){
		func() { res.Users = metrics.Users(ds, cfg) },
		func() { res.Transactions = metrics.Transactions(ds, cfg) },
		func() { res.Funnel = funnel.Compute(ds, cfg) },
		func() { res.Engagement = funnel.ComputeEngagement(ds, cfg) },
		func() { res.ActivitySegments = segment.Activity(ds, cfg) },
		func() { res.ValueSegments = segment.Value(ds, cfg) },
		func() { res.UserSegments = segment.Users(ds, cfg) },
	}
	if err := runEngines(ctx, engines, opts.Parallel); err != nil {
		return nil, err
	}
	res.Timings.Processing = time.Since(start)
	logger.Debug("metrics computed",
		slog.Bool("parallel", opts.Parallel),
		slog.Duration("elapsed", res.Timings.Processing))

	start = time.Now()
	gen := insights.New(ds, cfg)
	res.Insights = gen.All()
	res.Recommendations = insights.Recommend(res.Insights, cfg.TopRecommendations)
	res.Alerts = insights.Alerts(res.Users, res.Transactions, cfg)
	res.Timings.Analytics = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}
	for _, a := range res.Alerts {
		logger.Warn("threshold alert", slog.String("metric", a.Metric), slog.Float64("value", a.Value))
	}
	return res, nil
}

// runEngines executes each engine once. Engines write disjoint fields and
// only read the immutable dataset.
func runEngines(ctx context.Context, engines []func(), parallel bool) error {
	if !parallel {
		for _, run := range engines {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("analysis aborted: %w", err)
			}
			run()
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range engines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("analysis aborted: %w", err)
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

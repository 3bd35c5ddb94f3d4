package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// PhaseStats summarizes one phase's latency over repeated runs.
type PhaseStats struct {
	Phase string        `json:"phase"`
	Min   time.Duration `json:"min"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// BenchResult is the outcome of Bench.
type BenchResult struct {
	Runs   int          `json:"runs"`
	Phases []PhaseStats `json:"phases"`
}

// Bench runs the full pipeline n times and reports per-phase latency.
func Bench(ctx context.Context, opts Options, n int) (*BenchResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bench runs must be positive, got %d", n)
	}

	// Microsecond resolution up to one hour.
	newHist := func() *hdrhistogram.Histogram { return hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3) }
	phases := []string{"data_loading", "processing", "analytics", "total"}
	hists := map[string]*hdrhistogram.Histogram{}
	for _, p := range phases {
		hists[p] = newHist()
	}

	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := Run(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("bench run %d: %w", i+1, err)
		}
		record(hists["data_loading"], res.Timings.DataLoading)
		record(hists["processing"], res.Timings.Processing)
		record(hists["analytics"], res.Timings.Analytics)
		record(hists["total"], res.Timings.Total)
	}

	out := &BenchResult{Runs: n}
	for _, p := range phases {
		h := hists[p]
		out.Phases = append(out.Phases, PhaseStats{
			Phase: p,
			Min:   micros(h.Min()),
			Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
			P50:   micros(h.ValueAtQuantile(50)),
			P95:   micros(h.ValueAtQuantile(95)),
			P99:   micros(h.ValueAtQuantile(99)),
			Max:   micros(h.Max()),
		})
	}
	return out, nil
}

func record(h *hdrhistogram.Histogram, d time.Duration) {
	v := d.Microseconds()
	if v < 1 {
		v = 1
	}
	_ = h.RecordValue(v)
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

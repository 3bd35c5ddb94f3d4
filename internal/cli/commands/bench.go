package commands

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/textfmt"
	"github.com/spf13/cobra"
)

// NewBenchCommand creates the bench command.
func NewBenchCommand() *cobra.Command {
	var (
		runs     int
		parallel bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure pipeline timings over repeated runs",
		Long: `Run the full pipeline repeatedly and report latency percentiles for data
loading, processing, analytics and the whole run.`,
		Example: `  payinsight bench -n 20
  payinsight bench -n 50 --parallel -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			opts := cmdCtx.PipelineOptions()
			if cmd.Flags().Changed("parallel") {
				opts.Parallel = parallel
			}

			res, err := pipeline.Bench(cmd.Context(), opts, runs)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(res)
			}
			renderBench(r, res, opts.Parallel)
			return nil
		},
	}
	cmd.Flags().IntVarP(&runs, "runs", "n", 10, "Number of pipeline runs")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run the engines concurrently (default from config)")
	return cmd
}

func renderBench(r *output.Renderer, res *pipeline.BenchResult, parallel bool) {
	mode := "sequential"
	if parallel {
		mode = "parallel"
	}
	section(r, 1, "Pipeline Benchmark")
	r.KeyValue("Runs", textfmt.Int(res.Runs))
	r.KeyValue("Mode", mode)
	r.Println("")

	rows := make([]table.Row, len(res.Phases))
	for i, p := range res.Phases {
		rows[i] = table.Row{p.Phase, dur(p.Min), dur(p.Mean), dur(p.P50), dur(p.P95), dur(p.P99), dur(p.Max)}
	}
	renderTable(r, table.Row{"Phase", "Min", "Mean", "P50", "P95", "P99", "Max"}, rows)
}

func dur(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/report"
	"github.com/leapstack-labs/payinsight/internal/state"
	"github.com/spf13/cobra"
)

// ReportOptions holds options for the report command.
type ReportOptions struct {
	Detailed  bool
	Out       string
	NoHistory bool
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	opts := &ReportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the executive summary or detailed report",
		Long: `Run the full analysis and print the executive summary.

Use --detailed for the per-section report with feature, funnel and segment
tables. Every run is recorded in the run history unless --no-history is set.`,
		Example: `  # Executive summary
  payinsight report

  # Detailed report as markdown
  payinsight report --detailed -o markdown

  # Pin the reference date and write to a file
  payinsight report --as-of 2024-06-30 --out summary.txt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "Render the detailed report")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record this run")

	return cmd
}

func runReport(cmd *cobra.Command, opts *ReportOptions) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	res, runID, err := recordRun(ctx, cmdCtx, opts.NoHistory)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	ropts := reportOptions(r)
	if opts.Out != "" {
		ropts.Styled = false
		if err := writeReportFile(opts.Out, res, opts.Detailed, ropts); err != nil {
			return err
		}
	} else if err := renderReport(r.Writer(), res, opts.Detailed, ropts); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if runID != "" {
		cmdCtx.Logger.Info("run recorded", "run", runID)
	}
	if opts.Out != "" {
		r.Success("Report written to " + opts.Out)
	}
	return nil
}

// writeReportFile renders the report into path, creating parent
// directories. A failed close is reported.
func writeReportFile(path string, res *pipeline.Result, detailed bool, opts report.Options) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := renderReport(f, res, detailed, opts); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

func renderReport(w io.Writer, res *pipeline.Result, detailed bool, opts report.Options) error {
	if detailed {
		return report.Detailed(w, res, opts)
	}
	return report.ExecutiveSummary(w, res, opts)
}

// recordRun runs the pipeline and records it in the run history. History
// is skipped when disabled or when the store cannot be opened.
func recordRun(ctx context.Context, cmdCtx *CommandContext, noHistory bool) (*pipeline.Result, string, error) {
	opts := cmdCtx.PipelineOptions()
	if opts.Analysis.AsOf.IsZero() {
		opts.Analysis.AsOf = time.Now()
	}
	run := func(ctx context.Context) (*pipeline.Result, error) {
		return pipeline.Run(ctx, opts)
	}

	if noHistory {
		res, err := run(ctx)
		return res, "", err
	}

	store, err := cmdCtx.OpenStore(ctx)
	if err != nil {
		cmdCtx.Logger.Warn("run history unavailable", "error", err)
		res, err := run(ctx)
		return res, "", err
	}
	defer func() { _ = store.Close() }()

	return state.Record(ctx, store, cmdCtx.Cfg.Environment, opts.Analysis.AsOf, cmdCtx.Logger, run)
}

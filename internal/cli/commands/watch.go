package commands

import (
	"context"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/payinsight/internal/watch"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var (
		detailed bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render the report whenever an input file changes",
		Long: `Render the report, then watch the three input files and render it again
after each change. Runs are sequential; a failed run is reported and the
watch continues. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			return runWatch(cmd.Context(), cmdCtx, detailed, debounce)
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Render the detailed report")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-running")
	return cmd
}

func runWatch(ctx context.Context, cmdCtx *CommandContext, detailed bool, debounce time.Duration) error {
	r := cmdCtx.Renderer
	render := func() {
		res, err := cmdCtx.Run(ctx)
		if err != nil {
			r.Error(err.Error())
			return
		}
		if err := renderReport(r.Writer(), res, detailed, reportOptions(r)); err != nil {
			r.Error(err.Error())
		}
	}

	render()

	paths := cmdCtx.Cfg.Data
	files := []string{paths.Users, paths.Transactions, paths.Activity}
	r.Muted("Watching " + filepath.Dir(paths.Users) + " for changes...")
	return watch.Files(ctx, files, debounce, cmdCtx.Logger, func(changed string) {
		cmdCtx.Logger.Info("input changed, re-running", "file", changed)
		render()
	})
}

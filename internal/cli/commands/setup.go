package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/payinsight/internal/cli/config"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/report"
	"github.com/leapstack-labs/payinsight/internal/state"
	"github.com/spf13/cobra"
)

// AnnotationSkipValidation marks commands that run even when the
// configuration has validation errors.
const AnnotationSkipValidation = "payinsight/skip-validation"

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the values the root
// command stored on cmd's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.GetConfig(ctx)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}
}

// PipelineOptions builds pipeline options from the configuration.
func (c *CommandContext) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Paths:    c.Cfg.Data,
		Analysis: c.Cfg.Analysis,
		Parallel: c.Cfg.Performance.Parallel,
		Timeout:  c.Cfg.PipelineTimeout(),
		Logger:   c.Logger,
	}
}

// Run executes the pipeline once.
func (c *CommandContext) Run(ctx context.Context) (*pipeline.Result, error) {
	return pipeline.Run(ctx, c.PipelineOptions())
}

// OpenStore opens the configured run history store.
func (c *CommandContext) OpenStore(ctx context.Context) (state.Store, error) {
	store, err := state.Open(ctx, c.Cfg.State, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

// reportOptions maps the renderer's mode to report rendering options.
func reportOptions(r *output.Renderer) report.Options {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return report.Options{Format: report.FormatJSON}
	case output.ModeMarkdown:
		return report.Options{Format: report.FormatMarkdown}
	default:
		return report.Options{Format: report.FormatText, Styled: r.Styled()}
	}
}

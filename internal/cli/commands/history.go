package commands

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
	"github.com/leapstack-labs/payinsight/internal/state"
	"github.com/leapstack-labs/payinsight/internal/textfmt"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past report runs",
		Long: `List recorded report runs, newest first, or show one run with its
headline metrics and the alerts that fired.`,
		Example: `  payinsight history
  payinsight history --limit 5 -o json
  payinsight history 2f1c9a4e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			ctx := cmd.Context()

			store, err := cmdCtx.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			r := cmdCtx.Renderer
			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(run)
				}
				renderRun(r, run)
				return nil
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				if runs == nil {
					runs = []*state.Run{}
				}
				return r.JSON(runs)
			}
			renderRuns(r, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func renderRuns(r *output.Renderer, runs []*state.Run) {
	section(r, 1, "Run History")
	if len(runs) == 0 {
		r.Muted("No runs recorded yet. Run 'payinsight report' to record one.")
		return
	}
	rows := make([]table.Row, len(runs))
	for i, run := range runs {
		users, churn, revenue := "-", "-", "-"
		if s := run.Summary; s != nil {
			users = textfmt.Int(s.TotalUsers)
			churn = textfmt.Percent(s.ChurnRate, 1)
			revenue = textfmt.Money(s.TotalRevenue)
		}
		rows[i] = table.Row{
			shortID(run.ID),
			run.Environment,
			string(run.Status),
			run.AsOf.Format(time.DateOnly),
			run.StartedAt.Local().Format(time.DateTime),
			run.Duration().Round(time.Millisecond).String(),
			users, churn, revenue,
		}
	}
	renderTable(r, table.Row{"Run", "Env", "Status", "As Of", "Started", "Duration", "Users", "Churn", "Revenue"}, rows)
}

func renderRun(r *output.Renderer, run *state.Run) {
	section(r, 1, "Run "+run.ID)
	r.KeyValue("Environment", run.Environment)
	r.KeyValue("Status", string(run.Status))
	r.KeyValue("As of", run.AsOf.Format(time.DateTime))
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		r.KeyValue("Duration", run.Duration().Round(time.Millisecond).String())
	}
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}

	if s := run.Summary; s != nil {
		section(r, 2, "Metrics")
		r.KeyValue("Total Users", textfmt.Int(s.TotalUsers))
		r.KeyValue("Monthly Active Users", textfmt.Int(s.MonthlyActiveUsers))
		r.KeyValue("Churn Rate", textfmt.Percent(s.ChurnRate, 2))
		r.KeyValue("Growth Rate", textfmt.Percent(s.GrowthRate, 2))
		r.KeyValue("Transactions", textfmt.Int(s.TotalTransactions))
		r.KeyValue("Success Rate", textfmt.Percent(s.SuccessRate, 2))
		r.KeyValue("Total Revenue", textfmt.Money(s.TotalRevenue))
		r.KeyValue("Overall Conversion", textfmt.Percent(s.OverallConversion, 2))
		r.KeyValue("Insights", textfmt.Int(s.Insights))
	}

	if len(run.Alerts) > 0 {
		section(r, 2, "Alerts")
		for _, a := range run.Alerts {
			r.StatusLine(a.Message, "warn", "")
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

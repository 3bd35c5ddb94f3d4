package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
	"github.com/leapstack-labs/payinsight/internal/funnel"
	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/metrics"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/segment"
	"github.com/leapstack-labs/payinsight/internal/textfmt"
	"github.com/spf13/cobra"
)

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics [users|transactions]",
		Short: "Show user and transaction metrics",
		Long: `Compute user metrics (MAU, DAU, churn, growth, engagement averages) and
transaction metrics (success rate, revenue, ARPU, per-feature breakdown).`,
		Example: `  payinsight metrics
  payinsight metrics transactions -o json`,
		ValidArgs: []string{"users", "transactions"},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			which := ""
			if len(args) > 0 {
				which = args[0]
			}
			return runView(cmd, func(r *output.Renderer, res *pipeline.Result) error {
				return renderMetrics(r, res, which)
			})
		},
	}
}

// NewFunnelCommand creates the funnel command.
func NewFunnelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "funnel",
		Short: "Show the conversion funnel and feature engagement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runView(cmd, renderFunnel)
		},
	}
}

// NewSegmentsCommand creates the segments command.
func NewSegmentsCommand() *cobra.Command {
	var showUsers bool
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Show activity and value segments",
		Long: `Segment users by days active per month (activity) and by total successful
revenue against percentile cut points (value).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runView(cmd, func(r *output.Renderer, res *pipeline.Result) error {
				return renderSegments(r, res, showUsers)
			})
		},
	}
	cmd.Flags().BoolVar(&showUsers, "users", false, "List every user's segment")
	return cmd
}

// NewInsightsCommand creates the insights command.
func NewInsightsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show insights, recommendations and alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runView(cmd, renderInsights)
		},
	}
}

// runView runs the pipeline and hands the result to a renderer.
func runView(cmd *cobra.Command, render func(*output.Renderer, *pipeline.Result) error) error {
	cmdCtx := NewCommandContext(cmd)
	res, err := cmdCtx.Run(cmd.Context())
	if err != nil {
		return err
	}
	return render(cmdCtx.Renderer, res)
}

// section starts a titled block. Markdown gets a blank line after the header.
func section(r *output.Renderer, level int, title string) {
	r.Println("")
	r.Header(level, title)
	if r.EffectiveMode() != output.ModeText {
		r.Println("")
	}
}

func renderMetrics(r *output.Renderer, res *pipeline.Result, which string) error {
	if r.EffectiveMode() == output.ModeJSON {
		switch which {
		case "users":
			return r.JSON(res.Users)
		case "transactions":
			return r.JSON(res.Transactions)
		}
		return r.JSON(struct {
			Users        metrics.UserMetrics        `json:"user_metrics"`
			Transactions metrics.TransactionMetrics `json:"transaction_metrics"`
		}{res.Users, res.Transactions})
	}

	if which != "transactions" {
		u := res.Users
		section(r, 1, "User Metrics")
		r.KeyValue("Total Users", textfmt.Int(u.TotalUsers))
		r.KeyValue(fmt.Sprintf("Monthly Active Users (%d days)", res.Analysis.MAUWindowDays), textfmt.Int(u.MAU))
		r.KeyValue(fmt.Sprintf("Daily Active Users (%d days)", res.Analysis.DAUWindowDays), textfmt.Int(u.DAU))
		r.KeyValue("Churn Rate", textfmt.Percent(u.ChurnRate, 2))
		r.KeyValue("User Growth Rate", textfmt.Percent(u.GrowthRate, 2))
		r.KeyValue("Avg Session Duration", textfmt.Float(u.AvgSessionDuration, 2)+" min")
		r.KeyValue("Avg Page Views", textfmt.Float(u.AvgPageViews, 2))
		r.KeyValue("Avg Login Count", textfmt.Float(u.AvgLoginCount, 2))

		if res.Dataset != nil {
			if cohorts := metrics.SignupCohorts(res.Dataset.Users()); len(cohorts) > 0 {
				section(r, 2, "Signups by Month")
				rows := make([]table.Row, len(cohorts))
				for i, c := range cohorts {
					rows[i] = table.Row{c.Month, textfmt.Int(c.Count)}
				}
				renderTable(r, table.Row{"Month", "Signups"}, rows)
			}
		}
	}

	if which != "users" {
		tx := res.Transactions
		section(r, 1, "Transaction Metrics")
		r.KeyValue("Total Transactions", textfmt.Int(tx.TotalTransactions))
		r.KeyValue("Successful", textfmt.Int(tx.SuccessfulCount))
		r.KeyValue("Failed", textfmt.Int(tx.FailedCount))
		r.KeyValue("Success Rate", textfmt.Percent(tx.SuccessRate, 2))
		r.KeyValue("Average Transaction Value", textfmt.Money(tx.AvgTransactionValue))
		r.KeyValue("Total Revenue", textfmt.Money(tx.TotalRevenue))
		r.KeyValue("ARPU", textfmt.Money(tx.ARPU))
		r.KeyValue("Transactions per User", textfmt.Float(tx.TransactionsPerUser, 2))

		if len(tx.Features) > 0 {
			section(r, 2, "By Feature")
			rows := make([]table.Row, len(tx.Features))
			for i, f := range tx.Features {
				rows[i] = table.Row{
					f.Feature,
					textfmt.Int(f.TransactionCount),
					textfmt.Percent(f.SuccessRate, 1),
					textfmt.Money(f.TotalRevenue),
					textfmt.Money(f.AvgAmount),
					textfmt.Int(f.UserCount),
				}
			}
			renderTable(r, table.Row{"Feature", "Transactions", "Success", "Revenue", "Avg Amount", "Users"}, rows)
		}
	}
	return nil
}

func renderFunnel(r *output.Renderer, res *pipeline.Result) error {
	f := res.Funnel
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Funnel     funnel.Funnel     `json:"funnel"`
			Stages     []funnel.Stage    `json:"stages"`
			Redundant  bool              `json:"redundant"`
			Engagement funnel.Engagement `json:"engagement"`
		}{f, f.Stages(), f.Redundant(), res.Engagement})
	}

	section(r, 1, "Conversion Funnel")
	rows := make([]table.Row, 0, 4)
	for _, s := range f.Stages() {
		rows = append(rows, table.Row{s.Stage, textfmt.Int(s.Count)})
	}
	renderTable(r, table.Row{"Stage", "Users"}, rows)

	r.KeyValue("App to Feature", textfmt.Percent(f.AppToFeatureRate, 2))
	r.KeyValue("Feature to Transaction", textfmt.Percent(f.FeatureToTransactionRate, 2))
	r.KeyValue("Transaction Success", textfmt.Percent(f.TransactionSuccessRate, 2))
	r.KeyValue("Overall Conversion", textfmt.Percent(f.OverallConversionRate, 2))
	if f.Redundant() {
		r.Muted(fmt.Sprintf("Note: %q and %q count the same users.", funnel.StageFeatureUsed, funnel.StageTransactionStarted))
	}

	if len(res.Engagement.Features) == 0 {
		return nil
	}
	section(r, 2, "Feature Engagement")
	rows = nil
	for _, u := range res.Engagement.Features {
		rows = append(rows, table.Row{
			u.Feature,
			peakHour(u.Hourly),
			peakDay(u.Daily),
			textfmt.Int(u.TotalUsers),
			textfmt.Int(u.RetainedUsers),
			textfmt.Percent(u.RetentionRate, 1),
		})
	}
	renderTable(r, table.Row{"Feature", "Peak Hour", "Peak Day", "Users", "Retained", "Retention"}, rows)
	return nil
}

// peakHour returns the busiest hour as HH:00, first on ties.
func peakHour(hourly [24]int) string {
	best := 0
	for h, n := range hourly {
		if n > hourly[best] {
			best = h
		}
	}
	if hourly[best] == 0 {
		return "-"
	}
	return fmt.Sprintf("%02d:00", best)
}

// peakDay returns the busiest weekday, first on ties.
func peakDay(daily [7]int) string {
	best := 0
	for d, n := range daily {
		if n > daily[best] {
			best = d
		}
	}
	if daily[best] == 0 {
		return "-"
	}
	return funnel.Weekdays[best].String()
}

func renderSegments(r *output.Renderer, res *pipeline.Result, showUsers bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := struct {
			Activity segment.ActivitySegments `json:"activity_segments"`
			Value    segment.ValueSegments    `json:"value_segments"`
			Users    []segment.UserSegment    `json:"users,omitempty"`
		}{Activity: res.ActivitySegments, Value: res.ValueSegments}
		if showUsers {
			out.Users = res.UserSegments
		}
		return r.JSON(out)
	}

	section(r, 1, "Activity Segments")
	renderTable(r, table.Row{"Segment", "Users", "Share"}, countRows(res.ActivitySegments.Segments))

	section(r, 1, "Value Segments")
	renderTable(r, table.Row{"Segment", "Users", "Share"}, countRows(res.ValueSegments.Segments))
	cuts := res.ValueSegments.Thresholds
	r.KeyValue("Value thresholds (low / medium / high)",
		strings.Join([]string{textfmt.Money(cuts.Low), textfmt.Money(cuts.Medium), textfmt.Money(cuts.High)}, " / "))

	if showUsers {
		section(r, 2, "Users")
		rows := make([]table.Row, len(res.UserSegments))
		for i, u := range res.UserSegments {
			rows[i] = table.Row{u.UserID, orDash(string(u.ActivityBand)), orDash(string(u.ValueTier)), textfmt.Money(u.Revenue)}
		}
		renderTable(r, table.Row{"User", "Activity", "Value", "Revenue"}, rows)
	}
	return nil
}

func countRows(counts []segment.Count) []table.Row {
	rows := make([]table.Row, len(counts))
	for i, c := range counts {
		rows[i] = table.Row{c.Segment, textfmt.Int(c.Count), textfmt.Percent(c.Percent, 1)}
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderInsights(r *output.Renderer, res *pipeline.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Insights        []insights.Insight  `json:"insights"`
			Recommendations []insights.Category `json:"recommendations"`
			Alerts          []insights.Alert    `json:"alerts"`
		}{res.Insights, res.Recommendations, res.Alerts})
	}

	section(r, 1, "Insights")
	for i, in := range res.Insights {
		r.Printf("%d. [%s] %s: %s\n", i+1, in.Impact, in.Type, in.Insight)
		r.Printf("   Action: %s\n", in.Action)
	}

	section(r, 1, "Recommendations")
	for _, c := range res.Recommendations {
		section(r, 2, c.Category)
		for _, rec := range c.Recommendations {
			r.Printf("- %s\n", rec)
		}
	}

	if len(res.Alerts) > 0 {
		section(r, 1, "Alerts")
		for _, a := range res.Alerts {
			r.StatusLine(a.Message, "warn", "")
		}
	}
	return nil
}

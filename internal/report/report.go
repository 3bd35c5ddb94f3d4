package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/payinsight/internal/funnel"
	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/metrics"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/segment"
	"github.com/leapstack-labs/payinsight/internal/textfmt"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Options controls rendering.
type Options struct {
	Format Format

	// Styled enables lipgloss styling in text output. Callers set it only
	// when writing to a terminal.
	Styled bool

	// GeneratedAt stamps the report. Zero uses the run's as-of instant.
	GeneratedAt time.Time
}

// recommendationsPerCategory caps each category in the executive summary.
const recommendationsPerCategory = 3

// NextSteps closes every executive summary.
var NextSteps = []string{
	"Review and prioritize recommendations",
	"Assign owners for immediate actions",
	"Set up monitoring for key metrics",
	"Schedule follow-up analysis in 30 days",
}

// Summary is the JSON shape of the executive summary.
type Summary struct {
	GeneratedAt     time.Time           `json:"generated_at"`
	KeyMetrics      KeyMetrics          `json:"key_metrics"`
	TopInsights     []insights.Insight  `json:"top_insights"`
	Recommendations []insights.Category `json:"recommendations"`
	NextSteps       []string            `json:"next_steps"`
	Alerts          []insights.Alert    `json:"alerts,omitempty"`
}

// KeyMetrics are the headline numbers.
type KeyMetrics struct {
	TotalUsers          int     `json:"total_users"`
	MonthlyActiveUsers  int     `json:"monthly_active_users"`
	SuccessRate         float64 `json:"success_rate"`
	AvgTransactionValue float64 `json:"avg_transaction_value"`
	TotalRevenue        float64 `json:"total_revenue"`
	ChurnRate           float64 `json:"churn_rate"`
}

// Detail is the JSON shape of the detailed report.
type Detail struct {
	GeneratedAt      time.Time                  `json:"generated_at"`
	Users            metrics.UserMetrics        `json:"user_metrics"`
	Transactions     metrics.TransactionMetrics `json:"transaction_metrics"`
	Funnel           funnel.Funnel              `json:"funnel"`
	FunnelRedundant  bool                       `json:"funnel_redundant"`
	Retention        map[string]float64         `json:"feature_retention"`
	ActivitySegments segment.ActivitySegments   `json:"activity_segments"`
	ValueSegments    segment.ValueSegments      `json:"value_segments"`
	ValuePercentiles core.ValueTierConfig       `json:"value_percentiles"`
}

// BuildSummary extracts the executive summary from a pipeline result.
func BuildSummary(res *pipeline.Result, generatedAt time.Time) Summary {
	recs := make([]insights.Category, 0, len(res.Recommendations))
	for _, c := range res.Recommendations {
		recs = append(recs, insights.Category{
			Category:        c.Category,
			Recommendations: head(c.Recommendations, recommendationsPerCategory),
		})
	}
	return Summary{
		GeneratedAt: generatedAt,
		KeyMetrics: KeyMetrics{
			TotalUsers:          res.Users.TotalUsers,
			MonthlyActiveUsers:  res.Users.MAU,
			SuccessRate:         res.Transactions.SuccessRate,
			AvgTransactionValue: res.Transactions.AvgTransactionValue,
			TotalRevenue:        res.Transactions.TotalRevenue,
			ChurnRate:           res.Users.ChurnRate,
		},
		TopInsights:     TopInsights(res.Insights),
		Recommendations: recs,
		NextSteps:       NextSteps,
		Alerts:          res.Alerts,
	}
}

// TopInsights picks the first two behavior insights and the first two revenue
// insights, in that order.
func TopInsights(all []insights.Insight) []insights.Insight {
	var behavior, revenue []insights.Insight
	for _, in := range all {
		switch in.Type {
		case insights.TypePeakUsage, insights.TypeWeeklyPattern:
			behavior = append(behavior, in)
		case insights.TypeHighValueUsers, insights.TypeFeatureRevenue:
			revenue = append(revenue, in)
		}
	}
	return append(head(behavior, 2), head(revenue, 2)...)
}

// ExecutiveSummary writes the executive summary.
func ExecutiveSummary(w io.Writer, res *pipeline.Result, opts Options) error {
	s := BuildSummary(res, opts.generatedAt(res))
	if opts.Format == FormatJSON {
		return renderJSON(w, s)
	}
	return render(w, summaryDocument(s), opts)
}

func summaryDocument(s Summary) document {
	km := section{title: "Key Metrics"}
	km.kv("Total Users", textfmt.Int(s.KeyMetrics.TotalUsers))
	km.kv("Monthly Active Users", textfmt.Int(s.KeyMetrics.MonthlyActiveUsers))
	km.kv("Transaction Success Rate", textfmt.Percent(s.KeyMetrics.SuccessRate, 1))
	km.kv("Average Transaction Value", textfmt.Money(s.KeyMetrics.AvgTransactionValue))
	km.kv("Total Revenue", textfmt.Money(s.KeyMetrics.TotalRevenue))
	km.kv("Churn Rate", textfmt.Percent(s.KeyMetrics.ChurnRate, 1))

	top := section{title: "Top Insights"}
	items := make([]string, 0, len(s.TopInsights))
	for _, in := range s.TopInsights {
		items = append(items, in.Insight)
	}
	top.blocks = append(top.blocks, listBlock{numbered: true, items: items})

	recs := section{title: "Strategic Recommendations"}
	for _, c := range s.Recommendations {
		recs.blocks = append(recs.blocks, listBlock{heading: c.Category, numbered: true, items: c.Recommendations})
	}

	next := section{title: "Next Steps", blocks: []block{listBlock{numbered: true, items: s.NextSteps}}}

	d := document{
		title:    "PayInsight Executive Summary",
		subtitle: "Generated on: " + s.GeneratedAt.Format("2006-01-02 15:04:05"),
		sections: []section{km, top, recs, next},
	}
	if len(s.Alerts) > 0 {
		msgs := make([]string, 0, len(s.Alerts))
		for _, a := range s.Alerts {
			msgs = append(msgs, a.Message)
		}
		d.sections = append(d.sections, section{title: "Alerts", blocks: []block{listBlock{items: msgs}}})
	}
	return d
}

// BuildDetail extracts the detailed report from a pipeline result.
func BuildDetail(res *pipeline.Result, generatedAt time.Time) Detail {
	return Detail{
		GeneratedAt:      generatedAt,
		Users:            res.Users,
		Transactions:     res.Transactions,
		Funnel:           res.Funnel,
		FunnelRedundant:  res.Funnel.Redundant(),
		Retention:        res.Engagement.Retention(),
		ActivitySegments: res.ActivitySegments,
		ValueSegments:    res.ValueSegments,
		ValuePercentiles: res.Analysis.ValueTiers,
	}
}

// Detailed writes the detailed analytics report.
func Detailed(w io.Writer, res *pipeline.Result, opts Options) error {
	d := BuildDetail(res, opts.generatedAt(res))
	if opts.Format == FormatJSON {
		return renderJSON(w, d)
	}
	return render(w, detailDocument(d), opts)
}

func detailDocument(d Detail) document {
	users := section{title: "User Overview"}
	users.kv("Total Users", textfmt.Int(d.Users.TotalUsers))
	users.kv("Monthly Active Users (3 months)", textfmt.Int(d.Users.MAU))
	users.kv("Daily Active Users (30 days)", textfmt.Int(d.Users.DAU))
	users.kv("Churn Rate", textfmt.Percent(d.Users.ChurnRate, 2))
	users.kv("User Growth Rate", textfmt.Percent(d.Users.GrowthRate, 2))
	users.kv("Avg Session Duration", textfmt.Float(d.Users.AvgSessionDuration, 1)+" min")
	users.kv("Avg Page Views", textfmt.Float(d.Users.AvgPageViews, 1))

	tx := section{title: "Transaction Metrics"}
	tx.kv("Total Transactions", textfmt.Int(d.Transactions.TotalTransactions))
	tx.kv("Successful Transactions", textfmt.Int(d.Transactions.SuccessfulCount))
	tx.kv("Success Rate", textfmt.Percent(d.Transactions.SuccessRate, 2))
	tx.kv("Average Transaction Value", textfmt.Money(d.Transactions.AvgTransactionValue))
	tx.kv("Total Revenue", textfmt.Money(d.Transactions.TotalRevenue))
	tx.kv("ARPU", textfmt.Money(d.Transactions.ARPU))

	features := section{title: "Feature Performance"}
	ft := tableBlock{header: table.Row{"Feature", "Transactions", "Revenue", "Success Rate", "Avg Amount", "Users", "30d Retention"}}
	for _, f := range d.Transactions.Features {
		ft.rows = append(ft.rows, table.Row{
			f.Feature,
			textfmt.Int(f.TransactionCount),
			textfmt.Money(f.TotalRevenue),
			textfmt.Percent(f.SuccessRate, 1),
			textfmt.Money(f.AvgAmount),
			textfmt.Int(f.UserCount),
			textfmt.Percent(d.Retention[f.Feature], 1),
		})
	}
	if len(ft.rows) == 0 {
		features.blocks = append(features.blocks, noteBlock{text: "No transactions recorded."})
	} else {
		features.blocks = append(features.blocks, ft)
	}

	fun := section{title: "Funnel Analysis"}
	conversions := []float64{100, d.Funnel.AppToFeatureRate, d.Funnel.FeatureToTransactionRate, d.Funnel.TransactionSuccessRate}
	st := tableBlock{header: table.Row{"Stage", "Users", "Conversion"}}
	for i, s := range d.Funnel.Stages() {
		conv := "-"
		if i > 0 {
			conv = textfmt.Percent(conversions[i], 1)
		}
		st.rows = append(st.rows, table.Row{s.Stage, textfmt.Int(s.Count), conv})
	}
	fun.blocks = append(fun.blocks, st)
	fun.kv("Overall Conversion", textfmt.Percent(d.Funnel.OverallConversionRate, 2))
	if d.FunnelRedundant {
		fun.blocks = append(fun.blocks, noteBlock{
			text: fmt.Sprintf("%q and %q count the same users.", funnel.StageFeatureUsed, funnel.StageTransactionStarted),
		})
	}

	segs := section{title: "User Segmentation"}
	at := tableBlock{header: table.Row{"Activity Level", "Users", "Share"}}
	for _, c := range d.ActivitySegments.Segments {
		at.rows = append(at.rows, table.Row{c.Segment, textfmt.Int(c.Count), textfmt.Percent(c.Percent, 1)})
	}
	vt := tableBlock{header: table.Row{"Value Segment", "Users", "Share"}}
	for _, c := range d.ValueSegments.Segments {
		vt.rows = append(vt.rows, table.Row{c.Segment, textfmt.Int(c.Count), textfmt.Percent(c.Percent, 1)})
	}
	segs.blocks = append(segs.blocks, at, vt)
	p := d.ValuePercentiles
	segs.kv(fmt.Sprintf("Value thresholds (p%s / p%s / p%s)",
		textfmt.Float(p.Low*100, 0), textfmt.Float(p.Medium*100, 0), textfmt.Float(p.High*100, 0)),
		fmt.Sprintf("%s / %s / %s",
		textfmt.Money(d.ValueSegments.Thresholds.Low),
		textfmt.Money(d.ValueSegments.Thresholds.Medium),
		textfmt.Money(d.ValueSegments.Thresholds.High)))

	return document{
		title:    "PayInsight Detailed Analytics Report",
		subtitle: "Generated on: " + d.GeneratedAt.Format("2006-01-02 15:04:05"),
		sections: []section{users, tx, features, fun, segs},
	}
}

func render(w io.Writer, d document, opts Options) error {
	if opts.Format == FormatMarkdown {
		return renderMarkdown(w, d)
	}
	return renderText(w, d, opts.Styled)
}

func (o Options) generatedAt(res *pipeline.Result) time.Time {
	if !o.GeneratedAt.IsZero() {
		return o.GeneratedAt
	}
	return res.Analysis.AsOf
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	return append([]T(nil), s...)
}

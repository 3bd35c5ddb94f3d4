package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()
	res, err := pipeline.Analyze(context.Background(), testutil.SampleDataset(), pipeline.Options{Analysis: testutil.SampleConfig()})
	require.NoError(t, err)
	return res
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"", FormatText, false},
		{"MD", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{"html", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutiveSummary_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExecutiveSummary(&buf, sampleResult(t), Options{Format: FormatText}))
	out := buf.String()

	for _, want := range []string{
		"PayInsight Executive Summary",
		"Generated on: 2024-06-30 12:00:00",
		"KEY METRICS",
		"Total Users: 5",
		"Transaction Success Rate: 70.0%",
		"Average Transaction Value: $131.43",
		"Total Revenue: $920.00",
		"Churn Rate: 40.0%",
		"TOP INSIGHTS",
		"1. Peak transaction activity occurs at 14:00 with 5 transactions",
		"4. Transfer generates the highest revenue: $550.00",
		"STRATEGIC RECOMMENDATIONS",
		insights.CategoryImmediate + ":",
		"NEXT STEPS",
		"4. Schedule follow-up analysis in 30 days",
		"ALERTS",
		"Churn rate 40.0% exceeds 10.0%",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[")
}

func TestExecutiveSummary_CapsRecommendations(t *testing.T) {
	s := BuildSummary(sampleResult(t), testutil.SampleAsOf)
	require.Len(t, s.Recommendations, 3)
	for _, c := range s.Recommendations {
		assert.LessOrEqual(t, len(c.Recommendations), recommendationsPerCategory, c.Category)
	}
	assert.Len(t, s.TopInsights, 4)
	assert.Equal(t, NextSteps, s.NextSteps)
}

func TestExecutiveSummary_NoAlertsSection(t *testing.T) {
	res := sampleResult(t)
	res.Alerts = nil

	var buf bytes.Buffer
	require.NoError(t, ExecutiveSummary(&buf, res, Options{Format: FormatText}))
	assert.NotContains(t, buf.String(), "ALERTS")
}

func TestExecutiveSummary_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExecutiveSummary(&buf, sampleResult(t), Options{Format: FormatMarkdown}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# PayInsight Executive Summary\n"))
	assert.Contains(t, out, "## Key Metrics")
	assert.Contains(t, out, "- **Total Users:** 5")
	assert.Contains(t, out, "### "+insights.CategoryLongTerm)
}

func TestExecutiveSummary_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExecutiveSummary(&buf, sampleResult(t), Options{Format: FormatJSON}))

	var got Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 5, got.KeyMetrics.TotalUsers)
	assert.InDelta(t, 920.0, got.KeyMetrics.TotalRevenue, 1e-9)
	assert.Len(t, got.Alerts, 5)
}

func TestDetailed_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Detailed(&buf, sampleResult(t), Options{Format: FormatText}))
	out := buf.String()

	for _, want := range []string{
		"PayInsight Detailed Analytics Report",
		"USER OVERVIEW",
		"Daily Active Users (30 days): 4",
		"User Growth Rate: 50.00%",
		"TRANSACTION METRICS",
		"ARPU: $184.00",
		"FEATURE PERFORMANCE",
		"Bill Pay",
		"$550.00",
		"FUNNEL ANALYSIS",
		"Transaction Completed",
		"Overall Conversion: 100.00%",
		`"Feature Used" and "Transaction Started" count the same users.`,
		"USER SEGMENTATION",
		"Low Activity",
		"Minimal Value",
		"Value thresholds (p50 / p80 / p95): $195.00 / $324.00 / $463.50",
	} {
		assert.Contains(t, out, want)
	}
}

func TestDetailed_EmptyResult(t *testing.T) {
	res := &pipeline.Result{}
	res.Analysis.AsOf = testutil.SampleAsOf

	var buf bytes.Buffer
	require.NoError(t, Detailed(&buf, res, Options{Format: FormatText}))
	assert.Contains(t, buf.String(), "No transactions recorded.")
}

func TestDetailed_MarkdownTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Detailed(&buf, sampleResult(t), Options{Format: FormatMarkdown}))
	assert.Contains(t, strings.ToLower(buf.String()), "| feature | transactions |")
}

func TestTopInsights_Order(t *testing.T) {
	all := []insights.Insight{
		{Type: insights.TypeChurnRisk},
		{Type: insights.TypeFeatureRevenue, Insight: "r1"},
		{Type: insights.TypePeakUsage, Insight: "b1"},
		{Type: insights.TypeHighValueUsers, Insight: "r2"},
		{Type: insights.TypeWeeklyPattern, Insight: "b2"},
	}
	got := TopInsights(all)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"b1", "b2", "r1", "r2"}, []string{got[0].Insight, got[1].Insight, got[2].Insight, got[3].Insight})
}

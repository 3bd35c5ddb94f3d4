package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/payinsight/internal/cli/output"
	clitest "github.com/leapstack-labs/payinsight/internal/cli/testutil"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/quality"
	"github.com/leapstack-labs/payinsight/internal/report"
	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()
	res, err := pipeline.Analyze(context.Background(), testutil.SampleDataset(), pipeline.Options{
		Analysis: testutil.SampleConfig(),
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return res
}

func TestRenderViews_Markdown(t *testing.T) {
	res := sampleResult(t)

	tests := []struct {
		name   string
		render func(*output.Renderer) error
		want   []string
	}{
		{
			name:   "metrics",
			render: func(r *output.Renderer) error { return renderMetrics(r, res, "") },
			want:   []string{"# User Metrics", "# Transaction Metrics", "Total Users"},
		},
		{
			name:   "metrics users only",
			render: func(r *output.Renderer) error { return renderMetrics(r, res, "users") },
			want:   []string{"# User Metrics"},
		},
		{
			name:   "funnel",
			render: func(r *output.Renderer) error { return renderFunnel(r, res) },
			want:   []string{"# Conversion Funnel"},
		},
		{
			name:   "segments",
			render: func(r *output.Renderer) error { return renderSegments(r, res, true) },
			want:   []string{"# Activity Segments", "# Value Segments"},
		},
		{
			name:   "insights",
			render: func(r *output.Renderer) error { return renderInsights(r, res) },
			want:   []string{"# Insights", "# Recommendations"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := clitest.NewTestRendererMarkdown()
			require.NoError(t, tt.render(tr.Renderer))

			out := tr.Output()
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
			clitest.AssertValidMarkdown(t, out)
			clitest.AssertOutputMode(t, tr, output.ModeMarkdown)
		})
	}

	t.Run("users only omits transactions", func(t *testing.T) {
		tr := clitest.NewTestRendererMarkdown()
		require.NoError(t, renderMetrics(tr.Renderer, res, "users"))
		assert.NotContains(t, tr.Output(), "Transaction Metrics")
	})
}

func TestRenderMetrics_JSON(t *testing.T) {
	res := sampleResult(t)
	tr := clitest.NewTestRendererJSON()

	require.NoError(t, renderMetrics(tr.Renderer, res, "transactions"))

	var got struct {
		TotalTransactions int `json:"total_transactions"`
	}
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.Equal(t, 10, got.TotalTransactions)
	clitest.AssertOutputMode(t, tr, output.ModeJSON)
}

func TestRenderQuality(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		tr := clitest.NewTestRendererMarkdown()
		require.NoError(t, renderQuality(tr.Renderer, quality.Report{IsValid: true, Completeness: 1, Accuracy: 1}))
		assert.Contains(t, tr.Output(), "100.00%")
		assert.Contains(t, tr.Output(), "No issues found")
	})

	t.Run("issues table", func(t *testing.T) {
		tr := clitest.NewTestRendererMarkdown()
		rep := quality.Report{
			Completeness: 0.95,
			Accuracy:     0.9,
			Issues:       []quality.Issue{{Table: "transactions", Check: "negative_amount", Message: "amount below zero", Count: 2}},
		}
		require.NoError(t, renderQuality(tr.Renderer, rep))
		assert.Contains(t, tr.Output(), "negative_amount")
		assert.Contains(t, tr.Output(), "| transactions")
	})
}

func TestRenderBench_Text(t *testing.T) {
	tr := clitest.NewTestRendererText()
	renderBench(tr.Renderer, &pipeline.BenchResult{
		Runs:   3,
		Phases: []pipeline.PhaseStats{{Phase: "total", Min: time.Millisecond, Mean: 2 * time.Millisecond, Max: 3 * time.Millisecond}},
	}, true)

	out := tr.Output()
	assert.Contains(t, out, "parallel")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "2ms")
}

func TestRenderDoctor(t *testing.T) {
	doc := &DoctorOutput{
		Summary: ProjectSummary{Environment: "testing", Users: 5},
		HealthChecks: []HealthCheck{
			{RuleID: "CF01", Name: "config-file", Group: groupConfiguration, Status: statusPass},
			{RuleID: "DA03", Name: "data-quality", Group: groupData, Status: statusWarn, IssueCount: 1, Details: []string{"2 rows with negative amounts"}},
		},
		Score:           95,
		Recommendations: []string{getRecommendation("DA03")},
		IssueCount:      1,
	}

	t.Run("text", func(t *testing.T) {
		tr := clitest.NewTestRendererText()
		require.NoError(t, renderDoctorText(tr.Renderer, doc))
		assert.Contains(t, tr.Output(), "95/100")
		assert.Contains(t, tr.Output(), "negative amounts")
	})

	t.Run("markdown", func(t *testing.T) {
		tr := clitest.NewTestRendererMarkdown()
		require.NoError(t, renderDoctorMarkdown(tr.Renderer, doc))
		assert.Contains(t, tr.Output(), "DA03")
		clitest.AssertNoANSI(t, tr.Output())
	})
}

func TestPeakHourAndDay(t *testing.T) {
	var hourly [24]int
	assert.Equal(t, "-", peakHour(hourly))
	hourly[14], hourly[10] = 3, 3
	assert.Equal(t, "10:00", peakHour(hourly))

	var daily [7]int
	assert.Equal(t, "-", peakDay(daily))
	daily[2] = 4
	assert.Equal(t, "Wednesday", peakDay(daily))
}

func TestWriteReportFile(t *testing.T) {
	res := sampleResult(t)
	dir := t.TempDir()
	opts := report.Options{Format: report.FormatMarkdown}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "nested directory is created", path: filepath.Join(dir, "a", "b", "summary.md")},
		{name: "file in existing directory", path: filepath.Join(dir, "summary.md")},
		{name: "target is a directory", path: dir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writeReportFile(tt.path, res, false, opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(tt.path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "# PayInsight Executive Summary")
		})
	}
}

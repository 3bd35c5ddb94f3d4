package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/payinsight/internal/cli/testutil"
	sharedcfg "github.com/leapstack-labs/payinsight/internal/config"
	"github.com/leapstack-labs/payinsight/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func projectCmd(dir string, args ...string) []string {
	return append(args, testutil.ProjectArgs(dir)...)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "PayInsight v"+Version)
}

func TestHelpCommand(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"report", "metrics", "funnel", "segments", "insights", "export", "validate", "doctor", "history", "bench", "serve", "watch", "init"} {
		assert.Contains(t, out, name)
	}
}

func TestMetricsCommand_JSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, _, err := execute(t, projectCmd(dir, "metrics", "users", "-o", "json")...)
	require.NoError(t, err)

	var users struct {
		TotalUsers int `json:"total_users"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	assert.Equal(t, 5, users.TotalUsers)
}

func TestReportCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	t.Run("markdown to stdout", func(t *testing.T) {
		out, _, err := execute(t, projectCmd(dir, "report", "-o", "markdown")...)
		require.NoError(t, err)
		assert.Contains(t, out, "# PayInsight Executive Summary")
		testutil.AssertNoANSI(t, out)
		testutil.AssertValidMarkdown(t, out)
	})

	t.Run("detailed to file", func(t *testing.T) {
		path := filepath.Join(dir, "reports", "detailed.md")
		_, _, err := execute(t, projectCmd(dir, "report", "--detailed", "--no-history", "--out", path, "-o", "markdown")...)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		testutil.AssertNoANSI(t, string(data))
	})
}

func TestViewCommands(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"metrics"}, want: "User Metrics"},
		{args: []string{"metrics", "transactions"}, want: "Transaction Metrics"},
		{args: []string{"funnel"}, want: "Funnel"},
		{args: []string{"segments"}, want: "Segments"},
		{args: []string{"insights"}, want: "Insights"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			args := append(append([]string{}, tt.args...), "-o", "markdown")
			out, _, err := execute(t, projectCmd(dir, args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestExportCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	exportDir := filepath.Join(dir, "out")

	_, _, err := execute(t, projectCmd(dir, "export", "--dir", exportDir, "--format", "csv", "--metadata")...)
	require.NoError(t, err)

	for _, name := range []string{export.TableUserSummary, export.TableTransactionSummary, export.TableFeatureMetrics, export.TableFunnelData, export.TableUserSegments} {
		assert.FileExists(t, filepath.Join(exportDir, name+".csv"))
	}
	assert.FileExists(t, filepath.Join(exportDir, export.ManifestFile))
}

func TestExportCommand_UnknownWarehouse(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	_, _, err := execute(t, projectCmd(dir, "export", "--warehouse", "oracle")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestValidateCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, _, err := execute(t, projectCmd(dir, "validate", "-o", "json")...)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestDoctorCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, _, err := execute(t, projectCmd(dir, "doctor", "-o", "json")...)
	require.NoError(t, err)

	var doc struct {
		Summary struct {
			Environment string `json:"environment"`
			Users       int    `json:"users"`
		} `json:"summary"`
		HealthChecks []struct {
			RuleID string `json:"rule_id"`
		} `json:"health_checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, sharedcfg.EnvTesting, doc.Summary.Environment)
	assert.Equal(t, 5, doc.Summary.Users)
	assert.NotEmpty(t, doc.HealthChecks)
}

func TestBenchCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, _, err := execute(t, projectCmd(dir, "bench", "-n", "2", "-o", "json")...)
	require.NoError(t, err)

	var res struct {
		Runs int `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Runs)
}

func TestHistoryCommand_Empty(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	out, _, err := execute(t, projectCmd(dir, "history", "-o", "json")...)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestInvalidConfigAborts(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Setenv("PAYINSIGHT_ANALYSIS__CHURN_THRESHOLD_DAYS", "-1")

	_, _, err := execute(t, projectCmd(dir, "metrics")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "churn_threshold_days")

	// doctor still runs so it can report the problem
	_, _, err = execute(t, projectCmd(dir, "doctor", "-o", "json")...)
	assert.NoError(t, err)
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "payinsight")
}

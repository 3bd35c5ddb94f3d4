package state

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/payinsight/internal/config"
	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Migrate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v, err := MigrationVersion(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// Idempotent.
	require.NoError(t, s.Migrate(ctx))

	for _, table := range []string{"runs", "run_alerts"} {
		rows, err := s.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	asOf := testutil.SampleAsOf

	tests := []struct {
		name   string
		status RunStatus
		sum    *RunSummary
		alerts []insights.Alert
		errMsg string
	}{
		{
			name:   "completed",
			status: RunStatusCompleted,
			sum:    &RunSummary{TotalUsers: 5, SuccessRate: 70, TotalRevenue: 920},
			alerts: []insights.Alert{
				{Metric: "churn_rate", Value: 40, Threshold: 10, Message: "Churn rate 40.0% exceeds 10.0%"},
				{Metric: "success_rate", Value: 70, Threshold: 90, Message: "low"},
			},
		},
		{
			name:   "failed",
			status: RunStatusFailed,
			errMsg: "data file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)

			run, err := s.CreateRun(ctx, "production", asOf)
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)
			assert.Zero(t, run.Duration())

			require.NoError(t, s.CompleteRun(ctx, run.ID, tt.status, tt.sum, tt.alerts, tt.errMsg))

			got, err := s.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.True(t, got.AsOf.Equal(asOf))
			require.NotNil(t, got.CompletedAt)
			assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
			assert.Equal(t, tt.errMsg, got.Error)
			assert.Equal(t, tt.sum, got.Summary)
			assert.Equal(t, tt.alerts, got.Alerts)
		})
	}
}

func TestSQLiteStore_CompleteUnknownRun(t *testing.T) {
	s := setupTestStore(t)
	err := s.CompleteRun(context.Background(), "nope", RunStatusCompleted, nil, nil, "")
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorContains(t, err, "run not found: nope")
}

func TestSQLiteStore_ListAndLatest(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	latest, err := s.GetLatestRun(ctx, "development")
	require.NoError(t, err)
	assert.Nil(t, latest)

	var ids []string
	for _, env := range []string{"development", "production", "development"} {
		run, err := s.CreateRun(ctx, env, testutil.SampleAsOf)
		require.NoError(t, err)
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	latest, err = s.GetLatestRun(ctx, "development")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ids[2], latest.ID)
}

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(context.Background(), config.StateConfig{Driver: "sqlite", Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.(*SQLiteStore).Path())
	assert.FileExists(t, path)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StateConfig{Driver: "bolt"}, nil)
	assert.ErrorContains(t, err, `unknown state driver "bolt"`)
}

func TestRecord(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	res, id, err := Record(ctx, s, "development", testutil.SampleAsOf, logger, func(ctx context.Context) (*pipeline.Result, error) {
		return pipeline.Analyze(ctx, testutil.SampleDataset(), pipeline.Options{Analysis: testutil.SampleConfig()})
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 5, run.Summary.TotalUsers)
	assert.InDelta(t, 920.0, run.Summary.TotalRevenue, 1e-9)
	assert.Len(t, run.Alerts, len(res.Alerts))

	boom := errors.New("boom")
	_, id, err = Record(ctx, s, "development", testutil.SampleAsOf, logger, func(context.Context) (*pipeline.Result, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	run, err = s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
	assert.Nil(t, run.Summary)
}

func TestPostgresStore_Rebind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newPostgresStore(db, nil)
	assert.Equal(t, "SELECT * FROM runs WHERE id = $1 AND status = $2", s.rebind("SELECT * FROM runs WHERE id = ? AND status = ?"))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO runs (id, environment, status, as_of, started_at) VALUES ($1, $2, $3, $4, $5)`)).
		WithArgs(sqlmock.AnyArg(), "production", "running", testutil.SampleAsOf, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	run, err := s.CreateRun(context.Background(), "production", testutil.SampleAsOf)
	require.NoError(t, err)
	assert.Equal(t, "production", run.Environment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	done := testutil.SampleAsOf.Add(time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + runColumns + ` FROM runs WHERE id = $1`)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "environment", "status", "as_of", "started_at", "completed_at", "error", "summary"}).
			AddRow("r1", "production", "completed", testutil.SampleAsOf, testutil.SampleAsOf, done, nil, []byte(`{"total_users":5}`)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT metric, value, threshold, message FROM run_alerts WHERE run_id = $1 ORDER BY position`)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"metric", "value", "threshold", "message"}))

	run, err := newPostgresStore(db, nil).GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, run.Duration())
	assert.Equal(t, 5, run.Summary.TotalUsers)
	assert.Empty(t, run.Alerts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "", nil)
	assert.ErrorContains(t, err, "requires a DSN")
}

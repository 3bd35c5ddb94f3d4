package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/payinsight/internal/funnel"
	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/internal/metrics"
	"github.com/leapstack-labs/payinsight/internal/state"
	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewWithDataset(testutil.SampleDataset(), Config{Analysis: testutil.SampleConfig(), Logger: testutil.NewTestLogger(t)})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t).Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 5, body["users"])
	assert.EqualValues(t, 10, body["transactions"])
}

func TestMetricsEndpoints(t *testing.T) {
	h := newTestServer(t).Handler()

	users := decode[metrics.UserMetrics](t, get(t, h, "/api/metrics/users"))
	assert.Equal(t, 5, users.TotalUsers)
	assert.InDelta(t, 40.0, users.ChurnRate, 1e-9)

	tx := decode[metrics.TransactionMetrics](t, get(t, h, "/api/metrics/transactions"))
	assert.InDelta(t, 70.0, tx.SuccessRate, 1e-9)
	assert.InDelta(t, 920.0, tx.TotalRevenue, 1e-9)
	assert.Len(t, tx.Features, 3)
}

func TestFunnelEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t).Handler(), "/api/funnel")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Funnel    funnel.Funnel  `json:"funnel"`
		Stages    []funnel.Stage `json:"stages"`
		Redundant bool           `json:"redundant"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Funnel.AppOpens)
	assert.Len(t, body.Stages, 4)
	assert.True(t, body.Redundant)
}

func TestSegmentsEndpoints(t *testing.T) {
	h := newTestServer(t).Handler()

	body := decode[map[string]json.RawMessage](t, get(t, h, "/api/segments"))
	assert.Contains(t, body, "activity_segments")
	assert.Contains(t, body, "value_segments")
	assert.Contains(t, body, "value_cuts")

	rec := get(t, h, "/api/segments/users/u4")
	require.Equal(t, http.StatusOK, rec.Code)
	seg := decode[map[string]any](t, rec)
	assert.Equal(t, "u4", seg["user_id"])
	assert.Equal(t, "High Value", seg["value_segment"])

	rec = get(t, h, "/api/segments/users/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
}

func TestInsightEndpoints(t *testing.T) {
	h := newTestServer(t).Handler()

	all := decode[[]insights.Insight](t, get(t, h, "/api/insights"))
	assert.Len(t, all, 6)

	recs := decode[[]insights.Category](t, get(t, h, "/api/recommendations"))
	assert.Len(t, recs, 3)

	alerts := decode[[]insights.Alert](t, get(t, h, "/api/alerts"))
	assert.Len(t, alerts, 5)

	q := decode[map[string]any](t, get(t, h, "/api/quality"))
	assert.Contains(t, q, "issues")
}

func TestAsOfParameter(t *testing.T) {
	h := newTestServer(t).Handler()

	// A year later every user is churned.
	users := decode[metrics.UserMetrics](t, get(t, h, "/api/metrics/users?as_of=2025-06-30"))
	assert.InDelta(t, 100.0, users.ChurnRate, 1e-9)

	rec := get(t, h, "/api/metrics/users?as_of=someday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid as-of")
}

func TestReportEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "PayInsight Executive Summary")
	assert.NotContains(t, rec.Body.String(), "\x1b[")

	rec = get(t, h, "/report?detailed=true&format=markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# PayInsight Detailed Analytics Report"))

	rec = get(t, h, "/report?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec), "key_metrics")

	rec = get(t, h, "/report?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsEndpoints(t *testing.T) {
	ctx := context.Background()
	store, err := state.OpenSQLite(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	run, err := store.CreateRun(ctx, "development", testutil.SampleAsOf)
	require.NoError(t, err)

	srv := NewWithDataset(testutil.SampleDataset(), Config{Analysis: testutil.SampleConfig(), Store: store})
	h := srv.Handler()

	runs := decode[[]state.Run](t, get(t, h, "/api/runs?limit=5"))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	got := decode[state.Run](t, get(t, h, "/api/runs/"+run.ID))
	assert.Equal(t, state.RunStatusRunning, got.Status)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/runs/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/runs?limit=zero").Code)
}

func TestRunsEndpoints_NoStore(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, newTestServer(t).Handler(), "/api/runs").Code)
}

func TestReload(t *testing.T) {
	files := testutil.WriteSampleData(t)
	paths := loader.Paths{Users: files.Users, Transactions: files.Transactions, Activity: files.Activity}
	srv, err := New(context.Background(), Config{Paths: paths, Analysis: testutil.SampleConfig()})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return srv.notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	testutil.WriteFile(t, files.Users, testutil.SampleUsersCSV+"u7,30,M,Abuja,2024-06-01\n")
	require.NoError(t, srv.Reload(context.Background()))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: reload\n", line)

	users := decode[metrics.UserMetrics](t, get(t, srv.Handler(), "/api/metrics/users"))
	assert.Equal(t, 6, users.TotalUsers)

	// A broken file keeps the previous dataset.
	testutil.WriteFile(t, files.Users, "not,a,users,file\n")
	assert.Error(t, srv.Reload(context.Background()))
	users = decode[metrics.UserMetrics](t, get(t, srv.Handler(), "/api/metrics/users"))
	assert.Equal(t, 6, users.TotalUsers)
}

func TestServe_Shutdown(t *testing.T) {
	srv := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

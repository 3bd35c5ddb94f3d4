package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/payinsight/internal/insights"
)

// sqlStore implements Store on database/sql. Queries are written with ?
// placeholders and rebound for the dialect.
type sqlStore struct {
	db       *sql.DB
	logger   *slog.Logger
	numbered bool // $1, $2 placeholders
}

func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlStore) CreateRun(ctx context.Context, env string, asOf time.Time) (*Run, error) {
	run := &Run{
		ID:          uuid.New().String(),
		Environment: env,
		Status:      RunStatusRunning,
		AsOf:        asOf.UTC(),
		StartedAt:   time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("environment", env))

	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO runs (id, environment, status, as_of, started_at) VALUES (?, ?, ?, ?, ?)`),
		run.ID, run.Environment, string(run.Status), run.AsOf, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

func (s *sqlStore) CompleteRun(ctx context.Context, id string, status RunStatus, summary *RunSummary, alerts []insights.Alert, errMsg string) error {
	var summaryJSON, errVal sql.NullString
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to encode run summary: %w", err)
		}
		summaryJSON = sql.NullString{String: string(data), Valid: true}
	}
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE runs SET status = ?, completed_at = ?, error = ?, summary = ? WHERE id = ?`),
		string(status), time.Now().UTC(), errVal, summaryJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	for i, a := range alerts {
		if _, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO run_alerts (run_id, position, metric, value, threshold, message) VALUES (?, ?, ?, ?, ?, ?)`),
			id, i, a.Metric, a.Value, a.Threshold, a.Message,
		); err != nil {
			return fmt.Errorf("failed to store alert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, environment, status, as_of, started_at, completed_at, error, summary`

func (s *sqlStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.Alerts, err = s.alerts(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *sqlStore) GetLatestRun(ctx context.Context, env string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+runColumns+` FROM runs WHERE environment = ? ORDER BY started_at DESC LIMIT 1`), env)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *sqlStore) alerts(ctx context.Context, runID string) ([]insights.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT metric, value, threshold, message FROM run_alerts WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	defer rows.Close()

	var out []insights.Alert
	for rows.Next() {
		var a insights.Alert
		if err := rows.Scan(&a.Metric, &a.Value, &a.Threshold, &a.Message); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run         Run
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
		summary     []byte
	)
	if err := sc.Scan(&run.ID, &run.Environment, &status, &run.AsOf, &run.StartedAt, &completedAt, &errMsg, &summary); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	if len(summary) > 0 {
		run.Summary = &RunSummary{}
		if err := json.Unmarshal(summary, run.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode run summary: %w", err)
		}
	}
	return &run, nil
}

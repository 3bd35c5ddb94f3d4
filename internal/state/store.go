// Package state records analysis runs so results can be compared over time.
//
// Two backends share one SQL implementation: SQLite (pure Go, the default)
// and Postgres. Schemas are managed with goose migrations embedded per
// dialect.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/payinsight/internal/config"
	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded analysis.
type Run struct {
	ID          string           `json:"id"`
	Environment string           `json:"environment"`
	Status      RunStatus        `json:"status"`
	AsOf        time.Time        `json:"as_of"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Summary     *RunSummary      `json:"summary,omitempty"`
	Alerts      []insights.Alert `json:"alerts,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunSummary holds the headline metrics of a completed run.
type RunSummary struct {
	TotalUsers         int     `json:"total_users"`
	MonthlyActiveUsers int     `json:"monthly_active_users"`
	ChurnRate          float64 `json:"churn_rate"`
	GrowthRate         float64 `json:"growth_rate"`
	TotalTransactions  int     `json:"total_transactions"`
	SuccessRate        float64 `json:"success_rate"`
	TotalRevenue       float64 `json:"total_revenue"`
	OverallConversion  float64 `json:"overall_conversion"`
	Insights           int     `json:"insights"`
}

// Summarize extracts the headline metrics from a pipeline result.
func Summarize(res *pipeline.Result) *RunSummary {
	return &RunSummary{
		TotalUsers:         res.Users.TotalUsers,
		MonthlyActiveUsers: res.Users.MAU,
		ChurnRate:          res.Users.ChurnRate,
		GrowthRate:         res.Users.GrowthRate,
		TotalTransactions:  res.Transactions.TotalTransactions,
		SuccessRate:        res.Transactions.SuccessRate,
		TotalRevenue:       res.Transactions.TotalRevenue,
		OverallConversion:  res.Funnel.OverallConversionRate,
		Insights:           len(res.Insights),
	}
}

// Store persists runs.
type Store interface {
	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	CreateRun(ctx context.Context, env string, asOf time.Time) (*Run, error)
	// CompleteRun finalizes a run. Summary and alerts are stored only for
	// successful runs; errMsg only for failed ones.
	CompleteRun(ctx context.Context, id string, status RunStatus, summary *RunSummary, alerts []insights.Alert, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// GetLatestRun returns nil without error when the environment has no runs.
	GetLatestRun(ctx context.Context, env string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	Close() error
}

// Open opens and migrates the store selected by cfg.
func Open(ctx context.Context, cfg config.StateConfig, logger *slog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = OpenSQLite(ctx, cfg.Path, logger)
	case "postgres":
		s, err = OpenPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown state driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Record runs fn inside a tracked run and stores its outcome. The error
// returned by fn is passed through; a failure to record is logged, not
// returned, so history problems never hide analysis results.
func Record(ctx context.Context, s Store, env string, asOf time.Time, logger *slog.Logger, fn func(context.Context) (*pipeline.Result, error)) (*pipeline.Result, string, error) {
	run, err := s.CreateRun(ctx, env, asOf)
	if err != nil {
		logger.Warn("failed to record run start", slog.String("error", err.Error()))
		res, fnErr := fn(ctx)
		return res, "", fnErr
	}

	res, fnErr := fn(ctx)
	if fnErr != nil {
		if err := s.CompleteRun(ctx, run.ID, RunStatusFailed, nil, nil, fnErr.Error()); err != nil {
			logger.Warn("failed to record run failure", slog.String("run", run.ID), slog.String("error", err.Error()))
		}
		return nil, run.ID, fnErr
	}

	if err := s.CompleteRun(ctx, run.ID, RunStatusCompleted, Summarize(res), res.Alerts, ""); err != nil {
		logger.Warn("failed to record run completion", slog.String("run", run.ID), slog.String("error", err.Error()))
	}
	return res, run.ID, nil
}

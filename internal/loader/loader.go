// Package loader reads the users, transactions and activity CSV files into
// an immutable core.Dataset.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Table names used in errors and quality reports.
const (
	TableUsers        = "users"
	TableTransactions = "transactions"
	TableActivity     = "activity"
)

// Paths locates the three input files.
type Paths struct {
	Users        string `koanf:"users" json:"users" yaml:"users"`
	Transactions string `koanf:"transactions" json:"transactions" yaml:"transactions"`
	Activity     string `koanf:"activity" json:"activity" yaml:"activity"`
}

// All returns the paths keyed by table name.
func (p Paths) All() map[string]string {
	return map[string]string{
		TableUsers:        p.Users,
		TableTransactions: p.Transactions,
		TableActivity:     p.Activity,
	}
}

// Load parses all three files. Any failure aborts the load; there are no retries.
func Load(ctx context.Context, paths Paths, logger *slog.Logger) (*core.Dataset, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	users, ut, err := loadUsers(paths.Users)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded table", slog.String("table", TableUsers), slog.Int("rows", len(users)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txs, tt, err := loadTransactions(paths.Transactions)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded table", slog.String("table", TableTransactions), slog.Int("rows", len(txs)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	activity, at, err := loadActivity(paths.Activity)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded table", slog.String("table", TableActivity), slog.Int("rows", len(activity)))

	ds := core.NewDataset(users, txs, activity)
	for _, t := range []*table{ut, tt, at} {
		ds.Cells[t.name] = t.cells
		ds.EmptyCells[t.name] = t.empty
	}
	return ds, nil
}

func loadUsers(path string) ([]core.User, *table, error) {
	t, err := readTable(TableUsers, path)
	if err != nil {
		return nil, nil, err
	}
	idCol, err := t.require("user_id")
	if err != nil {
		return nil, nil, err
	}
	signupCol, err := t.require("signup_date", "registration_date")
	if err != nil {
		return nil, nil, err
	}
	ageCol := t.column("age")
	genderCol := t.column("gender")
	locationCol := t.column("location")

	users := make([]core.User, 0, len(t.rows))
	for i, row := range t.rows {
		n := i + 1
		id := t.cell(row, idCol)
		if id == "" {
			return nil, nil, t.invalid(n, "user_id", fmt.Errorf("empty user_id"))
		}
		signup, err := parseTime(t.cell(row, signupCol))
		if err != nil {
			return nil, nil, t.invalid(n, "signup_date", err)
		}
		age, err := parseNumber(t.cell(row, ageCol))
		if err != nil {
			return nil, nil, t.invalid(n, "age", err)
		}
		users = append(users, core.User{
			ID:         id,
			Age:        int(age),
			Gender:     t.cell(row, genderCol),
			Location:   t.cell(row, locationCol),
			SignupDate: signup,
		})
	}
	return users, t, nil
}

func loadTransactions(path string) ([]core.Transaction, *table, error) {
	t, err := readTable(TableTransactions, path)
	if err != nil {
		return nil, nil, err
	}
	cols := map[string]int{}
	for _, name := range []string{"transaction_id", "user_id", "amount", "status", "feature", "timestamp"} {
		idx, err := t.require(name)
		if err != nil {
			return nil, nil, err
		}
		cols[name] = idx
	}

	txs := make([]core.Transaction, 0, len(t.rows))
	for i, row := range t.rows {
		n := i + 1
		amount, err := strconv.ParseFloat(t.cell(row, cols["amount"]), 64)
		if err != nil {
			return nil, nil, t.invalid(n, "amount", err)
		}
		if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
			return nil, nil, t.invalid(n, "amount", fmt.Errorf("amount must be finite and non-negative, got %v", amount))
		}
		status, err := parseStatus(t.cell(row, cols["status"]))
		if err != nil {
			return nil, nil, t.invalid(n, "status", err)
		}
		ts, err := parseTime(t.cell(row, cols["timestamp"]))
		if err != nil {
			return nil, nil, t.invalid(n, "timestamp", err)
		}
		txs = append(txs, core.NewTransaction(
			t.cell(row, cols["transaction_id"]),
			t.cell(row, cols["user_id"]),
			amount,
			status,
			t.cell(row, cols["feature"]),
			ts,
		))
	}
	return txs, t, nil
}

func loadActivity(path string) ([]core.ActivityRecord, *table, error) {
	t, err := readTable(TableActivity, path)
	if err != nil {
		return nil, nil, err
	}
	idCol, err := t.require("user_id")
	if err != nil {
		return nil, nil, err
	}
	lastCol, err := t.require("last_transaction_date", "last_activity_date")
	if err != nil {
		return nil, nil, err
	}
	sessionCol := t.column("session_duration")
	pagesCol := t.column("page_views")
	loginCol := t.column("login_count")
	opensCol := t.column("app_open_count")
	if opensCol < 0 {
		opensCol = loginCol
	}
	daysCol := t.column("days_active_per_month")

	records := make([]core.ActivityRecord, 0, len(t.rows))
	for i, row := range t.rows {
		n := i + 1
		last, err := parseTime(t.cell(row, lastCol))
		if err != nil {
			return nil, nil, t.invalid(n, "last_transaction_date", err)
		}
		nums := make(map[string]float64, 5)
		for name, idx := range map[string]int{
			"session_duration":      sessionCol,
			"page_views":            pagesCol,
			"login_count":           loginCol,
			"app_open_count":        opensCol,
			"days_active_per_month": daysCol,
		} {
			v, err := parseNumber(t.cell(row, idx))
			if err != nil {
				return nil, nil, t.invalid(n, name, err)
			}
			nums[name] = v
		}
		records = append(records, core.ActivityRecord{
			UserID:              t.cell(row, idCol),
			SessionDuration:     nums["session_duration"],
			PageViews:           int(nums["page_views"]),
			LoginCount:          int(nums["login_count"]),
			AppOpenCount:        int(nums["app_open_count"]),
			DaysActivePerMonth:  int(nums["days_active_per_month"]),
			LastTransactionDate: last,
		})
	}
	return records, t, nil
}

func parseStatus(s string) (core.TransactionStatus, error) {
	switch {
	case strings.EqualFold(s, string(core.StatusSuccess)):
		return core.StatusSuccess, nil
	case strings.EqualFold(s, string(core.StatusFailed)):
		return core.StatusFailed, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

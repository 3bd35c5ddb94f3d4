package export

import (
	"strconv"
	"time"

	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Table names, also used as file and sheet names.
const (
	TableUserSummary        = "user_summary"
	TableTransactionSummary = "transaction_summary"
	TableFeatureMetrics     = "feature_metrics"
	TableFunnelData         = "funnel_data"
	TableUserSegments       = "user_segments"
)

// Table is one exported dataset. Cells hold string, int, float64, bool or
// time.Time values; nil is an empty cell.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Tables builds every export table from a pipeline result, in a fixed order.
func Tables(res *pipeline.Result) []Table {
	var ds core.Tables = emptyTables{}
	if res.Dataset != nil {
		ds = res.Dataset
	}
	return []Table{
		userSummary(ds),
		transactionSummary(ds),
		featureMetrics(res),
		funnelData(res),
		userSegments(res),
	}
}

// userSummary is users left-joined with their activity snapshot.
func userSummary(ds core.Tables) Table {
	t := Table{
		Name: TableUserSummary,
		Header: []string{
			"user_id", "age", "gender", "location", "signup_date",
			"session_duration", "page_views", "login_count", "app_open_count",
			"days_active_per_month", "last_transaction_date",
		},
	}
	activity := make(map[string]core.ActivityRecord, len(ds.Activity()))
	for _, a := range ds.Activity() {
		if _, ok := activity[a.UserID]; !ok {
			activity[a.UserID] = a
		}
	}
	for _, u := range ds.Users() {
		row := []any{u.ID, u.Age, u.Gender, u.Location, u.SignupDate}
		if a, ok := activity[u.ID]; ok {
			row = append(row, a.SessionDuration, a.PageViews, a.LoginCount, a.AppOpenCount, a.DaysActivePerMonth, a.LastTransactionDate)
		} else {
			row = append(row, nil, nil, nil, nil, nil, nil)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func transactionSummary(ds core.Tables) Table {
	t := Table{
		Name:   TableTransactionSummary,
		Header: []string{"transaction_id", "user_id", "amount", "status", "feature", "timestamp", "hour", "day_of_week"},
	}
	for _, tx := range ds.Transactions() {
		t.Rows = append(t.Rows, []any{tx.ID, tx.UserID, tx.Amount, string(tx.Status), tx.Feature, tx.Timestamp, tx.Hour(), tx.Weekday().String()})
	}
	return t
}

func featureMetrics(res *pipeline.Result) Table {
	t := Table{
		Name:   TableFeatureMetrics,
		Header: []string{"feature", "transaction_count", "success_count", "total_revenue", "success_rate", "avg_amount", "user_count", "retention_rate"},
	}
	retention := res.Engagement.Retention()
	for _, f := range res.Transactions.Features {
		t.Rows = append(t.Rows, []any{f.Feature, f.TransactionCount, f.SuccessCount, f.TotalRevenue, f.SuccessRate, f.AvgAmount, f.UserCount, retention[f.Feature]})
	}
	return t
}

func funnelData(res *pipeline.Result) Table {
	t := Table{Name: TableFunnelData, Header: []string{"stage", "count"}}
	for _, s := range res.Funnel.Stages() {
		t.Rows = append(t.Rows, []any{s.Stage, s.Count})
	}
	return t
}

func userSegments(res *pipeline.Result) Table {
	t := Table{Name: TableUserSegments, Header: []string{"user_id", "activity_level", "value_segment", "revenue"}}
	for _, s := range res.UserSegments {
		var tier any
		if s.ValueTier != "" {
			tier = string(s.ValueTier)
		}
		t.Rows = append(t.Rows, []any{s.UserID, string(s.ActivityBand), tier, s.Revenue})
	}
	return t
}

// formatCell renders a cell for CSV output.
func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.DateTime)
	}
	return ""
}

type emptyTables struct{}

func (emptyTables) Users() []core.User                 { return nil }
func (emptyTables) Transactions() []core.Transaction   { return nil }
func (emptyTables) Activity() []core.ActivityRecord    { return nil }

package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/payinsight/pkg/core"
)

// SampleAsOf is the reference instant the sample data is built around (a Sunday).
var SampleAsOf = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// SampleUsersCSV has two April and three May signups.
const SampleUsersCSV = `user_id,age,gender,location,signup_date
u1,29,F,Lagos,2024-04-05
u2,34,M,Nairobi,2024-04-20
u3,41,F,Accra,2024-05-03
u4,23,M,Lagos,2024-05-10
u5,52,F,Kigali,2024-05-25
`

// SampleTransactionsCSV has ten transactions; t4, t6 and t10 failed and u6 is not a known user.
const SampleTransactionsCSV = `transaction_id,user_id,amount,status,feature,timestamp
t1,u1,100,Success,Payment,2024-06-25 10:00:00
t2,u1,50,Success,Transfer,2024-06-24 14:00:00
t3,u2,200,Success,Payment,2024-06-10 14:30:00
t4,u2,30,Failed,Bill Pay,2024-05-15 09:00:00
t5,u3,20,Success,Bill Pay,2024-04-20 14:00:00
t6,u3,80,Failed,Payment,2024-03-01 18:00:00
t7,u4,500,Success,Transfer,2024-06-28 20:00:00
t8,u4,10,Success,Payment,2024-06-29 14:00:00
t9,u1,40,Success,Payment,2024-06-01 10:00:00
t10,u6,60,Failed,Transfer,2024-06-15 14:00:00
`

// SampleActivityCSV has one record per known user; u3 and u5 are churned and u2 is at risk.
const SampleActivityCSV = `user_id,session_duration,page_views,login_count,app_open_count,days_active_per_month,last_transaction_date
u1,12.5,20,15,15,22,2024-06-25
u2,8.0,10,8,8,15,2024-06-10
u3,3.0,4,2,0,5,2024-04-20
u4,20.0,40,30,30,28,2024-06-29
u5,1.5,2,3,3,0,2024-05-01
`

// SampleFiles locates the sample CSVs on disk.
type SampleFiles struct {
	Dir          string
	Users        string
	Transactions string
	Activity     string
}

// WriteSampleData writes the sample CSVs into a temp directory.
func WriteSampleData(t testing.TB) SampleFiles {
	t.Helper()
	dir := t.TempDir()
	files := SampleFiles{
		Dir:          dir,
		Users:        filepath.Join(dir, "users.csv"),
		Transactions: filepath.Join(dir, "transactions.csv"),
		Activity:     filepath.Join(dir, "app_activity.csv"),
	}
	WriteFile(t, files.Users, SampleUsersCSV)
	WriteFile(t, files.Transactions, SampleTransactionsCSV)
	WriteFile(t, files.Activity, SampleActivityCSV)
	return files
}

// WriteFile writes content to path, failing the test on error.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func day(s string) time.Time {
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		ts, err = time.Parse("2006-01-02", s)
		if err != nil {
			panic(err)
		}
	}
	return ts
}

// SampleDataset returns the sample data already parsed, matching the CSV constants.
func SampleDataset() *core.Dataset {
	users := []core.User{
		{ID: "u1", Age: 29, Gender: "F", Location: "Lagos", SignupDate: day("2024-04-05")},
		{ID: "u2", Age: 34, Gender: "M", Location: "Nairobi", SignupDate: day("2024-04-20")},
		{ID: "u3", Age: 41, Gender: "F", Location: "Accra", SignupDate: day("2024-05-03")},
		{ID: "u4", Age: 23, Gender: "M", Location: "Lagos", SignupDate: day("2024-05-10")},
		{ID: "u5", Age: 52, Gender: "F", Location: "Kigali", SignupDate: day("2024-05-25")},
	}
	txs := []core.Transaction{
		core.NewTransaction("t1", "u1", 100, core.StatusSuccess, "Payment", day("2024-06-25 10:00:00")),
		core.NewTransaction("t2", "u1", 50, core.StatusSuccess, "Transfer", day("2024-06-24 14:00:00")),
		core.NewTransaction("t3", "u2", 200, core.StatusSuccess, "Payment", day("2024-06-10 14:30:00")),
		core.NewTransaction("t4", "u2", 30, core.StatusFailed, "Bill Pay", day("2024-05-15 09:00:00")),
		core.NewTransaction("t5", "u3", 20, core.StatusSuccess, "Bill Pay", day("2024-04-20 14:00:00")),
		core.NewTransaction("t6", "u3", 80, core.StatusFailed, "Payment", day("2024-03-01 18:00:00")),
		core.NewTransaction("t7", "u4", 500, core.StatusSuccess, "Transfer", day("2024-06-28 20:00:00")),
		core.NewTransaction("t8", "u4", 10, core.StatusSuccess, "Payment", day("2024-06-29 14:00:00")),
		core.NewTransaction("t9", "u1", 40, core.StatusSuccess, "Payment", day("2024-06-01 10:00:00")),
		core.NewTransaction("t10", "u6", 60, core.StatusFailed, "Transfer", day("2024-06-15 14:00:00")),
	}
	activity := []core.ActivityRecord{
		{UserID: "u1", SessionDuration: 12.5, PageViews: 20, LoginCount: 15, AppOpenCount: 15, DaysActivePerMonth: 22, LastTransactionDate: day("2024-06-25")},
		{UserID: "u2", SessionDuration: 8, PageViews: 10, LoginCount: 8, AppOpenCount: 8, DaysActivePerMonth: 15, LastTransactionDate: day("2024-06-10")},
		{UserID: "u3", SessionDuration: 3, PageViews: 4, LoginCount: 2, AppOpenCount: 0, DaysActivePerMonth: 5, LastTransactionDate: day("2024-04-20")},
		{UserID: "u4", SessionDuration: 20, PageViews: 40, LoginCount: 30, AppOpenCount: 30, DaysActivePerMonth: 28, LastTransactionDate: day("2024-06-29")},
		{UserID: "u5", SessionDuration: 1.5, PageViews: 2, LoginCount: 3, AppOpenCount: 3, DaysActivePerMonth: 0, LastTransactionDate: day("2024-05-01")},
	}
	ds := core.NewDataset(users, txs, activity)
	ds.Cells = map[string]int{"users": 25, "transactions": 60, "activity": 35}
	ds.EmptyCells = map[string]int{"users": 0, "transactions": 0, "activity": 0}
	return ds
}

// SampleConfig returns default analysis thresholds anchored at SampleAsOf.
func SampleConfig() core.AnalysisConfig {
	cfg := core.DefaultAnalysisConfig()
	cfg.AsOf = SampleAsOf
	return cfg
}

// StubTables is a hand-built core.Tables for focused tests.
type StubTables struct {
	UserRows        []core.User
	TransactionRows []core.Transaction
	ActivityRows    []core.ActivityRecord
}

// Users returns the stubbed users.
func (s StubTables) Users() []core.User { return s.UserRows }

// Transactions returns the stubbed transactions.
func (s StubTables) Transactions() []core.Transaction { return s.TransactionRows }

// Activity returns the stubbed activity records.
func (s StubTables) Activity() []core.ActivityRecord { return s.ActivityRows }

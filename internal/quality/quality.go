// Package quality scores a loaded dataset for completeness and accuracy.
package quality

import (
	"fmt"

	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Bounds for the accuracy range checks.
const (
	MinAge = 0
	MaxAge = 120
)

// Issue is one data quality finding.
type Issue struct {
	Table   string `json:"table"`
	Check   string `json:"check"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Report is the outcome of Validate.
// Completeness and Accuracy are fractions in [0, 1].
type Report struct {
	IsValid      bool    `json:"is_valid"`
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Issues       []Issue `json:"issues"`
}

// Validate checks completeness (non-empty cells), accuracy (rows within range)
// and referential integrity. A dataset is valid when no issues are found.
func Validate(ds *core.Dataset) Report {
	r := Report{Issues: []Issue{}}

	cells, empty := 0, 0
	for _, n := range ds.Cells {
		cells += n
	}
	for _, n := range ds.EmptyCells {
		empty += n
	}
	r.Completeness = 1
	if cells > 0 {
		r.Completeness = 1 - float64(empty)/float64(cells)
	}
	for _, table := range []string{"users", "transactions", "activity"} {
		if n := ds.EmptyCells[table]; n > 0 {
			r.add(table, "completeness", n, "%d empty cells", n)
		}
	}

	rows, bad := 0, 0

	known := make(map[string]struct{}, len(ds.Users()))
	badAge, dupUsers := 0, 0
	for _, u := range ds.Users() {
		rows++
		if u.Age < MinAge || u.Age > MaxAge {
			badAge++
			bad++
		}
		if _, ok := known[u.ID]; ok {
			dupUsers++
		}
		known[u.ID] = struct{}{}
	}
	if badAge > 0 {
		r.add("users", "range", badAge, "%d users with age outside %d-%d", badAge, MinAge, MaxAge)
	}
	if dupUsers > 0 {
		r.add("users", "unique", dupUsers, "%d duplicate user_id values", dupUsers)
	}

	seenTx := make(map[string]struct{}, len(ds.Transactions()))
	orphans, dupTx, badAmount := 0, 0, 0
	for _, tx := range ds.Transactions() {
		rows++
		if tx.Amount < 0 || !tx.Status.Valid() {
			badAmount++
			bad++
		}
		if _, ok := known[tx.UserID]; !ok {
			orphans++
		}
		if _, ok := seenTx[tx.ID]; ok {
			dupTx++
		}
		seenTx[tx.ID] = struct{}{}
	}
	if badAmount > 0 {
		r.add("transactions", "range", badAmount, "%d transactions with negative amount or unknown status", badAmount)
	}
	if orphans > 0 {
		r.add("transactions", "referential", orphans, "%d transactions reference unknown users", orphans)
	}
	if dupTx > 0 {
		r.add("transactions", "unique", dupTx, "%d duplicate transaction_id values", dupTx)
	}

	badActivity := 0
	for _, a := range ds.Activity() {
		rows++
		if a.SessionDuration < 0 || a.PageViews < 0 || a.LoginCount < 0 || a.AppOpenCount < 0 ||
			a.DaysActivePerMonth < 0 || a.DaysActivePerMonth > 31 {
			badActivity++
			bad++
		}
	}
	if badActivity > 0 {
		r.add("activity", "range", badActivity, "%d activity records with out-of-range values", badActivity)
	}

	r.Accuracy = 1
	if rows > 0 {
		r.Accuracy = 1 - float64(bad)/float64(rows)
	}
	r.IsValid = len(r.Issues) == 0
	return r
}

func (r *Report) add(table, check string, count int, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Table:   table,
		Check:   check,
		Count:   count,
		Message: fmt.Sprintf(format, args...),
	})
}

package core

import "time"

// TransactionStatus is the outcome of a transaction.
type TransactionStatus string

// Transaction outcomes.
const (
	StatusSuccess TransactionStatus = "Success"
	StatusFailed  TransactionStatus = "Failed"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// User is a registered account.
type User struct {
	ID         string    `json:"user_id"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
	Location   string    `json:"location"`
	SignupDate time.Time `json:"signup_date"`
}

// Transaction is a single payment attempt.
type Transaction struct {
	ID        string            `json:"transaction_id"`
	UserID    string            `json:"user_id"`
	Amount    float64           `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Feature   string            `json:"feature"`
	Timestamp time.Time         `json:"timestamp"`
}

// Hour is the hour of day of Timestamp, 0..23.
func (t Transaction) Hour() int {
	return t.Timestamp.Hour()
}

// Weekday is the day of week of Timestamp.
func (t Transaction) Weekday() time.Weekday {
	return t.Timestamp.Weekday()
}

// Succeeded reports whether the transaction completed.
func (t Transaction) Succeeded() bool {
	return t.Status == StatusSuccess
}

// NewTransaction builds a Transaction.
func NewTransaction(id, userID string, amount float64, status TransactionStatus, feature string, ts time.Time) Transaction {
	return Transaction{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Status:    status,
		Feature:   feature,
		Timestamp: ts,
	}
}

// ActivityRecord is the per-user app engagement snapshot.
type ActivityRecord struct {
	UserID              string    `json:"user_id"`
	SessionDuration     float64   `json:"session_duration"`
	PageViews           int       `json:"page_views"`
	LoginCount          int       `json:"login_count"`
	AppOpenCount        int       `json:"app_open_count"`
	DaysActivePerMonth  int       `json:"days_active_per_month"`
	LastTransactionDate time.Time `json:"last_transaction_date"`
}

// Tables is the read contract every engine consumes.
// Implementations must not mutate the returned slices.
type Tables interface {
	Users() []User
	Transactions() []Transaction
	Activity() []ActivityRecord
}

// Dataset is the immutable in-memory result of a load.
type Dataset struct {
	users        []User
	transactions []Transaction
	activity     []ActivityRecord

	// Cells and EmptyCells count raw CSV cells per table, keyed by table name.
	Cells      map[string]int
	EmptyCells map[string]int
}

// NewDataset wraps loaded tables.
func NewDataset(users []User, transactions []Transaction, activity []ActivityRecord) *Dataset {
	return &Dataset{
		users:        users,
		transactions: transactions,
		activity:     activity,
		Cells:        map[string]int{},
		EmptyCells:   map[string]int{},
	}
}

// Users returns the users table.
func (d *Dataset) Users() []User { return d.users }

// Transactions returns the transactions table.
func (d *Dataset) Transactions() []Transaction { return d.transactions }

// Activity returns the activity table.
func (d *Dataset) Activity() []ActivityRecord { return d.activity }

var _ Tables = (*Dataset)(nil)

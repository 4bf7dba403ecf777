package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrStaleState is returned by Transition when the job is no longer
	// in the expected from-state. Callers skip the job; another sweep
	// already moved it.
	ErrStaleState = errors.New("job state changed concurrently")

	// ErrAlreadyApplied is returned by Debit/Credit when the idempotency
	// key has been used before. The balance is untouched; callers treat
	// this as success.
	ErrAlreadyApplied = errors.New("ledger entry already applied")

	// ErrInsufficientFunds is returned by Debit when the balance does
	// not cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrNotFound = errors.New("record not found")
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows us to pass either a connection pool or an active
// transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// AccountStore handles prepaid accounts and their API credentials.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account, hashedKey string) error

	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)

	GetAccountByAPIKeyHash(ctx context.Context, hash string) (*Account, error)
}

// PrinterStore handles the device registry. Status fields are written
// only through RecordProbeResult, and only by the health monitor.
type PrinterStore interface {
	CreatePrinter(ctx context.Context, printer *Printer) error

	GetPrinterByID(ctx context.Context, id uuid.UUID) (*Printer, error)

	// ListPrinters returns all printers, or only active ones.
	ListPrinters(ctx context.Context, activeOnly bool) ([]*Printer, error)

	// RecordProbeResult persists the outcome of one probe: the new
	// status, the check timestamp, and the failure streak.
	RecordProbeResult(ctx context.Context, id uuid.UUID, status PrinterStatus, checkedAt time.Time, consecutiveFailures int) error
}

// TransitionFields carries the optional mutations applied together with
// a job state change.
type TransitionFields struct {
	Reason     string
	LastError  *string
	RetryCount *int // set to overwrite retry_count
	// ResetClock restarts the pending-timeout clock by refreshing
	// created_at. Used when a failed job re-enters pending.
	ResetClock bool
}

// JobStore handles print job persistence. Transition is the only write
// path after creation; it is conditional on the from-status so that
// concurrent sweeps cannot double-process a job.
type JobStore interface {
	CreateJob(ctx context.Context, tx DBTransaction, job *Job) error

	GetJobByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// GetJobsByStatus returns jobs in the given status that entered it
	// before olderThan. Pass the zero time for no age bound.
	GetJobsByStatus(ctx context.Context, status JobStatus, olderThan time.Time) ([]*Job, error)

	// GetJobsByPrinter returns jobs for one printer in any of the given
	// statuses. Used by the recovered-device fast path and by the
	// monitor when a device drops.
	GetJobsByPrinter(ctx context.Context, printerID uuid.UUID, statuses []JobStatus) ([]*Job, error)

	// Transition moves a job from one status to another, writing the
	// audit history row in the same statement batch. Returns
	// ErrStaleState when the job is not in the from status.
	Transition(ctx context.Context, tx DBTransaction, jobID uuid.UUID, from, to JobStatus, fields TransitionFields) error

	GetHistory(ctx context.Context, jobID uuid.UUID) ([]*StatusHistory, error)

	CountJobsByStatus(ctx context.Context, status JobStatus) (int64, error)
}

// LedgerStore handles balance mutations. Both operations are idempotent
// under the given key and serializable per account: the balance change
// is a single guarded UPDATE, never a read-modify-write.
type LedgerStore interface {
	// Debit subtracts amount from the account balance and records the
	// entry. Fails with ErrInsufficientFunds without touching anything
	// when the balance is short, and with ErrAlreadyApplied on key reuse.
	Debit(ctx context.Context, tx DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error

	// Credit adds amount to the account balance and records the entry.
	// ErrAlreadyApplied on key reuse.
	Credit(ctx context.Context, tx DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error

	// ListEntriesByAccount returns ledger entries newest first.
	ListEntriesByAccount(ctx context.Context, accountID uuid.UUID, direction LedgerDirection) ([]*LedgerEntry, error)

	// GetEntryByKey looks up a single entry by idempotency key.
	GetEntryByKey(ctx context.Context, key string) (*LedgerEntry, error)

	// ListDanglingRefunds returns refund credits whose job has not
	// reached the cancelled state: the crediting half ran but the
	// transition half was lost.
	ListDanglingRefunds(ctx context.Context) ([]*LedgerEntry, error)

	// ListCancelledWithoutRefund returns cancelled jobs that have no
	// refund credit on record: the transition half ran but the credit
	// was lost.
	ListCancelledWithoutRefund(ctx context.Context) ([]*Job, error)
}

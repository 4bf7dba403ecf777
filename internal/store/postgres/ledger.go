package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"printsmart/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Debit subtracts from the balance and records the ledger entry under
// the idempotency key. The ledger insert goes first: a replayed key
// inserts nothing, and the balance is left alone. The balance update is
// a single guarded statement, so concurrent debits on one account
// serialize at the row and can never lose an update or go negative.
func (s *Store) Debit(ctx context.Context, tx store.DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error {
	return s.applyEntry(ctx, tx, accountID, jobID, amount, store.LedgerDebit, key, reason)
}

// Credit adds to the balance, idempotent under the key.
func (s *Store) Credit(ctx context.Context, tx store.DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error {
	return s.applyEntry(ctx, tx, accountID, jobID, amount, store.LedgerCredit, key, reason)
}

func (s *Store) applyEntry(ctx context.Context, tx store.DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, direction store.LedgerDirection, key, reason string) error {
	executor := s.getExecutor(tx)

	var entryID int64
	err := executor.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (account_id, job_id, amount, direction, idempotency_key, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`, accountID, jobID, amount, direction, key, reason).Scan(&entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrAlreadyApplied
	}
	if err != nil {
		return fmt.Errorf("failed to record %s %q: %w", direction, key, err)
	}

	var balanceQuery string
	if direction == store.LedgerDebit {
		balanceQuery = `
			UPDATE accounts SET balance = balance - $1
			WHERE id = $2 AND balance >= $1
		`
	} else {
		balanceQuery = `
			UPDATE accounts SET balance = balance + $1
			WHERE id = $2
		`
	}

	res, err := executor.ExecContext(ctx, balanceQuery, amount, accountID)
	if err != nil {
		return fmt.Errorf("failed to apply %s to account %s: %w", direction, accountID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if direction == store.LedgerDebit {
			return store.ErrInsufficientFunds
		}
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) ListEntriesByAccount(ctx context.Context, accountID uuid.UUID, direction store.LedgerDirection) ([]*store.LedgerEntry, error) {
	query := `
		SELECT id, account_id, job_id, amount, direction, idempotency_key, reason, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND direction = $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, accountID, direction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *Store) GetEntryByKey(ctx context.Context, key string) (*store.LedgerEntry, error) {
	query := `
		SELECT id, account_id, job_id, amount, direction, idempotency_key, reason, created_at
		FROM ledger_entries WHERE idempotency_key = $1
	`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

// ListDanglingRefunds finds refund credits whose job never reached
// cancelled: the credit half of a refund ran, the transition was lost.
func (s *Store) ListDanglingRefunds(ctx context.Context) ([]*store.LedgerEntry, error) {
	query := `
		SELECT e.id, e.account_id, e.job_id, e.amount, e.direction, e.idempotency_key, e.reason, e.created_at
		FROM ledger_entries e
		JOIN jobs j ON j.id = e.job_id
		WHERE e.direction = 'credit'
		  AND e.job_id IS NOT NULL
		  AND j.status <> 'cancelled'
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListCancelledWithoutRefund finds cancelled jobs missing their refund
// credit: the transition half ran, the credit was lost.
func (s *Store) ListCancelledWithoutRefund(ctx context.Context) ([]*store.Job, error) {
	query := "SELECT " + jobColumns + ` FROM jobs
		WHERE status = 'cancelled'
		  AND NOT EXISTS (
			SELECT 1 FROM ledger_entries e
			WHERE e.job_id = jobs.id AND e.direction = 'credit'
		  )
	`

	return s.queryJobs(ctx, query)
}

func scanEntries(rows *sql.Rows) ([]*store.LedgerEntry, error) {
	var entries []*store.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*store.LedgerEntry, error) {
	var e store.LedgerEntry
	var jobID uuid.NullUUID
	err := row.Scan(&e.ID, &e.AccountID, &jobID, &e.Amount, &e.Direction, &e.IdempotencyKey, &e.Reason, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if jobID.Valid {
		e.JobID = &jobID.UUID
	}
	return &e, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"printsmart/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const jobColumns = `id, account_id, printer_id, cost, status, priority,
	retry_count, max_retries, last_error, created_at, last_transition_at, terminal_at`

func (s *Store) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO jobs (id, account_id, printer_id, cost, status, priority, retry_count, max_retries, created_at, last_transition_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err := executor.ExecContext(ctx, query,
		job.ID,
		job.AccountID,
		job.PrinterID,
		job.Cost,
		job.Status,
		job.Priority,
		job.RetryCount,
		job.MaxRetries,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}

	// Admission is itself a recorded transition.
	_, err = executor.ExecContext(ctx, `
		INSERT INTO job_status_history (job_id, from_status, to_status, reason)
		VALUES ($1, '', $2, 'admitted')
	`, job.ID, job.Status)
	return err
}

func (s *Store) GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE id = $1"

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return j, err
}

func (s *Store) GetJobsByStatus(ctx context.Context, status store.JobStatus, olderThan time.Time) ([]*store.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE status = $1"
	args := []interface{}{status}

	// The state clock is last_transition_at: admission and every
	// retry re-entry refresh it.
	if !olderThan.IsZero() {
		query += " AND last_transition_at < $2"
		args = append(args, olderThan)
	}
	query += " ORDER BY created_at ASC"

	return s.queryJobs(ctx, query, args...)
}

func (s *Store) GetJobsByPrinter(ctx context.Context, printerID uuid.UUID, statuses []store.JobStatus) ([]*store.Job, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	query := "SELECT " + jobColumns + ` FROM jobs
		WHERE printer_id = $1 AND status = ANY($2)
		ORDER BY created_at ASC`

	return s.queryJobs(ctx, query, printerID, pq.Array(names))
}

// Transition moves a job between states, conditional on the from-state.
// The UPDATE and the audit row share the caller's transaction when one
// is supplied, so a refund credit and its cancellation commit together.
func (s *Store) Transition(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, from, to store.JobStatus, fields store.TransitionFields) error {
	executor := s.getExecutor(tx)

	query := `
		UPDATE jobs
		SET status = $1,
			last_transition_at = NOW(),
			last_error = COALESCE($2, last_error),
			retry_count = COALESCE($3, retry_count),
			created_at = CASE WHEN $4 THEN NOW() ELSE created_at END,
			terminal_at = CASE WHEN $5 THEN NOW() ELSE terminal_at END
		WHERE id = $6 AND status = $7
	`

	var retryCount sql.NullInt32
	if fields.RetryCount != nil {
		retryCount = sql.NullInt32{Int32: int32(*fields.RetryCount), Valid: true}
	}

	res, err := executor.ExecContext(ctx, query,
		to,
		fields.LastError,
		retryCount,
		fields.ResetClock,
		to.Terminal(),
		jobID,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to transition job %s: %w", jobID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrStaleState
	}

	_, err = executor.ExecContext(ctx, `
		INSERT INTO job_status_history (job_id, from_status, to_status, reason)
		VALUES ($1, $2, $3, $4)
	`, jobID, from, to, fields.Reason)
	if err != nil {
		return fmt.Errorf("failed to record transition for job %s: %w", jobID, err)
	}

	return nil
}

func (s *Store) GetHistory(ctx context.Context, jobID uuid.UUID) ([]*store.StatusHistory, error) {
	query := `
		SELECT id, job_id, from_status, to_status, reason, created_at
		FROM job_status_history
		WHERE job_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*store.StatusHistory
	for rows.Next() {
		var h store.StatusHistory
		if err := rows.Scan(&h.ID, &h.JobID, &h.FromStatus, &h.ToStatus, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

func (s *Store) CountJobsByStatus(ctx context.Context, status store.JobStatus) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE status = $1", status).Scan(&count)
	return count, err
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*store.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*store.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*store.Job, error) {
	var j store.Job
	var lastError sql.NullString
	var terminalAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.AccountID, &j.PrinterID, &j.Cost, &j.Status, &j.Priority,
		&j.RetryCount, &j.MaxRetries, &lastError, &j.CreatedAt, &j.LastTransitionAt, &terminalAt,
	)
	if err != nil {
		return nil, err
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	if terminalAt.Valid {
		j.TerminalAt = &terminalAt.Time
	}
	return &j, nil
}

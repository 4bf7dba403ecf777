package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"printsmart/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "account_id", "printer_id", "cost", "status", "priority",
		"retry_count", "max_retries", "last_error", "created_at", "last_transition_at", "terminal_at",
	})
}

func TestCreateJob_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	job := &store.Job{
		ID:         uuid.New(),
		AccountID:  uuid.New(),
		PrinterID:  uuid.New(),
		Cost:       decimal.RequireFromString("1.50"),
		Status:     store.JobStatusPending,
		Priority:   5,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}

	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO job_status_history`).
		WithArgs(job.ID, job.Status).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.CreateJob(context.Background(), nil, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTransition_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()

	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO job_status_history`).
		WithArgs(jobID, store.JobStatusPending, store.JobStatusProcessing, "dispatched").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Transition(context.Background(), nil, jobID,
		store.JobStatusPending, store.JobStatusProcessing,
		store.TransitionFields{Reason: "dispatched"})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTransition_StaleState(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()

	// Another sweep already moved the job out of the from-state.
	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Transition(context.Background(), nil, jobID,
		store.JobStatusPending, store.JobStatusProcessing,
		store.TransitionFields{Reason: "dispatched"})
	if !errors.Is(err, store.ErrStaleState) {
		t.Errorf("got %v, want ErrStaleState", err)
	}

	// No history row must be written for a lost race.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJobsByStatus_FiltersOnTransitionClock(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	cutoff := time.Now().Add(-30 * time.Minute)
	now := time.Now()

	mock.ExpectQuery(`AND last_transition_at <`).
		WithArgs(store.JobStatusPending, cutoff).
		WillReturnRows(jobRows().AddRow(
			jobID, uuid.New(), uuid.New(), "1.50", "pending", 5,
			0, 3, nil, now.Add(-time.Hour), now.Add(-time.Hour), nil,
		))

	jobs, err := s.GetJobsByStatus(context.Background(), store.JobStatusPending, cutoff)
	if err != nil {
		t.Fatalf("GetJobsByStatus failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].ID != jobID {
		t.Errorf("got job %v, want %v", jobs[0].ID, jobID)
	}
}

func TestGetJobsByStatus_NoAgeBound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`FROM jobs WHERE status =`).
		WithArgs(store.JobStatusFailed).
		WillReturnRows(jobRows())

	jobs, err := s.GetJobsByStatus(context.Background(), store.JobStatusFailed, time.Time{})
	if err != nil {
		t.Fatalf("GetJobsByStatus failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
}

func TestGetJobByID_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()

	mock.ExpectQuery(`FROM jobs WHERE id =`).
		WithArgs(jobID).
		WillReturnRows(jobRows())

	_, err := s.GetJobByID(context.Background(), jobID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

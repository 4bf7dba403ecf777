// Package store contains the database layer for printsmart.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds a prepaid wallet. The balance never goes below zero;
// debits are guarded at the SQL level.
type Account struct {
	ID             uuid.UUID
	Name           string
	Balance        decimal.Decimal
	RateLimit      int
	RateLimitBurst int
	CreatedAt      time.Time
}

// DeviceClass categorizes printers by speed. Slower classes get longer
// job timeouts via the orchestrator's class multipliers.
type DeviceClass string

const (
	DeviceClassLaser     DeviceClass = "laser"
	DeviceClassInkjet    DeviceClass = "inkjet"
	DeviceClassThermal   DeviceClass = "thermal"
	DeviceClassDotMatrix DeviceClass = "dot_matrix"
)

// PrinterStatus is the advisory cache of the last probe result.
// Only the health monitor writes it. Readers must apply the staleness
// window and treat an out-of-date reading as unknown.
type PrinterStatus string

const (
	PrinterStatusOnline  PrinterStatus = "online"
	PrinterStatusOffline PrinterStatus = "offline"
	PrinterStatusError   PrinterStatus = "error"
	PrinterStatusUnknown PrinterStatus = "unknown"
)

// Printer represents a registered print device.
type Printer struct {
	ID                  uuid.UUID
	Name                string
	Address             string // host:port of the raw print endpoint
	Class               DeviceClass
	SupportsColor       bool
	SupportsDuplex      bool
	Status              PrinterStatus
	LastCheckedAt       *time.Time
	ConsecutiveFailures int
	Active              bool
	CreatedAt           time.Time
}

// JobStatus represents the state of a print job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transition may occur from s.
// Failed is deliberately not terminal: it must resolve to pending or
// cancelled within a sweep pass.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// Job is a submitted print job. Created by the submission gate in
// pending with its debit applied; mutated only by the orchestrator
// afterwards; never deleted (audit record).
type Job struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	PrinterID        uuid.UUID
	Cost             decimal.Decimal
	Status           JobStatus
	Priority         int // 1 (urgent) .. 10 (background), default 5
	RetryCount       int
	MaxRetries       int
	LastError        *string
	CreatedAt        time.Time
	LastTransitionAt time.Time
	TerminalAt       *time.Time
}

// StatusHistory is an audit row written with every job transition,
// in the same transaction.
type StatusHistory struct {
	ID         int64
	JobID      uuid.UUID
	FromStatus JobStatus
	ToStatus   JobStatus
	Reason     string
	CreatedAt  time.Time
}

// LedgerDirection marks a ledger entry as moving money out of or into
// an account balance.
type LedgerDirection string

const (
	LedgerDebit  LedgerDirection = "debit"
	LedgerCredit LedgerDirection = "credit"
)

// LedgerEntry records a single balance mutation. The idempotency key is
// unique: replays insert nothing and leave the balance untouched.
// Debits for a job use the job id as key; the matching refund uses
// RefundKey(jobID).
type LedgerEntry struct {
	ID             int64
	AccountID      uuid.UUID
	JobID          *uuid.UUID // nil for topups
	Amount         decimal.Decimal
	Direction      LedgerDirection
	IdempotencyKey string
	Reason         string
	CreatedAt      time.Time
}

// RefundKey returns the idempotency key under which a job's refund
// credit is recorded. There is exactly one per job, ever.
func RefundKey(jobID uuid.UUID) string {
	return jobID.String() + ":refund"
}

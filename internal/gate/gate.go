// Package gate decides, at request time, whether a new print job may
// be admitted. It exists to prevent one specific failure mode: charging
// for work destined for an unreachable device.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"printsmart/internal/events"
	"printsmart/internal/observability"
	"printsmart/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrDeviceUnavailable rejects admission when the printer is not
	// known-online with a fresh probe reading. Fail closed: a stale
	// reading is treated as unknown.
	ErrDeviceUnavailable = errors.New("printer unavailable")

	// ErrInsufficientBalance rejects admission when the account cannot
	// cover the job cost.
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrPrinterNotFound = errors.New("printer not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidRequest  = errors.New("invalid submission")
)

// Store is the slice of the database layer the gate needs.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	GetPrinterByID(ctx context.Context, id uuid.UUID) (*store.Printer, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*store.Account, error)
	CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error
	Debit(ctx context.Context, tx store.DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error
}

// Request describes a submission.
type Request struct {
	AccountID  uuid.UUID
	PrinterID  uuid.UUID
	Cost       decimal.Decimal
	Priority   int // 1..10, 0 means default (5)
	MaxRetries int // 0 means the configured default
}

// Gate validates submissions against current device state and the
// prepaid balance, then admits atomically: debit and job creation
// commit together or not at all.
type Gate struct {
	store      Store
	emitter    events.Emitter
	logger     *slog.Logger
	metrics    *observability.Metrics
	staleness  time.Duration
	maxRetries int
	now        func() time.Time
}

func New(s Store, emitter events.Emitter, logger *slog.Logger, metrics *observability.Metrics, stalenessWindow time.Duration, defaultMaxRetries int) *Gate {
	if stalenessWindow <= 0 {
		stalenessWindow = 90 * time.Second
	}
	if defaultMaxRetries <= 0 {
		defaultMaxRetries = 3
	}
	return &Gate{
		store:      s,
		emitter:    emitter,
		logger:     logger,
		metrics:    metrics,
		staleness:  stalenessWindow,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
}

// Admit checks the preconditions and creates the job in pending with
// its debit applied. On rejection nothing is mutated.
func (g *Gate) Admit(ctx context.Context, req Request) (*store.Job, error) {
	if req.Cost.IsNegative() || req.Cost.IsZero() {
		return nil, fmt.Errorf("%w: cost must be positive", ErrInvalidRequest)
	}
	if req.Priority == 0 {
		req.Priority = 5
	}
	if req.Priority < 1 || req.Priority > 10 {
		return nil, fmt.Errorf("%w: priority must be 1..10", ErrInvalidRequest)
	}
	if req.MaxRetries == 0 {
		req.MaxRetries = g.maxRetries
	}

	printer, err := g.store.GetPrinterByID(ctx, req.PrinterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, req.PrinterID)
		}
		return nil, err
	}

	if status := g.effectiveStatus(printer); status != store.PrinterStatusOnline {
		return nil, fmt.Errorf("%w: printer %q is %s", ErrDeviceUnavailable, printer.Name, status)
	}

	account, err := g.store.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, req.AccountID)
		}
		return nil, err
	}

	// Pre-check for a descriptive rejection; the transaction below is
	// the authoritative guard against racing admissions.
	if account.Balance.LessThan(req.Cost) {
		return nil, fmt.Errorf("%w: balance %s, cost %s",
			ErrInsufficientBalance, account.Balance, req.Cost)
	}

	job := &store.Job{
		ID:         uuid.New(),
		AccountID:  req.AccountID,
		PrinterID:  req.PrinterID,
		Cost:       req.Cost,
		Status:     store.JobStatusPending,
		Priority:   req.Priority,
		MaxRetries: req.MaxRetries,
		CreatedAt:  g.now().UTC(),
	}
	job.LastTransitionAt = job.CreatedAt

	tx, err := g.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = g.store.Debit(ctx, tx, req.AccountID, &job.ID, req.Cost, job.ID.String(),
		"print job admission on "+printer.Name)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return nil, fmt.Errorf("%w: balance below %s", ErrInsufficientBalance, req.Cost)
		}
		return nil, err
	}

	if err := g.store.CreateJob(ctx, tx, job); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	g.logger.Info("job admitted",
		"job", job.ID, "account", req.AccountID, "printer", req.PrinterID,
		"cost", req.Cost, "priority", job.Priority)
	if g.metrics != nil {
		g.metrics.JobsAdmitted.Add(ctx, 1)
	}
	g.emitter.JobStatusChanged(events.JobStatusChange{
		JobID:      job.ID,
		PrinterID:  job.PrinterID,
		FromStatus: "",
		ToStatus:   store.JobStatusPending,
		Reason:     "admitted",
	})

	return job, nil
}

// effectiveStatus applies the staleness window: a reading older than
// the window, or no reading at all, counts as unknown.
func (g *Gate) effectiveStatus(p *store.Printer) store.PrinterStatus {
	if !p.Active {
		return store.PrinterStatusUnknown
	}
	if p.LastCheckedAt == nil || g.now().Sub(*p.LastCheckedAt) > g.staleness {
		return store.PrinterStatusUnknown
	}
	return p.Status
}

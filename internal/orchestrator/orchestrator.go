// Package orchestrator drives the print job lifecycle: a timeout-driven
// state machine that polices pending and processing jobs, retries
// transiently failed work, and reconciles the balance ledger so money
// is never retained for work that did not happen.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"printsmart/internal/events"
	"printsmart/internal/monitor"
	"printsmart/internal/observability"
	"printsmart/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the slice of the database layer the orchestrator needs.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error)
	GetJobsByStatus(ctx context.Context, status store.JobStatus, olderThan time.Time) ([]*store.Job, error)
	GetJobsByPrinter(ctx context.Context, printerID uuid.UUID, statuses []store.JobStatus) ([]*store.Job, error)
	GetPrinterByID(ctx context.Context, id uuid.UUID) (*store.Printer, error)
	Transition(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, from, to store.JobStatus, fields store.TransitionFields) error
	Credit(ctx context.Context, tx store.DBTransaction, accountID uuid.UUID, jobID *uuid.UUID, amount decimal.Decimal, key, reason string) error
	ListDanglingRefunds(ctx context.Context) ([]*store.LedgerEntry, error)
	ListCancelledWithoutRefund(ctx context.Context) ([]*store.Job, error)
}

// Config holds the timeout policy. Base timeouts are scaled per job by
// the priority multiplier and the device-class multiplier.
type Config struct {
	SweepInterval      time.Duration
	PendingTimeout     time.Duration
	ProcessingTimeout  time.Duration
	AbandonedThreshold time.Duration
	StalenessWindow    time.Duration
	DispatchTimeout    time.Duration

	PriorityMultipliers map[int]float64
	ClassMultipliers    map[store.DeviceClass]float64
}

// Orchestrator runs the periodic sweep and the recovered-device fast
// path. Multiple instances may run concurrently: every transition is
// conditional on the from-state, so an overlapping sweep skips jobs the
// other already claimed instead of double-processing them.
type Orchestrator struct {
	store     Store
	transport monitor.Transport
	emitter   events.Emitter
	logger    *slog.Logger
	metrics   *observability.Metrics
	recovered <-chan uuid.UUID
	cfg       Config
	now       func() time.Time
}

func New(s Store, transport monitor.Transport, emitter events.Emitter, logger *slog.Logger, metrics *observability.Metrics, recovered <-chan uuid.UUID, cfg Config) *Orchestrator {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 30 * time.Minute
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = time.Hour
	}
	if cfg.AbandonedThreshold <= 0 {
		cfg.AbandonedThreshold = 7 * 24 * time.Hour
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = 90 * time.Second
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}

	return &Orchestrator{
		store:     s,
		transport: transport,
		emitter:   emitter,
		logger:    logger,
		metrics:   metrics,
		recovered: recovered,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run blocks until the context is cancelled, sweeping on a fixed
// interval and servicing recovered-device events in between.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	if err := o.Reconcile(ctx); err != nil {
		o.logger.Error("reconciliation pass failed", "error", err)
	}
	if err := o.Sweep(ctx); err != nil {
		o.logger.Error("sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.Reconcile(ctx); err != nil {
				o.logger.Error("reconciliation pass failed", "error", err)
			}
			if err := o.Sweep(ctx); err != nil {
				o.logger.Error("sweep failed", "error", err)
			}
		case printerID, ok := <-o.recovered:
			if !ok {
				return nil
			}
			o.fastPath(ctx, printerID)
		}
	}
}

// timeoutFor scales a base timeout by the job's priority and the
// device class of its printer.
func (o *Orchestrator) timeoutFor(base time.Duration, job *store.Job, printer *store.Printer) time.Duration {
	mult := 1.0
	if m, ok := o.cfg.PriorityMultipliers[job.Priority]; ok {
		mult *= m
	}
	if printer != nil {
		if m, ok := o.cfg.ClassMultipliers[printer.Class]; ok {
			mult *= m
		}
	}
	return time.Duration(float64(base) * mult)
}

// minMultiplier is the most aggressive combined scaling; used to build
// a conservative cutoff so the status query catches every job that
// might have expired.
func (o *Orchestrator) minMultiplier() float64 {
	min := 1.0
	for _, m := range o.cfg.PriorityMultipliers {
		if m < min {
			min = m
		}
	}
	classMin := 1.0
	for _, m := range o.cfg.ClassMultipliers {
		if m < classMin {
			classMin = m
		}
	}
	return min * classMin
}

// effectiveStatus mirrors the gate's staleness rule: an out-of-date
// probe reading is not trusted.
func (o *Orchestrator) effectiveStatus(p *store.Printer) store.PrinterStatus {
	if p == nil || !p.Active {
		return store.PrinterStatusUnknown
	}
	if p.LastCheckedAt == nil || o.now().Sub(*p.LastCheckedAt) > o.cfg.StalenessWindow {
		return store.PrinterStatusUnknown
	}
	return p.Status
}

// printerCache avoids re-reading one printer row for every job in a
// sweep pass.
type printerCache map[uuid.UUID]*store.Printer

func (o *Orchestrator) cachedPrinter(ctx context.Context, cache printerCache, id uuid.UUID) (*store.Printer, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	p, err := o.store.GetPrinterByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = p
	return p, nil
}

func (o *Orchestrator) emitTransition(job *store.Job, from, to store.JobStatus, reason string, retryCount int) {
	o.emitter.JobStatusChanged(events.JobStatusChange{
		JobID:      job.ID,
		PrinterID:  job.PrinterID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		RetryCount: retryCount,
	})
}

// cancelAndRefund is the single exit into the cancelled state for
// debited work. The refund credit and the terminal transition share one
// transaction, and the credit is idempotent under the job's refund key,
// so the job is never credited twice and never left credited-but-open
// past the next reconciliation pass.
func (o *Orchestrator) cancelAndRefund(ctx context.Context, job *store.Job, from store.JobStatus, reason string) error {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	refunded := true
	err = o.store.Credit(ctx, tx, job.AccountID, &job.ID, job.Cost, store.RefundKey(job.ID), reason)
	if err != nil {
		if !errors.Is(err, store.ErrAlreadyApplied) {
			return err
		}
		refunded = false
	}

	err = o.store.Transition(ctx, tx, job.ID, from, store.JobStatusCancelled, store.TransitionFields{
		Reason:    reason,
		LastError: &reason,
	})
	if err != nil {
		// StaleState included: roll the credit back, another sweeper
		// owns this job now.
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	o.logger.Info("job cancelled and refunded",
		"job", job.ID, "from", from, "amount", job.Cost, "reason", reason)
	if o.metrics != nil {
		o.metrics.JobsCancelled.Add(ctx, 1)
		if refunded {
			o.metrics.RefundsIssued.Add(ctx, 1)
		}
	}
	o.emitTransition(job, from, store.JobStatusCancelled, reason, job.RetryCount)
	if refunded {
		o.emitter.RefundIssued(events.RefundIssued{
			JobID:     job.ID,
			AccountID: job.AccountID,
			Amount:    job.Cost,
			Reason:    reason,
		})
	}
	return nil
}

// fastPath services a recovered-device event: failed jobs targeting the
// printer are resolved immediately instead of waiting for the next
// tick, and pending jobs get their expiry re-checked. Nothing else is
// touched; a healthy pending job inside its window keeps waiting.
func (o *Orchestrator) fastPath(ctx context.Context, printerID uuid.UUID) {
	o.logger.Info("printer recovered, running fast path", "printer", printerID)

	cache := printerCache{}

	jobs, err := o.store.GetJobsByPrinter(ctx, printerID, []store.JobStatus{store.JobStatusFailed, store.JobStatusPending})
	if err != nil {
		o.logger.Error("fast path listing failed", "printer", printerID, "error", err)
		return
	}

	for _, job := range jobs {
		switch job.Status {
		case store.JobStatusFailed:
			if err := o.resolveFailedJob(ctx, job); err != nil {
				o.logJobError("fast path resolve failed", job, err)
			}
		case store.JobStatusPending:
			if err := o.checkPendingJob(ctx, cache, job); err != nil {
				o.logJobError("fast path pending check failed", job, err)
			}
		}
	}
}

func (o *Orchestrator) logJobError(msg string, job *store.Job, err error) {
	if errors.Is(err, store.ErrStaleState) {
		// Another sweep claimed the job; it will be re-evaluated there.
		return
	}
	o.logger.Error(msg, "job", job.ID, "error", err)
}

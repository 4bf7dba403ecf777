package orchestrator

import (
	"context"
	"fmt"
	"time"

	"printsmart/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sweep runs one scan-and-transition pass over all non-terminal jobs.
// Pass order matters: expired pending and stuck processing feed the
// failed pass, which must resolve every failed job to pending or
// cancelled before the sweep ends. A per-job error never aborts the
// sweep; only a failing store listing does.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "sweep",
		trace.WithAttributes(attribute.String("sweep.interval", o.cfg.SweepInterval.String())),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	cache := printerCache{}

	if err := o.sweepExpiredPending(ctx, cache); err != nil {
		span.RecordError(err)
		return fmt.Errorf("expired pending pass: %w", err)
	}
	if err := o.sweepStuckProcessing(ctx, cache); err != nil {
		span.RecordError(err)
		return fmt.Errorf("stuck processing pass: %w", err)
	}
	if err := o.resolveFailed(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed resolution pass: %w", err)
	}
	if err := o.sweepAbandoned(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("abandoned cleanup pass: %w", err)
	}
	if err := o.dispatchPending(ctx, cache); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dispatch pass: %w", err)
	}
	return nil
}

// sweepExpiredPending handles jobs that outstayed their (modulated)
// pending timeout. A reachable device means the admission was sound and
// the loss is presumed transient dispatch-layer, so the job goes to
// failed for a retry; an unreachable device means the job is cancelled
// and refunded.
func (o *Orchestrator) sweepExpiredPending(ctx context.Context, cache printerCache) error {
	cutoff := o.now().Add(-time.Duration(float64(o.cfg.PendingTimeout) * o.minMultiplier()))

	jobs, err := o.store.GetJobsByStatus(ctx, store.JobStatusPending, cutoff)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := o.checkPendingJob(ctx, cache, job); err != nil {
			o.logJobError("expired pending job not processed", job, err)
		}
	}
	return nil
}

// checkPendingJob applies the pending-timeout policy to one job. Shared
// with the recovered-device fast path. A job inside its window is left
// untouched.
func (o *Orchestrator) checkPendingJob(ctx context.Context, cache printerCache, job *store.Job) error {
	printer, err := o.cachedPrinter(ctx, cache, job.PrinterID)
	if err != nil {
		return err
	}

	deadline := o.timeoutFor(o.cfg.PendingTimeout, job, printer)
	age := o.now().Sub(job.LastTransitionAt)
	if age <= deadline {
		return nil
	}

	if o.effectiveStatus(printer) == store.PrinterStatusOnline {
		reason := fmt.Sprintf("pending for %s with printer online, presuming lost dispatch", age.Round(time.Second))
		err := o.store.Transition(ctx, nil, job.ID, store.JobStatusPending, store.JobStatusFailed, store.TransitionFields{
			Reason:    reason,
			LastError: &reason,
		})
		if err != nil {
			return err
		}
		o.emitTransition(job, store.JobStatusPending, store.JobStatusFailed, reason, job.RetryCount)
		return nil
	}

	reason := fmt.Sprintf("expired after %s pending, printer %s", age.Round(time.Second), printer.Status)
	return o.cancelAndRefund(ctx, job, store.JobStatusPending, reason)
}

// sweepStuckProcessing presumes jobs past the processing timeout are
// stalled (device hung or lost the job) and moves them to failed.
func (o *Orchestrator) sweepStuckProcessing(ctx context.Context, cache printerCache) error {
	cutoff := o.now().Add(-time.Duration(float64(o.cfg.ProcessingTimeout) * o.minMultiplier()))

	jobs, err := o.store.GetJobsByStatus(ctx, store.JobStatusProcessing, cutoff)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		printer, err := o.cachedPrinter(ctx, cache, job.PrinterID)
		if err != nil {
			o.logJobError("stuck processing job not processed", job, err)
			continue
		}

		deadline := o.timeoutFor(o.cfg.ProcessingTimeout, job, printer)
		age := o.now().Sub(job.LastTransitionAt)
		if age <= deadline {
			continue
		}

		reason := fmt.Sprintf("stuck in processing for %s", age.Round(time.Second))
		err = o.store.Transition(ctx, nil, job.ID, store.JobStatusProcessing, store.JobStatusFailed, store.TransitionFields{
			Reason:    reason,
			LastError: &reason,
		})
		if err != nil {
			o.logJobError("stuck processing job not processed", job, err)
			continue
		}
		o.emitTransition(job, store.JobStatusProcessing, store.JobStatusFailed, reason, job.RetryCount)
	}
	return nil
}

// resolveFailed synchronously settles every failed job: back to pending
// with a fresh clock while retry budget remains, otherwise cancelled
// with a refund. Failed is never left dangling across sweeps.
func (o *Orchestrator) resolveFailed(ctx context.Context) error {
	jobs, err := o.store.GetJobsByStatus(ctx, store.JobStatusFailed, time.Time{})
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := o.resolveFailedJob(ctx, job); err != nil {
			o.logJobError("failed job not resolved", job, err)
		}
	}
	return nil
}

func (o *Orchestrator) resolveFailedJob(ctx context.Context, job *store.Job) error {
	if job.RetryCount < job.MaxRetries {
		next := job.RetryCount + 1
		reason := fmt.Sprintf("retry %d of %d", next, job.MaxRetries)
		err := o.store.Transition(ctx, nil, job.ID, store.JobStatusFailed, store.JobStatusPending, store.TransitionFields{
			Reason:     reason,
			RetryCount: &next,
			ResetClock: true,
		})
		if err != nil {
			return err
		}
		if o.metrics != nil {
			o.metrics.JobsRetried.Add(ctx, 1)
		}
		o.emitTransition(job, store.JobStatusFailed, store.JobStatusPending, reason, next)
		return nil
	}

	reason := fmt.Sprintf("retries exhausted (%d of %d)", job.RetryCount, job.MaxRetries)
	if job.LastError != nil {
		reason += ": " + *job.LastError
	}
	return o.cancelAndRefund(ctx, job, store.JobStatusFailed, reason)
}

// sweepAbandoned is the safety net against orchestrator downtime and
// unforeseen stuck states: anything non-terminal that has sat in its
// current state past the threshold is cancelled and refunded,
// regardless of retry budget.
func (o *Orchestrator) sweepAbandoned(ctx context.Context) error {
	cutoff := o.now().Add(-o.cfg.AbandonedThreshold)

	for _, status := range []store.JobStatus{store.JobStatusPending, store.JobStatusProcessing, store.JobStatusFailed} {
		jobs, err := o.store.GetJobsByStatus(ctx, status, cutoff)
		if err != nil {
			return err
		}

		for _, job := range jobs {
			age := o.now().Sub(job.LastTransitionAt)
			reason := fmt.Sprintf("abandoned in %s for %s", status, age.Round(time.Hour))
			if err := o.cancelAndRefund(ctx, job, status, reason); err != nil {
				o.logJobError("abandoned job not cleaned up", job, err)
			}
		}
	}
	return nil
}

// dispatchPending ships pending jobs whose printer is known-online to
// the device. The pending→processing transition claims the job before
// any network I/O, so a concurrent sweep cannot dispatch it twice; a
// failed send rolls it into failed for the next resolution pass.
func (o *Orchestrator) dispatchPending(ctx context.Context, cache printerCache) error {
	if o.transport == nil {
		return nil
	}

	jobs, err := o.store.GetJobsByStatus(ctx, store.JobStatusPending, time.Time{})
	if err != nil {
		return err
	}

	for _, job := range jobs {
		printer, err := o.cachedPrinter(ctx, cache, job.PrinterID)
		if err != nil {
			o.logJobError("dispatch skipped", job, err)
			continue
		}
		if o.effectiveStatus(printer) != store.PrinterStatusOnline {
			continue
		}

		err = o.store.Transition(ctx, nil, job.ID, store.JobStatusPending, store.JobStatusProcessing, store.TransitionFields{
			Reason: "dispatched to " + printer.Name,
		})
		if err != nil {
			o.logJobError("dispatch claim failed", job, err)
			continue
		}
		o.emitTransition(job, store.JobStatusPending, store.JobStatusProcessing, "dispatched", job.RetryCount)

		ticket := []byte(fmt.Sprintf("JOB %s ACCOUNT %s\r\n", job.ID, job.AccountID))
		if err := o.transport.Send(ctx, printer.Address, ticket, o.cfg.DispatchTimeout); err != nil {
			reason := "dispatch failed: " + err.Error()
			terr := o.store.Transition(ctx, nil, job.ID, store.JobStatusProcessing, store.JobStatusFailed, store.TransitionFields{
				Reason:    reason,
				LastError: &reason,
			})
			if terr != nil {
				o.logJobError("dispatch failure not recorded", job, terr)
				continue
			}
			o.emitTransition(job, store.JobStatusProcessing, store.JobStatusFailed, reason, job.RetryCount)
		}
	}
	return nil
}

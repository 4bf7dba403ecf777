package orchestrator

import (
	"context"
	"fmt"

	"printsmart/internal/events"
	"printsmart/internal/store"
)

// Reconcile detects and repairs half-applied refunds. The two halves of
// a refund (ledger credit, cancelled transition) normally commit in one
// transaction; this pass covers crashes between a partially recovered
// database and external corrections, and the invariant it restores is
// exact agreement between credits and terminal states. Mismatches are
// logged at Error level, never silently absorbed.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	if err := o.reconcileDanglingCredits(ctx); err != nil {
		return fmt.Errorf("dangling credits: %w", err)
	}
	if err := o.reconcileMissingCredits(ctx); err != nil {
		return fmt.Errorf("missing credits: %w", err)
	}
	return nil
}

// reconcileDanglingCredits finds refund credits whose job never reached
// cancelled and completes the missing transition half.
func (o *Orchestrator) reconcileDanglingCredits(ctx context.Context) error {
	entries, err := o.store.ListDanglingRefunds(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.JobID == nil {
			continue
		}

		job, err := o.store.GetJobByID(ctx, *entry.JobID)
		if err != nil {
			o.logger.Error("reconciliation mismatch: credited job unreadable",
				"job", entry.JobID, "ledger_entry", entry.ID, "error", err)
			continue
		}

		if job.Status == store.JobStatusCompleted {
			// A completed job must never carry a credit. Nothing safe
			// to auto-repair here; flag it for operators.
			o.logger.Error("reconciliation mismatch: refund credit on completed job",
				"job", job.ID, "ledger_entry", entry.ID, "amount", entry.Amount)
			continue
		}

		o.logger.Error("reconciliation mismatch: refund credit without cancelled state, completing transition",
			"job", job.ID, "status", job.Status, "ledger_entry", entry.ID)

		reason := "reconciliation: refund credit already recorded"
		err = o.store.Transition(ctx, nil, job.ID, job.Status, store.JobStatusCancelled, store.TransitionFields{
			Reason:    reason,
			LastError: &reason,
		})
		if err != nil {
			o.logJobError("reconciliation transition failed", job, err)
			continue
		}
		o.emitTransition(job, job.Status, store.JobStatusCancelled, reason, job.RetryCount)
	}
	return nil
}

// reconcileMissingCredits finds cancelled jobs without their refund and
// issues the credit half exactly once.
func (o *Orchestrator) reconcileMissingCredits(ctx context.Context) error {
	jobs, err := o.store.ListCancelledWithoutRefund(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		o.logger.Error("reconciliation mismatch: cancelled job without refund credit, issuing it",
			"job", job.ID, "amount", job.Cost)

		err := o.store.Credit(ctx, nil, job.AccountID, &job.ID, job.Cost,
			store.RefundKey(job.ID), "reconciliation: missing refund for cancelled job")
		if err != nil {
			if err == store.ErrAlreadyApplied {
				continue
			}
			o.logger.Error("reconciliation credit failed", "job", job.ID, "error", err)
			continue
		}

		if o.metrics != nil {
			o.metrics.RefundsIssued.Add(ctx, 1)
		}
		o.emitter.RefundIssued(events.RefundIssued{
			JobID:     job.ID,
			AccountID: job.AccountID,
			Amount:    job.Cost,
			Reason:    "reconciliation",
		})
	}
	return nil
}

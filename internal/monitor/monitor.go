// Package monitor maintains a near-real-time view of which print
// devices can accept work. It is the only writer of printer status.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"printsmart/internal/events"
	"printsmart/internal/observability"
	"printsmart/internal/store"

	"github.com/google/uuid"
)

// Store is the slice of the database layer the monitor needs.
type Store interface {
	ListPrinters(ctx context.Context, activeOnly bool) ([]*store.Printer, error)
	RecordProbeResult(ctx context.Context, id uuid.UUID, status store.PrinterStatus, checkedAt time.Time, consecutiveFailures int) error
	GetJobsByPrinter(ctx context.Context, printerID uuid.UUID, statuses []store.JobStatus) ([]*store.Job, error)
	Transition(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, from, to store.JobStatus, fields store.TransitionFields) error
}

// Config tunes the probe loop.
type Config struct {
	Interval        time.Duration
	LivenessTimeout time.Duration
	ServiceTimeout  time.Duration
	Concurrency     int
}

// Monitor periodically probes every active printer through a bounded
// worker pool and persists the result. On an offline→online flip it
// pushes the printer id onto the recovered channel so the orchestrator
// can re-check retry-eligible jobs without waiting for its next sweep.
type Monitor struct {
	store   Store
	prober  Prober
	emitter events.Emitter
	logger  *slog.Logger
	metrics *observability.Metrics
	cfg     Config

	recovered chan uuid.UUID
	now       func() time.Time
}

func New(s Store, p Prober, emitter events.Emitter, logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = 3 * time.Second
	}
	if cfg.ServiceTimeout <= 0 {
		cfg.ServiceTimeout = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	return &Monitor{
		store:     s,
		prober:    p,
		emitter:   emitter,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		recovered: make(chan uuid.UUID, 64),
		now:       time.Now,
	}
}

// Recovered exposes the fast-path channel consumed by the orchestrator.
func (m *Monitor) Recovered() <-chan uuid.UUID {
	return m.recovered
}

// Run blocks until the context is cancelled, probing on a fixed interval.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	if err := m.Sweep(ctx); err != nil {
		m.logger.Error("probe sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.logger.Error("probe sweep failed", "error", err)
			}
		}
	}
}

// Sweep probes all active printers. A failed probe only updates that
// printer; the sweep continues for all others. Only the registry
// listing itself can fail the sweep.
func (m *Monitor) Sweep(ctx context.Context) error {
	printers, err := m.store.ListPrinters(ctx, true)
	if err != nil {
		return err
	}

	work := make(chan *store.Printer)
	var wg sync.WaitGroup

	for i := 0; i < m.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				m.checkPrinter(ctx, p)
			}
		}()
	}

	for _, p := range printers {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		case work <- p:
		}
	}
	close(work)
	wg.Wait()

	return nil
}

// Probe runs the two-layer check for a single device.
func (m *Monitor) Probe(ctx context.Context, p *store.Printer) store.PrinterStatus {
	if p.Address == "" {
		return store.PrinterStatusUnknown
	}

	if err := m.prober.ProbeLiveness(ctx, p.Address, m.cfg.LivenessTimeout); err != nil {
		m.logger.Debug("liveness probe failed", "printer", p.ID, "error", err)
		return store.PrinterStatusOffline
	}

	if err := m.prober.ProbeService(ctx, p.Address, m.cfg.ServiceTimeout); err != nil {
		m.logger.Debug("service probe failed", "printer", p.ID, "error", err)
		return store.PrinterStatusError
	}

	return store.PrinterStatusOnline
}

func (m *Monitor) checkPrinter(ctx context.Context, p *store.Printer) {
	newStatus := m.Probe(ctx, p)

	failures := 0
	if newStatus != store.PrinterStatusOnline {
		failures = p.ConsecutiveFailures + 1
		if m.metrics != nil {
			m.metrics.ProbeFailures.Add(ctx, 1)
		}
	}

	if err := m.store.RecordProbeResult(ctx, p.ID, newStatus, m.now(), failures); err != nil {
		m.logger.Error("failed to record probe result", "printer", p.ID, "error", err)
		return
	}

	if newStatus == p.Status {
		return
	}

	m.logger.Info("printer status changed",
		"printer", p.ID, "name", p.Name, "from", p.Status, "to", newStatus)
	m.emitter.DeviceStatusChanged(events.DeviceStatusChange{
		PrinterID:  p.ID,
		Name:       p.Name,
		FromStatus: p.Status,
		ToStatus:   newStatus,
		Failures:   failures,
	})

	switch {
	case newStatus == store.PrinterStatusOnline:
		// Wake the orchestrator so retry-eligible jobs for this device
		// are re-checked immediately.
		select {
		case m.recovered <- p.ID:
		default:
			m.logger.Warn("recovered channel full", "printer", p.ID)
		}
	case newStatus == store.PrinterStatusOffline || newStatus == store.PrinterStatusError:
		m.failInFlight(ctx, p, newStatus)
	}
}

// failInFlight moves in-flight (processing) jobs on a dropped device to
// failed; the orchestrator resolves them to retry or refund. Pending
// jobs are left alone: they ride the pending-timeout clock and are
// cancelled with a refund if the device stays down.
func (m *Monitor) failInFlight(ctx context.Context, p *store.Printer, status store.PrinterStatus) {
	jobs, err := m.store.GetJobsByPrinter(ctx, p.ID, []store.JobStatus{store.JobStatusProcessing})
	if err != nil {
		m.logger.Error("failed to list in-flight jobs", "printer", p.ID, "error", err)
		return
	}

	for _, job := range jobs {
		reason := "printer " + p.Name + " went " + string(status)
		err := m.store.Transition(ctx, nil, job.ID, store.JobStatusProcessing, store.JobStatusFailed, store.TransitionFields{
			Reason:    reason,
			LastError: &reason,
		})
		if err != nil {
			if err != store.ErrStaleState {
				m.logger.Error("failed to fail in-flight job", "job", job.ID, "error", err)
			}
			continue
		}
		m.emitter.JobStatusChanged(events.JobStatusChange{
			JobID:      job.ID,
			PrinterID:  p.ID,
			FromStatus: store.JobStatusProcessing,
			ToStatus:   store.JobStatusFailed,
			Reason:     reason,
			RetryCount: job.RetryCount,
		})
	}
}

// Package events fans out lifecycle notifications to external
// collaborators. Emission is asynchronous and fire-and-forget: a slow
// or dead sink must never block the admission path or a sweep.
package events

import (
	"time"

	"printsmart/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventJobStatusChanged    EventType = "job_status_changed"
	EventDeviceStatusChanged EventType = "device_status_changed"
	EventRefundIssued        EventType = "refund_issued"
)

// Envelope is the wire format delivered to webhook sinks.
type Envelope struct {
	Event     EventType   `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type JobStatusChange struct {
	JobID      uuid.UUID       `json:"job_id"`
	PrinterID  uuid.UUID       `json:"printer_id"`
	FromStatus store.JobStatus `json:"from_status"`
	ToStatus   store.JobStatus `json:"to_status"`
	Reason     string          `json:"reason,omitempty"`
	RetryCount int             `json:"retry_count,omitempty"`
}

type DeviceStatusChange struct {
	PrinterID  uuid.UUID           `json:"printer_id"`
	Name       string              `json:"printer_name"`
	FromStatus store.PrinterStatus `json:"from_status"`
	ToStatus   store.PrinterStatus `json:"to_status"`
	Failures   int                 `json:"consecutive_failures"`
}

type RefundIssued struct {
	JobID     uuid.UUID       `json:"job_id"`
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

// Emitter is consumed by the gate, monitor and orchestrator.
type Emitter interface {
	JobStatusChanged(ev JobStatusChange)
	DeviceStatusChanged(ev DeviceStatusChange)
	RefundIssued(ev RefundIssued)
}

// Nop discards all events. Used in tests and when no sinks are configured.
type Nop struct{}

func (Nop) JobStatusChanged(JobStatusChange)       {}
func (Nop) DeviceStatusChanged(DeviceStatusChange) {}
func (Nop) RefundIssued(RefundIssued)              {}

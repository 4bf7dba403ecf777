// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
// The shutdown function should be called on application exit for graceful cleanup.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// Metrics bundles the domain instruments shared by the gate and the
// orchestrator.
type Metrics struct {
	JobsAdmitted  metric.Int64Counter
	JobsCompleted metric.Int64Counter
	JobsCancelled metric.Int64Counter
	JobsRetried   metric.Int64Counter
	RefundsIssued metric.Int64Counter
	ProbeFailures metric.Int64Counter
}

// NewMetrics registers the domain counters on the given meter name.
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.JobsAdmitted, err = meter.Int64Counter("printsmart.jobs.admitted",
		metric.WithDescription("Jobs accepted by the submission gate")); err != nil {
		return nil, err
	}
	if m.JobsCompleted, err = meter.Int64Counter("printsmart.jobs.completed",
		metric.WithDescription("Jobs that finished printing")); err != nil {
		return nil, err
	}
	if m.JobsCancelled, err = meter.Int64Counter("printsmart.jobs.cancelled",
		metric.WithDescription("Jobs cancelled by timeout policy")); err != nil {
		return nil, err
	}
	if m.JobsRetried, err = meter.Int64Counter("printsmart.jobs.retried",
		metric.WithDescription("Failed jobs sent back to pending")); err != nil {
		return nil, err
	}
	if m.RefundsIssued, err = meter.Int64Counter("printsmart.refunds.issued",
		metric.WithDescription("Refund credits written to the ledger")); err != nil {
		return nil, err
	}
	if m.ProbeFailures, err = meter.Int64Counter("printsmart.probes.failures",
		metric.WithDescription("Device probes that did not come back online")); err != nil {
		return nil, err
	}

	return m, nil
}

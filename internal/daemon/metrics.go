package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds sweep-loop metrics using OTEL semantic conventions
type Metrics struct {
	sweeps             metric.Int64Counter
	sweepDuration      metric.Float64Histogram
	resourcesEvaluated metric.Int64Gauge
	historyOperations  metric.Int64Counter
}

// NewMetrics creates the daemon sweep metrics
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("remedian.daemon")

	sweeps, err := meter.Int64Counter(
		"remedian.daemon.sweeps",
		metric.WithDescription("Number of sweep runs"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, err
	}

	sweepDuration, err := meter.Float64Histogram(
		"remedian.daemon.sweep.duration",
		metric.WithDescription("Duration of sweep operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	resourcesEvaluated, err := meter.Int64Gauge(
		"remedian.resources.evaluated",
		metric.WithDescription("Number of resources evaluated in the last sweep"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	historyOperations, err := meter.Int64Counter(
		"remedian.history.operations",
		metric.WithDescription("Number of history store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sweeps:             sweeps,
		sweepDuration:      sweepDuration,
		resourcesEvaluated: resourcesEvaluated,
		historyOperations:  historyOperations,
	}, nil
}

// RecordSweep records a sweep run with status
func (m *Metrics) RecordSweep(ctx context.Context, status string, region string) {
	m.sweeps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("cloud.region", region),
		),
	)
}

// RecordSweepDuration records sweep duration
func (m *Metrics) RecordSweepDuration(ctx context.Context, durationSeconds float64) {
	m.sweepDuration.Record(ctx, durationSeconds)
}

// RecordResourcesEvaluated records the number of resources a sweep examined
func (m *Metrics) RecordResourcesEvaluated(ctx context.Context, count int64, region string) {
	m.resourcesEvaluated.Record(ctx, count,
		metric.WithAttributes(
			attribute.String("cloud.region", region),
		),
	)
}

// RecordHistoryOperation records a history store operation
func (m *Metrics) RecordHistoryOperation(ctx context.Context, operation string, status string) {
	m.historyOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

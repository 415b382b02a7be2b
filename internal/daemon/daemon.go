// Package daemon runs periodic account sweeps: list the buckets, evaluate
// public exposure, remediate what the handler decides needs it. The history
// store records remediations so OnceNotifier can suppress duplicate
// notifications; corrective calls always run, they are idempotent.
package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/remedian/remedian/internal/history"
	"github.com/remedian/remedian/telemetry"
	"github.com/remedian/remedian/types"
)

// Source produces compliance events for one sweep. Satisfied by
// *aws.Sweeper.
type Source interface {
	Sweep(ctx context.Context) ([]types.ComplianceEvent, error)
}

// Handler processes one compliance event. Satisfied by
// *remediator.Handler.
type Handler interface {
	Handle(ctx context.Context, event types.ComplianceEvent) (*types.RemediationResult, error)
}

// Config holds daemon configuration
type Config struct {
	Interval time.Duration
	Region   string
}

// Daemon manages the continuous sweep loop
type Daemon struct {
	source    Source
	handler   Handler
	hist      *history.Store
	logger    *telemetry.Logger
	metrics   *Metrics
	interval  time.Duration
	region    string
	startTime time.Time

	sweepCount      atomic.Int64
	remediatedCount atomic.Int64
}

// New creates a daemon instance
func New(source Source, handler Handler, config Config) (*Daemon, error) {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, err
	}

	return &Daemon{
		source:    source,
		handler:   handler,
		logger:    telemetry.NewLogger("daemon"),
		metrics:   metrics,
		interval:  config.Interval,
		region:    config.Region,
		startTime: time.Now(),
	}, nil
}

// WithHistory attaches a remediation history store. Remediations are
// recorded there so a wrapping OnceNotifier can dedup notifications.
func (d *Daemon) WithHistory(store *history.Store) *Daemon {
	d.hist = store
	return d
}

// Start runs an immediate sweep, then sweeps on the interval until the
// context is canceled
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.WithContext(ctx).Info().
		Dur("interval", d.interval).
		Str("region", d.region).
		Msg("daemon starting")

	d.runSweep(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.WithContext(ctx).Info().Msg("daemon stopping")
			return nil
		case <-ticker.C:
			d.runSweep(ctx)
		}
	}
}

// runSweep performs one full sweep and remediation pass
func (d *Daemon) runSweep(ctx context.Context) {
	started := time.Now()
	d.sweepCount.Add(1)
	d.logger.LogSweepStart(ctx, d.region)

	events, err := d.source.Sweep(ctx)
	if err != nil {
		d.logger.WithContext(ctx).Error().Err(err).Msg("sweep failed")
		d.metrics.RecordSweep(ctx, "error", d.region)
		return
	}

	remediated := 0
	for _, event := range events {
		if d.handleSweepEvent(ctx, event) {
			remediated++
		}
	}

	d.remediatedCount.Add(int64(remediated))
	d.metrics.RecordSweep(ctx, "ok", d.region)
	d.metrics.RecordSweepDuration(ctx, time.Since(started).Seconds())
	d.metrics.RecordResourcesEvaluated(ctx, int64(len(events)), d.region)
	d.logger.LogSweepComplete(ctx, len(events), remediated, time.Since(started).Seconds())
}

// handleSweepEvent runs one event through the handler and reports whether
// it ended in a remediation. An exposed bucket is always remediated, even
// one remediated and re-exposed moments ago; only the notification is
// subject to dedup, inside OnceNotifier.
func (d *Daemon) handleSweepEvent(ctx context.Context, event types.ComplianceEvent) bool {
	result, err := d.handler.Handle(ctx, event)
	if err != nil {
		// Already logged by the handler; the next sweep retries
		return false
	}

	if result.Outcome == types.OutcomeRemediated {
		d.recordHistory(ctx, *result)
		return true
	}
	return false
}

func (d *Daemon) recordHistory(ctx context.Context, result types.RemediationResult) {
	if d.hist == nil {
		return
	}
	err := d.hist.Put(history.Record{
		ResourceID:   result.ResourceID,
		Outcome:      result.Outcome,
		Action:       result.Action,
		RemediatedAt: time.Now(),
	})
	if err != nil {
		d.logger.WithContext(ctx).Warn().Err(err).Msg("history write failed")
		d.metrics.RecordHistoryOperation(ctx, "put", "error")
		return
	}
	d.metrics.RecordHistoryOperation(ctx, "put", "ok")
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status string
	Uptime int64
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(d.startTime).Seconds()),
	}
}

// SweepCount returns total sweeps run
func (d *Daemon) SweepCount() int64 {
	return d.sweepCount.Load()
}

// RemediatedCount returns total resources remediated across sweeps
func (d *Daemon) RemediatedCount() int64 {
	return d.remediatedCount.Load()
}

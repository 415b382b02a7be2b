package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/remedian/remedian/types"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for remediation operations

func (l *Logger) LogEventReceived(ctx context.Context, event types.ComplianceEvent) {
	l.WithContext(ctx).Info().
		Str("resource_id", event.ResourceID).
		Str("resource_type", event.ResourceType).
		Str("status", string(event.Status)).
		Str("rule", event.RuleName).
		Msg("compliance event received")
}

func (l *Logger) LogRemediation(ctx context.Context, result types.RemediationResult) {
	l.WithContext(ctx).Info().
		Str("resource_id", result.ResourceID).
		Str("outcome", string(result.Outcome)).
		Str("action", result.Action).
		Float64("duration_ms", float64(result.Duration.Milliseconds())).
		Msg("remediation completed")
}

func (l *Logger) LogRemediationError(ctx context.Context, resourceID string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("resource_id", resourceID).
		Msg("remediation failed")
}

func (l *Logger) LogNotification(ctx context.Context, n types.Notification) {
	l.WithContext(ctx).Info().
		Str("resource_id", n.ResourceID).
		Str("subject", n.Subject).
		Msg("notification published")
}

func (l *Logger) LogSweepStart(ctx context.Context, region string) {
	l.WithContext(ctx).Info().
		Str("region", region).
		Str("operation", "sweep").
		Msg("starting sweep")
}

func (l *Logger) LogSweepComplete(ctx context.Context, checked, remediated int, duration float64) {
	l.WithContext(ctx).Info().
		Int("resources_checked", checked).
		Int("resources_remediated", remediated).
		Float64("duration_ms", duration).
		Str("operation", "sweep").
		Msg("sweep completed")
}

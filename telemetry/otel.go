// Package telemetry provides logging and OpenTelemetry instrumentation
// for Remedian.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/remedian/remedian/config"
	"github.com/remedian/remedian/types"
)

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Metrics
	handleDuration     metric.Float64Histogram
	remediationsTotal  metric.Int64Counter
	notificationsTotal metric.Int64Counter
	handlerErrors      metric.Int64Counter
}

// ProviderOptions control which exporters are attached.
type ProviderOptions struct {
	// Prometheus attaches a Prometheus reader so daemon mode can
	// serve /metrics via promhttp.
	Prometheus bool
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig, opts ProviderOptions) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res, opts); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		if p.meterProvider != nil {
			_ = p.meterProvider.Shutdown(ctx)
		}
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("remedian")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, popts ProviderOptions) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	if popts.Prometheus {
		reader, err := otelprom.New()
		if err != nil {
			return fmt.Errorf("create prometheus reader: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("remedian")

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.handleDuration, err = p.meter.Float64Histogram(
		"remedian_handle_duration_seconds",
		metric.WithDescription("Duration of compliance event handling"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create handle_duration: %w", err)
	}

	p.remediationsTotal, err = p.meter.Int64Counter(
		"remedian_remediations_total",
		metric.WithDescription("Total compliance events handled, by outcome"),
	)
	if err != nil {
		return fmt.Errorf("create remediations_total: %w", err)
	}

	p.notificationsTotal, err = p.meter.Int64Counter(
		"remedian_notifications_total",
		metric.WithDescription("Total notifications published"),
	)
	if err != nil {
		return fmt.Errorf("create notifications_total: %w", err)
	}

	p.handlerErrors, err = p.meter.Int64Counter(
		"remedian_handler_errors_total",
		metric.WithDescription("Total handler failures"),
	)
	if err != nil {
		return fmt.Errorf("create handler_errors: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name)
}

// RecordHandle records the outcome and duration of one handled event.
func (p *Provider) RecordHandle(ctx context.Context, result types.RemediationResult) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", string(result.Outcome)),
		attribute.String("resource_type", result.ResourceType),
	)
	p.handleDuration.Record(ctx, result.Duration.Seconds(), attrs)
	p.remediationsTotal.Add(ctx, 1, attrs)
	if result.Outcome == types.OutcomeFailed {
		p.handlerErrors.Add(ctx, 1, attrs)
	}
}

// RecordNotification records one published notification.
func (p *Provider) RecordNotification(ctx context.Context) {
	p.notificationsTotal.Add(ctx, 1)
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}
	return nil
}

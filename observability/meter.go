package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/cometik/assessd/logger"
)

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, serviceName string, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(serviceName, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", serviceName,
		"endpoint", cfg.Endpoint,
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds metric instruments for the response pipeline.
type PipelineMetrics struct {
	submissionTotal metric.Int64Counter
	stageTotal      metric.Int64Counter
	stageDuration   metric.Float64Histogram
	activeAttempts  metric.Int64UpDownCounter
	failureTotal    metric.Int64Counter
}

// NewPipelineMetrics creates metric instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	submissionTotal, err := meter.Int64Counter("pipeline.submission.total",
		metric.WithDescription("Total audio submissions accepted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.submission.total counter: %w", err)
	}

	stageTotal, err := meter.Int64Counter("pipeline.stage.total",
		metric.WithDescription("Pipeline stage completions by stage and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.stage.total counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("pipeline.stage.duration",
		metric.WithDescription("Duration of pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.stage.duration histogram: %w", err)
	}

	activeAttempts, err := meter.Int64UpDownCounter("pipeline.attempt.active",
		metric.WithDescription("Number of attempts currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.attempt.active gauge: %w", err)
	}

	failureTotal, err := meter.Int64Counter("pipeline.failure.total",
		metric.WithDescription("Terminal attempt failures by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.failure.total counter: %w", err)
	}

	return &PipelineMetrics{
		submissionTotal: submissionTotal,
		stageTotal:      stageTotal,
		stageDuration:   stageDuration,
		activeAttempts:  activeAttempts,
		failureTotal:    failureTotal,
	}, nil
}

// RecordSubmission counts one accepted submission and marks an attempt active.
func (m *PipelineMetrics) RecordSubmission(ctx context.Context) {
	if m == nil {
		return
	}
	m.submissionTotal.Add(ctx, 1)
	m.activeAttempts.Add(ctx, 1)
}

// RecordStage records a completed pipeline stage.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

// RecordCompletion marks an attempt as no longer active and, on failure,
// counts the terminal error code.
func (m *PipelineMetrics) RecordCompletion(ctx context.Context, errorCode string) {
	if m == nil {
		return
	}
	m.activeAttempts.Add(ctx, -1)
	if errorCode != "" {
		m.failureTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("code", errorCode),
		))
	}
}

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

	"github.com/kbukum/beankit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// The provider is installed globally and should be shut down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		logger.FieldService, config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Metrics holds the instruments recorded around managed-object creation.
type Metrics struct {
	creations metric.Int64Counter
	duration  metric.Float64Histogram
	active    metric.Int64UpDownCounter
	phases    metric.Float64Histogram
}

// NewMetrics creates the creation instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	creations, err := meter.Int64Counter("beankit.creations",
		metric.WithDescription("Total number of managed-object creations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating beankit.creations counter: %w", err)
	}

	duration, err := meter.Float64Histogram("beankit.creation.duration",
		metric.WithDescription("Duration of managed-object creations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating beankit.creation.duration histogram: %w", err)
	}

	active, err := meter.Int64UpDownCounter("beankit.creations.active",
		metric.WithDescription("Number of creations currently in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating beankit.creations.active counter: %w", err)
	}

	phases, err := meter.Float64Histogram("beankit.operation.duration",
		metric.WithDescription("Duration of container operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating beankit.operation.duration histogram: %w", err)
	}

	return &Metrics{
		creations: creations,
		duration:  duration,
		active:    active,
		phases:    phases,
	}, nil
}

// RecordCreationStart increments the in-progress creation count.
func (m *Metrics) RecordCreationStart(ctx context.Context, scope string) {
	m.active.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrScope, scope)))
}

// RecordCreationEnd decrements the in-progress count and records the outcome.
func (m *Metrics) RecordCreationEnd(ctx context.Context, bean, scope string, duration time.Duration, err error) {
	m.active.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrScope, scope)))
	m.creations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrBean, bean),
		attribute.String(AttrScope, scope),
		attribute.String(AttrStatus, status(err)),
	))
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrBean, bean),
		attribute.String(AttrScope, scope),
	))
}

// RecordOperation records a container operation such as pre-instantiation
// or shutdown.
func (m *Metrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	m.phases.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrStatus, status(err)),
	))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

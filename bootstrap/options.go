package bootstrap

import (
	"io"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/logger"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	factoryOpts     []factory.Option
	gracefulTimeout *time.Duration
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider
	summaryOut      io.Writer
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the settings' logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithFactoryOptions adds options applied after the ones derived from the
// settings, such as a type loader or a parent factory.
func WithFactoryOptions(opts ...factory.Option) Option {
	return func(o *appOptions) {
		o.factoryOpts = append(o.factoryOpts, opts...)
	}
}

// WithTracerProvider uses tp for creation spans instead of an OTLP exporter
// built from the settings. The caller owns tp and shuts it down.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *appOptions) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider uses mp for creation metrics instead of an OTLP
// exporter built from the settings. The caller owns mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *appOptions) {
		o.meterProvider = mp
	}
}

// WithSummaryWriter sets where the startup summary is printed. Defaults to
// standard output; io.Discard silences it.
func WithSummaryWriter(w io.Writer) Option {
	return func(o *appOptions) {
		o.summaryOut = w
	}
}

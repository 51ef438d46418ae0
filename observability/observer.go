package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/logger"
)

var _ factory.CreationObserver = (*CreationObserver)(nil)

// CreationObserver opens a span and records metrics around every creation
// performed by a factory. Nested creations become child spans of the object
// that requested them.
type CreationObserver struct {
	tracer  trace.Tracer
	metrics *Metrics
}

type creationKey struct{}

type creation struct {
	start time.Time
	scope string
	span  trace.Span
}

// NewCreationObserver builds an observer on the given providers. A nil
// provider disables that half of the instrumentation.
func NewCreationObserver(tp trace.TracerProvider, mp metric.MeterProvider) (*CreationObserver, error) {
	o := &CreationObserver{}
	if tp != nil {
		o.tracer = tp.Tracer(InstrumentationName)
	}
	if mp != nil {
		m, err := NewMetrics(mp.Meter(InstrumentationName))
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// BeforeCreate starts the creation span and the in-progress gauge.
func (o *CreationObserver) BeforeCreate(ctx context.Context, name, scope string) context.Context {
	c := &creation{start: time.Now(), scope: scope}
	if o.tracer != nil {
		ctx, c.span = o.tracer.Start(ctx, SpanCreate, trace.WithAttributes(
			attribute.String(AttrBean, name),
			attribute.String(AttrScope, scope),
		))
	}
	if o.metrics != nil {
		o.metrics.RecordCreationStart(ctx, scope)
	}
	return context.WithValue(ctx, creationKey{}, c)
}

// AfterCreate ends the span started by BeforeCreate and records the outcome.
func (o *CreationObserver) AfterCreate(ctx context.Context, name string, err error) {
	c, ok := ctx.Value(creationKey{}).(*creation)
	if !ok {
		logger.Debug("creation finished without a matching start", logger.Fields(logger.FieldBean, name))
		return
	}
	elapsed := time.Since(c.start)
	if c.span != nil {
		if err != nil {
			recordError(c.span, err)
		}
		c.span.End()
	}
	if o.metrics != nil {
		o.metrics.RecordCreationEnd(ctx, name, c.scope, elapsed, err)
	}
}

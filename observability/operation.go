package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/beankit/logger"
)

// Operation traces and times a container-wide step such as
// pre-instantiation, component start or shutdown.
type Operation struct {
	tracer  trace.Tracer
	metrics *Metrics
	log     *logger.Logger
}

// NewOperation creates an Operation. Any argument may be nil.
func NewOperation(tp trace.TracerProvider, metrics *Metrics, log *logger.Logger) *Operation {
	op := &Operation{metrics: metrics, log: log}
	if tp != nil {
		op.tracer = tp.Tracer(InstrumentationName)
	}
	if op.log == nil {
		op.log = logger.Get("observability")
	}
	return op
}

// Run executes fn inside a span named spanName and logs its duration.
func (op *Operation) Run(ctx context.Context, spanName string, fn func(context.Context) error) error {
	start := time.Now()
	var span trace.Span
	if op.tracer != nil {
		ctx, span = op.tracer.Start(ctx, spanName, trace.WithAttributes(
			attribute.String(AttrOperation, spanName),
		))
	}

	err := fn(ctx)
	elapsed := time.Since(start)

	if span != nil {
		if err != nil {
			recordError(span, err)
		}
		span.End()
	}
	if op.metrics != nil {
		op.metrics.RecordOperation(ctx, spanName, elapsed, err)
	}

	fields := logger.DurationFields(spanName, elapsed)
	if err != nil {
		op.log.Error("Operation failed", logger.MergeWithError(fields, err))
		return err
	}
	op.log.Debug("Operation completed", fields)
	return nil
}

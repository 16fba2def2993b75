package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/catcher"

// Tracer provides OpenTelemetry tracing for Catcher.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return NewTracerFromProvider(otel.GetTracerProvider())
}

// NewTracerFromProvider creates a tracer from tp.
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

// StartRelaySpan starts a span covering one ingest.
func (t *Tracer) StartRelaySpan(ctx context.Context, tenantID, target string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "catcher.relay",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("catcher.tenant_id", tenantID),
			attribute.String("catcher.target", target),
		),
	)
}

// StartConfirmSpan starts a span covering one subscription handshake.
func (t *Tracer) StartConfirmSpan(ctx context.Context, tenantID, target string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "catcher.confirm",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("catcher.tenant_id", tenantID),
			attribute.String("catcher.target", target),
		),
	)
}

// StartListSpan starts a span covering one page read.
func (t *Tracer) StartListSpan(ctx context.Context, collection string, pageSize int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "catcher.list",
		trace.WithAttributes(
			attribute.String("catcher.collection", collection),
			attribute.Int("catcher.page_size", pageSize),
		),
	)
}

// EndSpan records err, if any, and ends span.
func (t *Tracer) EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

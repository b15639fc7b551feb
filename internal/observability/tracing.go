package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
)

const tracerName = "github.com/MrSnakeDoc/indexnotify"

// Tracer wraps the global OpenTelemetry tracer.
// Spans are no-ops unless the process installs a TracerProvider.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a tracer bound to the global provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

// StartSubmitSpan starts the span covering one endpoint's whole retry sequence.
func (t *Tracer) StartSubmitSpan(ctx context.Context, endpoint string, urlCount int) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "indexnotify.submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("indexnotify.endpoint", endpoint),
			attribute.Int("indexnotify.url_count", urlCount),
		),
	)
}

// EndSubmitSpan records the final result and ends the span.
func (t *Tracer) EndSubmitSpan(span trace.Span, res domain.EndpointResult, attempts int) {
	if t == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("http.status_code", res.StatusCode),
		attribute.Int("indexnotify.attempts", attempts),
		attribute.Bool("indexnotify.ok", res.OK),
	)
	if !res.OK {
		span.SetStatus(codes.Error, "endpoint did not accept submission")
	}
	span.End()
}

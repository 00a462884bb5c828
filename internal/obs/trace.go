package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/hamed0406/webinspector"

// StartSpan opens a span named name and returns log tagged with its trace
// and span ids. When tracing is disabled the span is a no-op and log is
// returned unchanged.
func StartSpan(ctx context.Context, log *zap.Logger, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, *zap.Logger) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	if log == nil {
		log = zap.NewNop()
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ctx, span, log
	}
	return ctx, span, log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

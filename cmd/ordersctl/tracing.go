package main

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// zapSpanExporter writes finished spans to the log.
type zapSpanExporter struct {
	logger *zap.Logger
}

func newZapSpanExporter(logger *zap.Logger) *zapSpanExporter {
	return &zapSpanExporter{logger: logger.Named("trace")}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *zapSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := []zap.Field{
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
			zap.Duration("duration", span.EndTime().Sub(span.StartTime())),
			zap.String("status", span.Status().Code.String()),
		}
		if parent := span.Parent(); parent.IsValid() {
			fields = append(fields, zap.String("parent_span_id", parent.SpanID().String()))
		}
		for _, attr := range span.Attributes() {
			fields = append(fields, zap.String(string(attr.Key), attr.Value.Emit()))
		}
		e.logger.Info(span.Name(), fields...)
	}
	return ctx.Err()
}

// Shutdown implements sdktrace.SpanExporter.
func (e *zapSpanExporter) Shutdown(ctx context.Context) error {
	_ = e.logger.Sync()
	return ctx.Err()
}

package emit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns every event into an OpenTelemetry span named after
// event.Msg. The span carries orders.fetch_id, orders.strategy,
// orders.attempt and every Meta entry as orders.<key>, and is marked as an
// error when Meta["error"] is set.
//
// Spans are ended immediately; events are points in time. Durations measured
// by the fetcher travel as the orders.duration_ms attribute.
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	emitter := emit.NewOTelEmitter(otel.Tracer("orders-stability"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter backed by tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as a span.
func (o *OTelEmitter) Emit(event Event) {
	attrs := make([]attribute.KeyValue, 0, 3+len(event.Meta))
	attrs = append(attrs,
		attribute.String("orders.fetch_id", event.FetchID),
		attribute.String("orders.strategy", event.Strategy),
		attribute.Int("orders.attempt", event.Attempt),
	)
	attrs = append(attrs, metaAttributes(event.Meta)...)

	_, span := o.tracer.Start(context.Background(), event.Msg, trace.WithAttributes(attrs...))
	if msg, ok := event.Meta["error"].(string); ok {
		span.RecordError(errors.New(msg))
		span.SetStatus(codes.Error, msg)
	}
	span.End()
}

// Flush asks the global tracer provider to export buffered spans, if it can.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	if f, ok := otel.GetTracerProvider().(interface {
		ForceFlush(context.Context) error
	}); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// metaAttributes maps Meta to attributes in key order.
func metaAttributes(meta map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := attribute.Key("orders." + k)
		switch v := meta[k].(type) {
		case string:
			attrs = append(attrs, key.String(v))
		case int:
			attrs = append(attrs, key.Int(v))
		case int64:
			attrs = append(attrs, key.Int64(v))
		case float64:
			attrs = append(attrs, key.Float64(v))
		case bool:
			attrs = append(attrs, key.Bool(v))
		case time.Duration:
			attrs = append(attrs, key.Int64(v.Milliseconds()))
		default:
			attrs = append(attrs, key.String(fmt.Sprint(v)))
		}
	}
	return attrs
}

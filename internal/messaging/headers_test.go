package messaging

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier(t *testing.T) {
	msg := &kafka.Message{Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte("order.paid")}}}
	carrier := headerCarrier{msg: msg}

	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")

	if got := carrier.Get("traceparent"); got != "b" {
		t.Errorf("expected overwritten value b, got %q", got)
	}
	if len(msg.Headers) != 2 {
		t.Errorf("expected 2 headers, got %d", len(msg.Headers))
	}
	if got := header(msg, EventTypeHeader); got != "order.paid" {
		t.Errorf("expected event type order.paid, got %q", got)
	}
	if got := carrier.Get("missing"); got != "" {
		t.Errorf("expected empty value for missing header, got %q", got)
	}
}

func TestHeaderCarrier_PropagatesTraceContext(t *testing.T) {
	propagator := propagation.TraceContext{}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	msg := &kafka.Message{}
	propagator.Inject(ctx, headerCarrier{msg: msg})

	extracted := trace.SpanContextFromContext(propagator.Extract(context.Background(), headerCarrier{msg: msg}))
	if extracted.TraceID() != traceID {
		t.Errorf("expected trace id %s, got %s", traceID, extracted.TraceID())
	}
	if !extracted.IsRemote() {
		t.Error("expected extracted span context to be remote")
	}
}

package orders

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	checkouts     metric.Int64Counter
	webhookEvents metric.Int64Counter
	refunds       metric.Int64Counter
}

// newMetrics registers counters on the global meter provider. Instrument
// creation only fails on invalid names, in which case a no-op counter is returned.
func newMetrics() *metrics {
	meter := otel.Meter("github.com/joao-fontenele/shopflow/internal/orders")

	checkouts, _ := meter.Int64Counter("checkouts_total",
		metric.WithDescription("Checkout attempts by outcome"))
	webhookEvents, _ := meter.Int64Counter("payment_webhook_events_total",
		metric.WithDescription("Payment processor notifications by type and outcome"))
	refunds, _ := meter.Int64Counter("refunds_total",
		metric.WithDescription("Refund attempts by outcome"))

	return &metrics{
		checkouts:     checkouts,
		webhookEvents: webhookEvents,
		refunds:       refunds,
	}
}

func (m *metrics) checkout(ctx context.Context, outcome string) {
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) webhookEvent(ctx context.Context, eventType, outcome string) {
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (m *metrics) refund(ctx context.Context, outcome string) {
	m.refunds.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// outcome labels an error by its class for metric attributes.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return errorClass(err)
}

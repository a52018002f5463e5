package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/messaging"
)

// NotificationHandler turns order lifecycle events into buyer emails sent
// through the email relay.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

type email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) Handle(ctx context.Context, msg messaging.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Retrying cannot fix a malformed message, so it is skipped.
		h.logger.Error("dropping malformed order event", "error", err, "key", msg.Key)
		return nil
	}

	eventType := msg.EventType
	if eventType == "" {
		eventType = event.Type
	}

	logger := h.logger.With("order_id", event.OrderID, "event_type", eventType)

	message, ok := composeEmail(eventType, event)
	if !ok {
		logger.Debug("no notification for event")
		return nil
	}
	if message.To == "" {
		logger.Warn("order has no buyer email, skipping notification")
		return nil
	}

	if err := h.sendEmail(ctx, message); err != nil {
		logger.Error("failed to send notification", "error", err)
		return fmt.Errorf("send %s notification: %w", eventType, err)
	}

	logger.Info("notification sent")
	return nil
}

func composeEmail(eventType string, event domain.OrderEvent) (email, bool) {
	amount := event.Amount.StringFixed(2) + " " + event.Currency

	switch eventType {
	case domain.EventOrderPaid:
		return email{
			To:      event.BuyerEmail,
			Subject: "Order Confirmation: " + event.OrderID,
			Body:    fmt.Sprintf("We received your payment of %s. Your order %s is confirmed.", amount, event.OrderID),
		}, true
	case domain.EventOrderCancelled:
		return email{
			To:      event.BuyerEmail,
			Subject: "Payment Failed: " + event.OrderID,
			Body:    fmt.Sprintf("The payment for your order %s did not go through and the order has been cancelled.", event.OrderID),
		}, true
	case domain.EventOrderRefunded:
		return email{
			To:      event.BuyerEmail,
			Subject: "Refund Issued: " + event.OrderID,
			Body:    fmt.Sprintf("A refund of %s has been issued for your order %s.", amount, event.OrderID),
		}, true
	default:
		return email{}, false
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, message email) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

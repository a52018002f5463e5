package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type StripeConfig struct {
	SecretKey         string
	PublishableKey    string
	WebhookSecret     string
	Timeout           time.Duration
	MaxNetworkRetries int64
	// BackendURL overrides the Stripe API base URL.
	BackendURL string
}

// StripeGateway talks to Stripe. Without a secret key every processor call
// fails with domain.ErrPaymentServiceUnavailable.
type StripeGateway struct {
	api            *client.API
	publishableKey string
	webhookSecret  string
	timeout        time.Duration
	logger         *slog.Logger
}

func NewStripeGateway(cfg StripeConfig, logger *slog.Logger) *StripeGateway {
	g := &StripeGateway{
		publishableKey: cfg.PublishableKey,
		webhookSecret:  cfg.WebhookSecret,
		timeout:        cfg.Timeout,
		logger:         logger,
	}

	if cfg.SecretKey == "" {
		logger.Warn("stripe secret key not configured, payments disabled")
		return g
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     newStripeLogger(logger),
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}

	g.api = &client.API{}
	g.api.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	})

	return g
}

func (g *StripeGateway) PublishableKey() string {
	return g.publishableKey
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error) {
	if g.api == nil {
		return nil, domain.ErrPaymentServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("buyer_id", strconv.FormatInt(req.BuyerID, 10))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}

	return &domain.Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	if g.api == nil {
		return domain.ErrPaymentServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return classify("cancel payment intent", err)
	}
	return nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.ProcessorRefund, error) {
	if g.api == nil {
		return nil, domain.ErrPaymentServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Amount:        stripe.Int64(req.AmountMinor),
		Reason:        stripe.String(string(req.Reason)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, classify("create refund", err)
	}

	return &domain.ProcessorRefund{
		ID:        r.ID,
		Succeeded: r.Status == stripe.RefundStatusSucceeded,
	}, nil
}

type intentObject struct {
	ID string `json:"id"`
}

// ParseEvent verifies the Stripe-Signature header against the raw payload and
// only then decodes it. Any failure is reported as domain.ErrInvalidSignature.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*domain.PaymentEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", domain.ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	parsed := &domain.PaymentEvent{
		ID:   event.ID,
		Type: domain.PaymentEventType(event.Type),
	}

	if parsed.Type == domain.PaymentEventSucceeded || parsed.Type == domain.PaymentEventFailed {
		if event.Data == nil {
			return nil, fmt.Errorf("%w: event %s has no data", domain.ErrInvalidSignature, event.ID)
		}
		var obj intentObject
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil || obj.ID == "" {
			return nil, fmt.Errorf("%w: malformed payment intent in event %s", domain.ErrInvalidSignature, event.ID)
		}
		parsed.IntentID = obj.ID
	}

	return parsed, nil
}

// classify maps authentication failures (a bad key is a configuration problem)
// to ErrPaymentServiceUnavailable and everything else to ErrPaymentGateway.
func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s: %s", domain.ErrPaymentServiceUnavailable, op, stripeErr.Msg)
		}
		return fmt.Errorf("%w: %s: %s", domain.ErrPaymentGateway, op, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPaymentGateway, op, err)
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/idempotency"
	"github.com/joao-fontenele/shopflow/internal/inventory"
	"github.com/joao-fontenele/shopflow/internal/logging"
	"github.com/joao-fontenele/shopflow/internal/messaging"
	"github.com/joao-fontenele/shopflow/internal/orders"
	"github.com/joao-fontenele/shopflow/internal/payment"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.App.Name, logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	slog.SetDefault(logger)

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.App.Name, cfg.App.Version, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			logger.Error("failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdownTracer(ctx) }()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.App.Name, cfg.App.Version)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(ctx, cfg.Postgres.URL, telemetry.PoolOptions{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	opts := []orders.Option{
		orders.WithLogger(logger),
		orders.WithCurrency(cfg.Stripe.Currency),
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", "error", err)
		}
		opts = append(opts, orders.WithIdempotency(idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		opts = append(opts, orders.WithPublisher(producer))
	}

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:         cfg.Stripe.SecretKey,
		PublishableKey:    cfg.Stripe.PublishableKey,
		WebhookSecret:     cfg.Stripe.WebhookSecret,
		Timeout:           cfg.Stripe.Timeout,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	}, logger)

	service := orders.NewService(orders.NewOrderRepository(db), gateway, opts...)
	orderHandler := orders.NewHandler(service, logger)
	stockHandler := inventory.NewHandler(inventory.NewInventoryRepository(db), logger)

	authn := auth.NewMiddleware(auth.NewVerifier(cfg.Auth.JWTSecret), auth.NewUserRepository(db), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(authn.Require(orderHandler.HandleCheckout)))
	mux.HandleFunc("POST /webhooks/stripe", telemetry.WithHTTPRoute(orderHandler.HandleStripeWebhook))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(authn.Require(orderHandler.HandleList)))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(authn.Require(orderHandler.HandleGet)))
	mux.HandleFunc("PATCH /admin/orders/{id}/status", telemetry.WithHTTPRoute(authn.Require(orderHandler.HandleUpdateStatus, domain.RoleAdmin)))
	mux.HandleFunc("POST /admin/orders/{id}/refund", telemetry.WithHTTPRoute(authn.Require(orderHandler.HandleRefund, domain.RoleAdmin)))
	mux.HandleFunc("GET /products/{productId}/stock", telemetry.WithHTTPRoute(stockHandler.HandleGetStock))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: cfg.App.HTTPAddr,
		Handler: otelhttp.NewHandler(mux, cfg.App.Name,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting api", "addr", cfg.App.HTTPAddr, "payments_enabled", cfg.PaymentsEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

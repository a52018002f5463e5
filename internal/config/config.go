package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SHOPFLOW_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		Version  string `koanf:"version"`
		HTTPAddr string `koanf:"http_addr"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`

	Postgres struct {
		URL             string        `koanf:"url"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"postgres"`

	Redis struct {
		Addr           string        `koanf:"addr"`
		Password       string        `koanf:"password"`
		DB             int           `koanf:"db"`
		IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
	} `koanf:"redis"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
		GroupID string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Stripe struct {
		SecretKey         string        `koanf:"secret_key"`
		PublishableKey    string        `koanf:"publishable_key"`
		WebhookSecret     string        `koanf:"webhook_secret"`
		Currency          string        `koanf:"currency"`
		Timeout           time.Duration `koanf:"timeout"`
		MaxNetworkRetries int64         `koanf:"max_network_retries"`
	} `koanf:"stripe"`

	Auth struct {
		JWTSecret string `koanf:"jwt_secret"`
	} `koanf:"auth"`

	Telemetry struct {
		Enabled      bool   `koanf:"enabled"`
		OTLPEndpoint string `koanf:"otlp_endpoint"`
	} `koanf:"telemetry"`

	Email struct {
		ServiceURL string `koanf:"service_url"`
		// ListenAddr and Keep configure the development mail relay.
		ListenAddr string `koanf:"listen_addr"`
		Keep       int    `koanf:"keep"`
	} `koanf:"email"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":                   "shopflow",
		"app.version":                "0.1.0",
		"app.http_addr":              ":8081",
		"http.read_timeout":          "10s",
		"http.write_timeout":         "30s",
		"http.shutdown_timeout":      "10s",
		"log.level":                  "info",
		"postgres.max_open_conns":    16,
		"postgres.max_idle_conns":    16,
		"postgres.conn_max_lifetime": "30m",
		"redis.idempotency_ttl":      "24h",
		"kafka.topic":                "order.events",
		"kafka.group_id":             "notification-worker",
		"stripe.currency":            "usd",
		"stripe.timeout":             "15s",
		"stripe.max_network_retries": 2,
		"telemetry.enabled":          true,
		"telemetry.otlp_endpoint":    "localhost:4317",
		"email.listen_addr":          ":8084",
		"email.keep":                 100,
	}
}

// Load layers defaults, an optional YAML file and SHOPFLOW_ environment variables.
// Nested keys use a double underscore: SHOPFLOW_STRIPE__SECRET_KEY -> stripe.secret_key.
// Binaries validate the settings they need; the API calls Validate.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// envValue maps SHOPFLOW_KAFKA__BROKERS to kafka.brokers. List settings are
// comma separated.
func envValue(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, "__", "."))

	if _, ok := listKeys[key]; ok {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}

	return key, value
}

var listKeys = map[string]struct{}{
	"kafka.brokers": {},
}

// Validate checks the settings the API server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr is required"))
	}
	if c.Postgres.URL == "" {
		errs = append(errs, errors.New("postgres.url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Stripe.Timeout <= 0 {
		errs = append(errs, errors.New("stripe.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// PaymentsEnabled reports whether a processor secret key is configured.
func (c Config) PaymentsEnabled() bool {
	return c.Stripe.SecretKey != ""
}

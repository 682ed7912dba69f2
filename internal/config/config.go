package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Pricing policy. Rates are expressed in basis points and amounts in
	// centavos so rounding stays explicit.
	PixDiscountBps       int
	BoletoDiscountBps    int
	CouponDiscountBps    int
	CouponCodes          []string
	MinInstallmentValue  int64
	MaxInstallments      int
	FreeShippingRegional int64
	FreeShippingNational int64

	// Carrier rate aggregator (Melhor Envio).
	MelhorEnvioToken   string
	MelhorEnvioBaseURL string
	ShippingOriginCEP  string
	ShippingTimeout    time.Duration

	// Card/boleto processor.
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	// Operator notifications for manual PIX confirmation.
	OperatorEmail string
	NotifyFrom    string

	CheckoutSessionTTL time.Duration
	IdempotencyTTL     time.Duration
	CartTTL            time.Duration
	QuoteRateLimit     int
	QuoteRateWindow    time.Duration
	WorkerConcurrency  int
	CurrencyCode       string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PixDiscountBps:       parseInt(k.String("PRICING_PIX_DISCOUNT_BPS"), 1000),
		BoletoDiscountBps:    parseInt(k.String("PRICING_BOLETO_DISCOUNT_BPS"), 0),
		CouponDiscountBps:    parseInt(k.String("PRICING_COUPON_DISCOUNT_BPS"), 1000),
		CouponCodes:          splitAndTrim(valueOrDefault(k.String("PRICING_COUPON_CODES"), "ELITE10,RIOSURFCHECK10,RAY10")),
		MinInstallmentValue:  parseInt64(k.String("PRICING_MIN_INSTALLMENT_CENTAVOS"), 1000),
		MaxInstallments:      parseInt(k.String("PRICING_MAX_INSTALLMENTS"), 10),
		FreeShippingRegional: parseInt64(k.String("FREE_SHIPPING_REGIONAL_CENTAVOS"), 19900),
		FreeShippingNational: parseInt64(k.String("FREE_SHIPPING_NATIONAL_CENTAVOS"), 29900),

		MelhorEnvioToken:   k.String("MELHOR_ENVIO_TOKEN"),
		MelhorEnvioBaseURL: valueOrDefault(k.String("MELHOR_ENVIO_BASE_URL"), "https://melhorenvio.com.br/api/v2"),
		ShippingOriginCEP:  valueOrDefault(k.String("SHIPPING_ORIGIN_CEP"), "88010000"),
		ShippingTimeout:    parseDuration(k.String("SHIPPING_TIMEOUT"), "15s"),

		StripeSecretKey:     k.String("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: k.String("STRIPE_WEBHOOK_SECRET"),
		StripeSuccessURL:    k.String("STRIPE_SUCCESS_URL"),
		StripeCancelURL:     k.String("STRIPE_CANCEL_URL"),

		OperatorEmail: k.String("OPERATOR_EMAIL"),
		NotifyFrom:    valueOrDefault(k.String("NOTIFY_FROM"), "pedidos@elitesurfing.com.br"),

		CheckoutSessionTTL: parseDuration(k.String("CHECKOUT_SESSION_TTL"), "2h"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CartTTL:            parseDuration(k.String("CART_TTL"), "168h"),
		QuoteRateLimit:     parseInt(k.String("QUOTE_RATE_LIMIT"), 30),
		QuoteRateWindow:    parseDuration(k.String("QUOTE_RATE_WINDOW"), "1m"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 4),
		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "BRL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

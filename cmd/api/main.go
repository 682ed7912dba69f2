package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/elitesurfing/backend-loja/internal/app"
	"github.com/elitesurfing/backend-loja/internal/cart"
	"github.com/elitesurfing/backend-loja/internal/checkout"
	"github.com/elitesurfing/backend-loja/internal/common"
	"github.com/elitesurfing/backend-loja/internal/config"
	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/events"
	"github.com/elitesurfing/backend-loja/internal/freight"
	"github.com/elitesurfing/backend-loja/internal/health"
	"github.com/elitesurfing/backend-loja/internal/notify"
	"github.com/elitesurfing/backend-loja/internal/obs"
	"github.com/elitesurfing/backend-loja/internal/order"
	"github.com/elitesurfing/backend-loja/internal/payment"
	"github.com/elitesurfing/backend-loja/internal/pricing"
	"github.com/elitesurfing/backend-loja/internal/ratelimit"
	"github.com/elitesurfing/backend-loja/internal/resilience"
	"github.com/elitesurfing/backend-loja/internal/security"
	"github.com/elitesurfing/backend-loja/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "loja")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "loja-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "loja-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	queries := db.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	policy := pricing.Policy{
		PixDiscountBps:       cfg.PixDiscountBps,
		BoletoDiscountBps:    cfg.BoletoDiscountBps,
		CouponDiscountBps:    cfg.CouponDiscountBps,
		CouponCodes:          cfg.CouponCodes,
		MinInstallmentValue:  cfg.MinInstallmentValue,
		MaxInstallments:      cfg.MaxInstallments,
		FreeShippingRegional: cfg.FreeShippingRegional,
		FreeShippingNational: cfg.FreeShippingNational,
	}

	var freightClient freight.Client = &freight.MelhorEnvio{
		Token:          cfg.MelhorEnvioToken,
		BaseURL:        cfg.MelhorEnvioBaseURL,
		OriginCEP:      cfg.ShippingOriginCEP,
		Timeout:        cfg.ShippingTimeout,
		HTTP:           &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Logger:         logger,
		DroppedEntries: obs.FreightEntriesDropped,
	}
	if cfg.MelhorEnvioToken == "" {
		logger.Warn().Msg("MELHOR_ENVIO_TOKEN not set, serving canned shipping quotes")
		freightClient = freight.MockClient{}
	}

	bus := &events.Bus{Store: queries}

	sessions := &checkout.Store{R: redisClient, TTL: cfg.CheckoutSessionTTL}

	cartSvc := &cart.Service{Q: queries, Policy: policy, Sessions: sessions, TTL: cfg.CartTTL}
	cartHandler := &cart.Handler{Svc: cartSvc, Currency: cfg.CurrencyCode}

	quoteSvc := &checkout.QuoteService{
		Freight:      freightClient,
		Policy:       policy,
		Logger:       logger,
		QuotesIssued: obs.FreightQuotesTotal.WithLabelValues("ok"),
	}
	checkoutHandler := &checkout.Handler{
		Store:    sessions,
		Quotes:   quoteSvc,
		CartSvc:  cartSvc,
		Catalog:  queries,
		Validate: validate,
	}

	operator := &notify.Operator{Client: taskClient, Logger: logger, Enqueued: obs.PixAlertsEnqueued}

	stripe := payment.Stripe{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		HTTP: &resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   10 * time.Second,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     resilience.NewBreaker("stripe", 10, 0.5, 30*time.Second, logger),
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
		},
	}
	confirmer := &payment.Confirmer{Q: queries, Events: bus, Logger: logger, OrdersPaid: obs.OrdersPaidTotal}
	webhook := payment.Webhook{
		Provider:  stripe,
		Confirm:   confirmer,
		Replay:    redisClient,
		ReplayTTL: cfg.IdempotencyTTL,
		Logger:    logger,
	}
	paymentHandler := &payment.Handler{Confirm: confirmer}

	orderSvc := &order.Service{
		Store:        order.PgStore{Queries: queries, Pool: pool},
		Sessions:     sessions,
		Policy:       policy,
		Events:       bus,
		Operator:     operator,
		Payments:     stripe,
		Currency:     cfg.CurrencyCode,
		SuccessURL:   cfg.StripeSuccessURL,
		CancelURL:    cfg.StripeCancelURL,
		Logger:       logger,
		OrdersPlaced: obs.OrdersPlacedTotal,
	}
	orderHandler := &order.Handler{Svc: orderSvc, Validate: validate}

	addressHandler := &user.Handler{Svc: &user.Service{Q: queries}, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	quoteLimit := ratelimit.New(limiterStore, int64(cfg.QuoteRateLimit), cfg.QuoteRateWindow)
	quoteLimit.OnError = func(err error) {
		logger.Warn().Err(err).Msg("rate limiter unavailable, failing open")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(userFromHeader)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{db: pool, redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.With(quoteLimit.Middleware).Post("/shipping/calculate", checkoutHandler.Calculate)

		api.Route("/carts", func(c chi.Router) {
			c.Post("/", cartHandler.Create)
			c.Get("/active", cartHandler.GetActive)
			c.Get("/{id}", cartHandler.Get)
			c.Post("/{id}/items", cartHandler.AddItem)
			c.Patch("/{id}/items/{itemId}", cartHandler.UpdateItem)
			c.Delete("/{id}/items/{itemId}", cartHandler.RemoveItem)
			c.Post("/{id}/coupon", cartHandler.ApplyCoupon)
			c.Delete("/{id}/coupon", cartHandler.RemoveCoupon)
		})

		api.Route("/checkout", func(c chi.Router) {
			c.Post("/session", checkoutHandler.StartSession)
			c.Get("/session/{id}", checkoutHandler.GetSession)
			c.Post("/session/{id}/address", checkoutHandler.SetAddress)
			c.Post("/session/{id}/shipping", checkoutHandler.SelectShipping)
			c.Post("/session/{id}/payment", checkoutHandler.ChoosePayment)
		})

		api.Group(func(g chi.Router) {
			g.Use(idem.Middleware)
			g.Post("/pix/create", orderHandler.CreatePix)
			g.Post("/pix/guest/create", orderHandler.CreatePixGuest)
			g.Post("/order/stripe", orderHandler.CreateProcessor)
			g.Post("/order/guest/stripe", orderHandler.CreateProcessorGuest)
		})

		api.Route("/addresses", func(a chi.Router) {
			a.Get("/", addressHandler.List)
			a.Post("/", addressHandler.Create)
			a.Delete("/{id}", addressHandler.Delete)
		})

		api.Route("/admin/orders/{id}", func(a chi.Router) {
			a.Post("/confirm", paymentHandler.ConfirmOrder)
			a.Post("/cancel", paymentHandler.CancelOrder)
		})
	})

	r.Post("/webhooks/stripe", webhook.Handle)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}
	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

// userFromHeader trusts the identity header injected by the upstream
// auth gateway. Requests without it proceed as guests.
func userFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
			r = r.WithContext(common.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

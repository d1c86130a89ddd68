package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/navalha-app/navalha/libs/config"
	"github.com/navalha-app/navalha/libs/db"
	"github.com/navalha-app/navalha/libs/httpx"
	"github.com/navalha-app/navalha/libs/kafkax"
	otelx "github.com/navalha-app/navalha/libs/otel"
	"github.com/navalha-app/navalha/libs/runtime"
	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
	"github.com/navalha-app/navalha/services/booking-service/internal/handlers"
	"github.com/navalha-app/navalha/services/booking-service/internal/metrics"
	"github.com/navalha-app/navalha/services/booking-service/internal/outbox"
	"github.com/navalha-app/navalha/services/booking-service/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	offset, err := config.Int("REGION_UTC_OFFSET_MINUTES", availability.DefaultOffsetMinutes)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	clock := availability.NewFixedOffsetClock(offset)
	suggestions, err := config.Int("SUGGESTION_COUNT", availability.DefaultSuggestions)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	pool, err := db.Open(ctx, dbURL, db.DefaultPoolConfig())
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	outboxRepo := outbox.NewRepository()
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo, clock.Location())
	catalogRepo := storage.NewCatalogRepository(pool)
	svc := booking.NewService(bookingRepo, catalogRepo, clock, logger, bookingMetrics, booking.Config{Suggestions: suggestions})

	brokers := config.String("KAFKA_BROKERS", "")
	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: pollEvery,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if list := kafkax.SplitBrokers(brokers); len(list) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(list, 2*time.Second)})
	}
	publicLimit, limiterCheck, closeLimiter := rateLimiter(logger)
	defer closeLimiter()
	if limiterCheck != nil {
		checks = append(checks, *limiterCheck)
	}
	base := runtime.NewBaseMuxWithReady(checks...)

	handlerTimeout, err := config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Handle("/healthz", base)
	r.Handle("/readyz", base)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handlers.Register(r,
		handlers.NewBookingHandler(svc, logger, clock.Location()),
		handlers.NewCatalogHandler(catalogRepo, logger),
		publicLimit,
	)

	httpHandler := httpx.Chain(r,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After", "X-Request-Id", "X-RateLimit-Remaining"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(handlerTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("booking service configured", "utc_offset_minutes", offset, "suggestions", suggestions)
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
		os.Exit(1)
	}
}

// rateLimiter picks the Redis limiter when REDIS_ADDR is set and the
// in-process one otherwise. RATE_LIMIT_PER_MINUTE=0 disables limiting.
func rateLimiter(logger *slog.Logger) (func(http.Handler) http.Handler, *runtime.ReadyCheck, func()) {
	noop := func() {}
	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		logger.Warn("invalid RATE_LIMIT_PER_MINUTE; using 120", "err", err)
		perMinute = 120
	}
	if perMinute <= 0 {
		return nil, nil, noop
	}

	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", perMinute)
		return httpx.RateLimit(httpx.NewRateLimiter(perMinute, time.Minute), httpx.RateLimitOptions{
			Key:    handlers.ShopClientKey,
			Logger: logger,
		}), nil, noop
	}

	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		logger.Warn("invalid REDIS_DB; using 0", "err", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	rl := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "navalha:rl"))
	logger.Info("rate limiting enabled (redis)", "per_minute", perMinute, "redis_addr", addr)
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	check := &runtime.ReadyCheck{Name: "redis", Optional: failOpen, Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close failed", "err", err)
		}
	}
	return httpx.RateLimit(rl, httpx.RateLimitOptions{
		Key:      handlers.ShopClientKey,
		Logger:   logger,
		FailOpen: failOpen,
	}), check, closeFn
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/conflicts"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/hours"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/policy"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/sweep"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Advisory lock key shared by every replica's sweeper.
const sweepLockKey int64 = 0x5a1075eeb

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "salon-service")
	port, err := config.Port("PORT", "8090")
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

	pol, err := policy.Load(config.String("POLICY_FILE", ""))
	if err != nil {
		logger.Error("booking policy invalid", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	directory := storage.NewDirectory(pool)
	conflictIndex := conflicts.NewIndex(pool, pol.Location)
	outboxRepo := outbox.NewRepository()
	appointments := storage.NewAppointmentRepository(pool, conflictIndex, outboxRepo)
	generator := availability.NewGenerator(hours.NewResolver(directory, pol.Location), conflictIndex, pol)

	gateway, webhooks, err := newPaymentGateway(logger)
	if err != nil {
		logger.Error("payment gateway init failed", "err", err)
		panic(err)
	}
	sender, err := newSender(ctx, logger)
	if err != nil {
		logger.Error("email sender init failed", "err", err)
		panic(err)
	}
	dispatcher := notify.NewDispatcher(appointments, sender, config.String("SALON_NAME", "Salon"), pol.Location, logger)

	reconcileGrace, err := config.Duration("RECONCILE_GRACE", 2*time.Minute)
	if err != nil {
		panic(err)
	}
	publicURL := strings.TrimRight(config.String("PUBLIC_BASE_URL", "http://localhost:"+port), "/")
	manager := booking.NewManager(booking.Deps{
		Store:          appointments,
		Catalog:        directory,
		Generator:      generator,
		Gateway:        gateway,
		Notifier:       dispatcher,
		Metrics:        bookingMetrics,
		Logger:         logger,
		SuccessURL:     config.String("CHECKOUT_SUCCESS_URL", publicURL+"/booking/success?appointment_id={APPOINTMENT_ID}&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:      config.String("CHECKOUT_CANCEL_URL", publicURL+"/booking/cancelled?appointment_id={APPOINTMENT_ID}"),
		ReconcileGrace: reconcileGrace,
	})

	sweepTimeout, err := config.Duration("SWEEP_TIMEOUT", 50*time.Second)
	if err != nil {
		panic(err)
	}
	sweeper, err := sweep.New(manager, func(ctx context.Context, fn func(context.Context) error) (bool, error) {
		return db.WithXactLock(ctx, pool, sweepLockKey, fn)
	}, logger, sweep.Config{
		Schedule: config.String("SWEEP_SCHEDULE", "@every 1m"),
		Timeout:  sweepTimeout,
		Location: pol.Location,
	})
	if err != nil {
		logger.Error("sweeper init failed", "err", err)
		panic(err)
	}
	sweeper.Start(ctx)
	defer func() { <-sweeper.Stop().Done() }()

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	var rateLimitMW httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "salon:rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	var jwks *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		ttl, err := config.Duration("JWKS_CACHE_TTL", 5*time.Minute)
		if err != nil {
			panic(err)
		}
		jwks = auth.NewJWKSClient(url, ttl)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handlers.New(handlers.Config{
		Bookings: manager,
		Webhooks: webhooks,
		Events:   storage.NewProviderEventRepository(pool),
		Tokens:   auth.NewVerifier(config.String("JWT_SECRET", ""), jwks),
		Metrics:  bookingMetrics,
		Logger:   logger,
		Location: pol.Location,
	}).Register(mux)

	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		panic(err)
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "salon")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		panic(err)
	}
	healthSrv := grpcx.NewHealthServer(service)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		if err := healthSrv.Serve(lis, logger); err != nil {
			logger.Error("grpc health server error", "err", err)
		}
	}()
	healthSrv.SetServing("", true)
	healthSrv.SetServing(service, true)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "payments", gatewayName(webhooks))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	healthSrv.SetServing("", false)
	healthSrv.SetServing(service, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	healthSrv.Shutdown(shutdownCtx)
	logger.Info("http server stopped")
}

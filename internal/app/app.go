package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/marketplace/internal/asset"
	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/internal/event"
	handler "github.com/utafrali/marketplace/internal/handler/http"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/repository/postgres"
	rediscache "github.com/utafrali/marketplace/internal/repository/redis"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/internal/session"
	"github.com/utafrali/marketplace/migrations"
	"github.com/utafrali/marketplace/pkg/database"
	"github.com/utafrali/marketplace/pkg/health"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/tracing"
)

const serviceName = "marketplace"

// App wires together all dependencies and runs the marketplace service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	loginLimiter   *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(registry, pool, serviceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryDuration(), logger)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Redis backs the listing page cache. The service runs without it.
	var (
		redisClient *goredis.Client
		pageCache   repository.ListingPageCache
	)
	if cfg.RedisEnabled {
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, listing cache disabled", slog.String("error", err.Error()))
			redisClient = nil
		} else {
			pageCache = rediscache.NewListingPageCache(redisClient, cfg.ListingCacheTTL)
			healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
			logger.Info("listing cache enabled", slog.Duration("ttl", cfg.ListingCacheTTL))
		}
	}

	// Kafka producer. A nil publisher disables domain events.
	var (
		producer  *pkgkafka.Producer
		publisher event.Publisher
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(
			pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers),
			pkgkafka.NewProducerMetrics(registry),
			logger,
		)
		publisher = producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	store, static, err := newAssetStore(ctx, cfg, registry, logger)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, err
	}
	logger.Info("asset store initialized", slog.String("backend", store.Name()))

	mailer := newMailer(cfg, logger)

	// Build the dependency graph.
	codec := auth.NewCodec(cfg.JWTSecret)
	accountRepo := postgres.NewAccountRepository(pool)
	listingRepo := postgres.NewListingRepository(pool)
	reconciler := asset.NewReconciler(store, asset.NewValidator(cfg.AssetMaxBytes, nil), cfg.AssetPlaceholder,
		asset.WithLogger(logger),
	)
	eventProducer := event.NewProducer(publisher, logger)
	sessions := session.NewController(accountRepo, codec, cfg.SessionTTL, logger)

	accountService := service.NewAccountService(accountRepo, reconciler, mailer, sessions, eventProducer, cfg.BaseURL, logger,
		service.WithBcryptCost(cfg.BcryptCost),
		service.WithVerificationTTL(cfg.VerificationTTL),
	)
	listingService := service.NewListingService(listingRepo, accountRepo, reconciler, pageCache, eventProducer, logger)

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst, 10*time.Minute, logger)

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Accounts:    accountService,
		Sessions:    sessions,
		Listings:    listingService,
		Tokens:      codec,
		Health:      healthHandler,
		LoginLimits: loginLimiter,
		Registry:    registry,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		Limits: handler.UploadLimits{
			MaxBody: cfg.MaxUploadBytes,
			MaxFile: cfg.AssetMaxBytes,
		},
		Static: static,
		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		loginLimiter:   loginLimiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go a.loginLimiter.Run(limiterCtx)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer, Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (10s budget; uploads can be slow).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close backing clients.
	if err := closeAll(a.pool, a.redis, a.producer); err != nil {
		a.logger.Error("client close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func closeAll(pool *pgxpool.Pool, rdb *goredis.Client, producer *pkgkafka.Producer) error {
	var errs []error
	if producer != nil {
		if err := producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if pool != nil {
		pool.Close()
	}
	return errors.Join(errs...)
}

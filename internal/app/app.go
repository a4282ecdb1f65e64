// Package app wires together all dependencies and runs the storefront.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Innie4/LaceandLegacy/db"
	"github.com/Innie4/LaceandLegacy/internal/auth"
	"github.com/Innie4/LaceandLegacy/internal/cart"
	"github.com/Innie4/LaceandLegacy/internal/catalog"
	"github.com/Innie4/LaceandLegacy/internal/checkout"
	"github.com/Innie4/LaceandLegacy/internal/config"
	"github.com/Innie4/LaceandLegacy/internal/event"
	handler "github.com/Innie4/LaceandLegacy/internal/handler/http"
	"github.com/Innie4/LaceandLegacy/internal/order"
	"github.com/Innie4/LaceandLegacy/internal/payment"
	paymentmock "github.com/Innie4/LaceandLegacy/internal/payment/mock"
	"github.com/Innie4/LaceandLegacy/internal/search"
	"github.com/Innie4/LaceandLegacy/internal/search/elasticsearch"
	"github.com/Innie4/LaceandLegacy/internal/search/memory"
	"github.com/Innie4/LaceandLegacy/internal/storage/postgres"
	redisrepo "github.com/Innie4/LaceandLegacy/internal/storage/redis"
	"github.com/Innie4/LaceandLegacy/internal/user"
	"github.com/Innie4/LaceandLegacy/pkg/database"
	"github.com/Innie4/LaceandLegacy/pkg/health"
	pkgkafka "github.com/Innie4/LaceandLegacy/pkg/kafka"
	"github.com/Innie4/LaceandLegacy/pkg/middleware"
	"github.com/Innie4/LaceandLegacy/pkg/tracing"
)

// App holds the running components of the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "storefront")

	if err := database.RunMigrations(ctx, pool, db.Migrations, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis for cart storage.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost), slog.Int("port", cfg.RedisPort))

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	eventProducer := event.NewProducer(producer, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Search engine.
	var engine search.Engine
	switch cfg.SearchEngine {
	case config.SearchEngineElasticsearch:
		esEngine, err := elasticsearch.New(cfg.ElasticsearchURL, cfg.SearchIndexName, logger)
		if err != nil {
			producer.Close()
			redisClient.Close()
			pool.Close()
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		engine = esEngine
	default:
		engine = memory.New()
	}
	logger.Info("search engine initialized", slog.String("engine", cfg.SearchEngine))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	checkoutRepo := postgres.NewCheckoutRepository(pool)
	cartRepo := redisrepo.NewCartRepository(redisClient, time.Duration(cfg.CartTTLHours)*time.Hour)

	// Auth.
	jwtManager := auth.NewJWTManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessExpiryMins)*time.Minute,
		time.Duration(cfg.JWTRefreshExpiryHours)*time.Hour,
	)
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
	}

	// Payment provider behind a circuit breaker.
	provider := payment.NewBreakerProvider(
		paymentmock.NewProvider(time.Duration(cfg.PaymentDelayMs)*time.Millisecond),
		payment.BreakerConfig{
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     time.Duration(cfg.CBInterval) * time.Second,
			Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		},
		logger,
	)

	// Services.
	catalogService := catalog.NewService(productRepo, engine, logger)
	userService := user.NewService(userRepo, tokenRepo, jwtManager, eventProducer, logger)
	cartService := cart.NewService(cartRepo, eventProducer, logger, time.Duration(cfg.CartTTLHours)*time.Hour)
	orderService := order.NewService(orderRepo, logger)
	checkoutService := checkout.NewService(checkoutRepo, orderRepo, cartService, provider, eventProducer, logger)

	// The search index is rebuilt from Postgres on startup so the engine
	// never serves a stale or empty index after a restart.
	if count, err := catalogService.ReindexAll(ctx); err != nil {
		logger.Warn("startup reindex failed", slog.String("error", err.Error()))
	} else {
		logger.Info("search index rebuilt", slog.Int("products", count))
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.RouterConfig{
		UserService:       userService,
		CatalogService:    catalogService,
		CartService:       cartService,
		CheckoutService:   checkoutService,
		OrderService:      orderService,
		HealthHandler:     healthHandler,
		TokenValidator:    tokenValidator,
		CORS:              corsCfg,
		Logger:            logger,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: drain HTTP, flush the tracer,
// then close the producer and the data stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Flush pending spans after HTTP drain so in-flight request spans are
	// captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

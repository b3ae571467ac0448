package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/evotags/evotags/internal/auth"
	"github.com/evotags/evotags/internal/bot"
	"github.com/evotags/evotags/internal/config"
	"github.com/evotags/evotags/internal/event"
	handler "github.com/evotags/evotags/internal/handler/http"
	"github.com/evotags/evotags/internal/notify"
	"github.com/evotags/evotags/internal/repository"
	"github.com/evotags/evotags/internal/repository/postgres"
	redisrepo "github.com/evotags/evotags/internal/repository/redis"
	"github.com/evotags/evotags/internal/service"
	"github.com/evotags/evotags/internal/telegram"
	"github.com/evotags/evotags/migrations"
	"github.com/evotags/evotags/pkg/database"
	"github.com/evotags/evotags/pkg/health"
	"github.com/evotags/evotags/pkg/httpclient"
	pkgkafka "github.com/evotags/evotags/pkg/kafka"
	"github.com/evotags/evotags/pkg/middleware"
	"github.com/evotags/evotags/pkg/tracing"
)

// pollSlack is added to the long-poll timeout to get the HTTP client timeout.
const pollSlack = 10 * time.Second

// App wires together all dependencies and runs EVO Tags.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	dispatcher     *service.Dispatcher
	listener       *bot.Listener
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	listenerCancel context.CancelFunc
	listenerDone   sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(registry, pool, config.ServiceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if cfg.MigrateOnStartup {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	// Configure slow query logging.
	if cfg.SlowQueryMS > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Feed cache. Redis is optional; without it every feed read hits
	// Postgres.
	var (
		rdb       *redis.Client
		feedCache repository.FeedCache
	)
	if cfg.FeedCacheEnabled {
		rdb, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			logger.Warn("feed cache disabled, redis unreachable", slog.String("error", err.Error()))
		} else {
			logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
			feedCache = redisrepo.NewFeedCache(rdb, cfg.FeedCacheTTL)
			healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			})
		}
	}

	// Kafka producer. A nil producer turns event publishing into a no-op.
	var producer *pkgkafka.Producer
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	verifier, err := auth.NewVerifier(cfg.AuthMode, cfg.TelegramBotToken, cfg.InitDataMaxAge)
	if err != nil {
		closeAll(pool, rdb, producer)
		return nil, fmt.Errorf("create credential verifier: %w", err)
	}
	if cfg.AuthMode == config.AuthModeDevBypass {
		logger.Warn("credential verification bypassed, do not expose this instance")
	}

	// Telegram Bot API clients. Polling gets its own breaker and a timeout
	// above the long-poll interval.
	breakerMetrics := httpclient.NewBreakerMetrics(registry)
	var (
		botAPI   *telegram.Client
		notifier notify.Notifier = notify.Nop{}
	)
	if cfg.TelegramBotToken != "" {
		botAPI = newTelegramClient(cfg, "telegram", httpclient.DefaultConfig(), logger, breakerMetrics)
		var sendLimit *rate.Limiter
		if cfg.NotifyRatePerSec > 0 {
			sendLimit = rate.NewLimiter(rate.Limit(cfg.NotifyRatePerSec), 1)
		}
		notifier = notify.NewTelegramNotifier(botAPI, cfg.WebAppURL, sendLimit, logger)
	}

	// Build the dependency graph.
	accountRepo := postgres.NewAccountRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	events := event.NewProducer(producer, logger)
	dispatcher := service.NewDispatcher(cfg.NotifyTimeout, logger)

	accountService := service.NewAccountService(accountRepo, reviewRepo, verifier, events, dispatcher, logger)
	feedService := service.NewFeedService(reviewRepo, feedCache, logger)
	reviewService := service.NewReviewService(accountRepo, reviewRepo, verifier, feedService, notifier, events, dispatcher, logger)
	statusService := service.NewStatusService(accountRepo, reviewRepo, verifier, logger)

	routerCfg := handler.RouterConfig{
		ServiceName:    config.ServiceName,
		Accounts:       accountService,
		Reviews:        reviewService,
		Feed:           feedService,
		Statuses:       statusService,
		Health:         healthHandler,
		Registry:       registry,
		RequestTimeout: cfg.RequestTimeout,
		WriteLimit: middleware.RateLimitConfig{
			RPS:   cfg.WriteRateLimitRPS,
			Burst: cfg.WriteRateLimitBurst,
		},
		Logger: logger,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExposedHeaders: []string{middleware.CorrelationHeader},
			Environment:    cfg.Environment,
		},
	}
	if botAPI != nil {
		routerCfg.Photos = botAPI
	}
	if cfg.AdminEnabled() {
		routerCfg.Admin = service.NewAdminService(accountRepo, reviewRepo, feedService, logger)
		logger.Warn("admin endpoints enabled")
	}

	var listener *bot.Listener
	if cfg.BotEnabled() {
		pollCfg := httpclient.DefaultConfig()
		pollCfg.Timeout = cfg.BotPollTimeout + pollSlack
		pollAPI := newTelegramClient(cfg, "telegram-poll", pollCfg, logger, breakerMetrics)
		listener = bot.NewListener(pollAPI, accountService, cfg.WebAppURL, cfg.BotPollTimeout, logger)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.NewRouter(routerCfg),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		dispatcher:     dispatcher,
		listener:       listener,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func newTelegramClient(cfg *config.Config, name string, httpCfg httpclient.Config, logger *slog.Logger, metrics *httpclient.BreakerMetrics) *telegram.Client {
	doer := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig(name),
		logger,
		metrics,
	)
	return telegram.NewClient(doer, cfg.TelegramAPIURL, cfg.TelegramBotToken)
}

func closeAll(pool *pgxpool.Pool, rdb *redis.Client, producer *pkgkafka.Producer) {
	if producer != nil {
		_ = producer.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	pool.Close()
}

// Run starts the HTTP server and the bot listener, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.listener != nil {
		listenerCtx, cancel := context.WithCancel(context.Background())
		a.listenerCancel = cancel
		a.listenerDone.Add(1)
		go func() {
			defer a.listenerDone.Done()
			if err := a.listener.Start(listenerCtx); err != nil {
				a.logger.Error("bot listener error", slog.String("error", err.Error()))
			}
		}()
	} else {
		a.logger.Info("bot listener disabled")
	}

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
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. Bot listener (no new registrations)
// 2. HTTP server (drain in-flight requests)
// 3. Post-commit tasks (notifications and events of drained requests)
// 4. Tracer, Kafka producer, Redis, PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.listenerCancel != nil {
		a.listenerCancel()
		a.listenerDone.Wait()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.dispatcher.Wait(ctx); err != nil {
		a.logger.Error("post-commit tasks did not finish", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

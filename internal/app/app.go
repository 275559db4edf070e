// Package app wires the import pipeline from configuration: storage,
// queue transport, services, HTTP router and background loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"async-import/internal/config"
	"async-import/internal/handler"
	"async-import/internal/importer"
	"async-import/internal/importers/users"
	"async-import/internal/infrastructure/database"
	"async-import/internal/logger"
	"async-import/internal/metrics"
	"async-import/internal/middleware"
	"async-import/internal/parser"
	"async-import/internal/progress"
	"async-import/internal/queue"
	"async-import/internal/repository"
	"async-import/internal/service"
	"async-import/internal/storage"
	"async-import/internal/validator"
)

const (
	poolStatsInterval = 15 * time.Second
	// localTaskTimeout matches asynq's default per-task timeout.
	localTaskTimeout = 30 * time.Minute
)

// App holds the wired components. Build it with New and release it with Close.
type App struct {
	cfg *config.Config

	pool  *pgxpool.Pool
	redis *redis.Client

	asynqClient *asynq.Client
	local       *queue.LocalQueue
	queue       service.Queue

	publisher *progress.RedisObserver

	Tasks      *repository.PostgresTaskRepository
	ErrorLogs  *repository.PostgresErrorLogRepository
	Store      *storage.LocalStore
	Tracker    *progress.Tracker
	Retry      *service.RetryCoordinator
	Dispatcher *service.Dispatcher
	Batches    *service.BatchProcessor
	Cleaner    *service.Cleaner
	Imports    *service.ImportService
}

// New connects to Postgres (and Redis for the asynq backend), applies
// migrations when enabled and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL()); err != nil {
			return nil, err
		}
	}

	pool, err := database.NewPostgres(ctx, database.PoolConfig{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		Database:          cfg.DBName,
		SSLMode:           cfg.DBSSLMode,
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &App{cfg: cfg, pool: pool}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("open upload storage: %w", err)
	}
	a.Store = store

	observers := []progress.Observer{progress.LogObserver{}, metrics.ProgressObserver{}}
	switch cfg.QueueBackend {
	case config.QueueBackendAsynq:
		redisCfg := database.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		a.redis, err = database.NewRedis(ctx, redisCfg)
		if err != nil {
			return err
		}
		a.asynqClient = asynq.NewClient(redisCfg.AsynqOpt())
		a.queue = queue.NewAsynqQueue(a.asynqClient, cfg.QueueName)
		if cfg.ProgressChannel != "" {
			a.publisher = progress.NewRedisObserver(a.redis, cfg.ProgressChannel, 0)
			observers = append(observers, a.publisher)
		}
	case config.QueueBackendLocal:
		a.local = queue.NewLocalQueue(cfg.WorkerPoolSize, localTaskTimeout)
		a.queue = a.local
	default:
		return fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}

	v := validator.NewValidator()
	parsers := parser.NewDefaultRegistry()
	handlers := importer.NewRegistry(users.NewHandler(v, cfg.BatchSize))

	a.Tasks = repository.NewPostgresTaskRepository(a.pool)
	a.ErrorLogs = repository.NewPostgresErrorLogRepository(a.pool)
	a.Tracker = progress.NewTracker(progress.WithObservers(observers...))

	a.Retry = service.NewRetryCoordinator(a.Tasks, a.queue, cfg.RetryBaseDelay)
	a.Dispatcher = service.NewDispatcher(a.Tasks, parsers, handlers, a.Store, a.queue, a.Tracker, a.Retry)
	a.Batches = service.NewBatchProcessor(a.Tasks, a.ErrorLogs, repository.NewPgxTransactor(a.pool),
		handlers, a.Tracker, a.Retry)
	a.Cleaner = service.NewCleaner(a.Tasks, a.ErrorLogs, a.Store)
	a.Imports = service.NewImportService(a.Tasks, a.ErrorLogs, parsers, handlers, a.Store, a.queue,
		a.Tracker, v, cfg.DefaultMaxRetries)

	if a.local != nil {
		a.local.Bind(a.Dispatcher, a.Batches)
	}

	logger.Info("import pipeline ready",
		slog.String("queue_backend", cfg.QueueBackend),
		slog.String("upload_dir", a.Store.Dir()),
		slog.Any("entities", handlers.Entities()),
	)
	return nil
}

// Router builds the HTTP API.
func (a *App) Router() *gin.Engine {
	checks := map[string]handler.CheckFunc{"postgres": database.PostgresCheck(a.pool)}
	if a.redis != nil {
		checks["redis"] = database.RedisCheck(a.redis)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.AccessLog())

	handler.NewHealthHandler(checks).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.NewImportHandler(a.Imports).RegisterRoutes(router.Group("/api/v1"))
	return router
}

// ServeOptions selects the loops RunServer starts next to the HTTP server.
type ServeOptions struct {
	// Worker consumes queue messages in this process. The local backend
	// always consumes in-process.
	Worker bool
}

// RunServer serves HTTP until ctx is done, together with the background
// loops, and shuts everything down when any of them fails.
func (a *App) RunServer(ctx context.Context, opts ServeOptions) error {
	var worker *queue.Worker
	if opts.Worker && a.asynqClient != nil {
		var err error
		if worker, err = a.newWorker(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         ":" + a.cfg.ServerPort,
		Handler:      a.Router(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}
	g.Go(func() error {
		logger.Info("starting server", slog.String("port", a.cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if worker != nil {
		g.Go(func() error { return worker.Run(ctx) })
	}
	a.goBackground(ctx, g, opts.Worker || a.local != nil)

	return g.Wait()
}

// RunWorker consumes queue messages until ctx is done. It needs the asynq
// backend; the local backend consumes inside the server process.
func (a *App) RunWorker(ctx context.Context) error {
	if a.asynqClient == nil {
		return fmt.Errorf("queue backend %q has no standalone worker; use serve", a.cfg.QueueBackend)
	}
	worker, err := a.newWorker()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(ctx) })
	a.goBackground(ctx, g, true)
	return g.Wait()
}

func (a *App) newWorker() (*queue.Worker, error) {
	mux := queue.NewServeMux(a.Dispatcher, a.Batches, a.Cleaner)
	return queue.NewWorker(queue.WorkerConfig{
		Redis:             database.RedisConfig{Addr: a.cfg.RedisAddr, Password: a.cfg.RedisPassword, DB: a.cfg.RedisDB}.AsynqOpt(),
		Queue:             a.cfg.QueueName,
		Concurrency:       a.cfg.WorkerPoolSize,
		CleanupCron:       a.cfg.CleanupCron,
		CleanupDaysToKeep: a.cfg.CleanupDaysToKeep,
		ShutdownTimeout:   a.cfg.ShutdownTimeout,
	}, mux)
}

// goBackground starts pool stats collection, progress publishing and, for
// consuming processes, the retry sweep.
func (a *App) goBackground(ctx context.Context, g *errgroup.Group, consuming bool) {
	stats := metrics.NewPoolStatsCollector(a.pool)
	stats.Start(poolStatsInterval)
	g.Go(func() error {
		<-ctx.Done()
		stats.Stop()
		return nil
	})

	if a.publisher != nil {
		g.Go(func() error {
			a.publisher.Run(ctx)
			if dropped := a.publisher.Dropped(); dropped > 0 {
				logger.Warn("progress events dropped", slog.Int64("count", dropped))
			}
			return nil
		})
	}

	if consuming && a.cfg.RetrySweepInterval > 0 {
		g.Go(func() error {
			a.Retry.RunSweeper(ctx, a.cfg.RetrySweepInterval)
			return nil
		})
	}
}

// Close releases connections and stops the local queue.
func (a *App) Close() {
	if a.local != nil {
		a.local.Close()
	}
	if a.asynqClient != nil {
		if err := a.asynqClient.Close(); err != nil {
			logger.Warn("close queue client", logger.Err(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("close redis client", logger.Err(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

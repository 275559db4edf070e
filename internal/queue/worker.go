package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"async-import/internal/logger"
	"async-import/internal/service"
)

// StartHandler consumes start messages.
type StartHandler interface {
	HandleStart(ctx context.Context, msg service.StartMessage) error
}

// BatchHandler consumes batch messages.
type BatchHandler interface {
	Process(ctx context.Context, msg service.BatchMessage) error
}

// Cleaner runs retention cleanup.
type Cleaner interface {
	CleanupOldTasks(ctx context.Context, daysToKeep int) (int, error)
}

// NewServeMux routes the pipeline task types to their handlers. A malformed
// payload is never redelivered.
func NewServeMux(starts StartHandler, batches BatchHandler, cleaner Cleaner) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TypeStart, func(ctx context.Context, t *asynq.Task) error {
		var msg service.StartMessage
		if err := decode(t, &msg); err != nil {
			return err
		}
		return starts.HandleStart(ctx, msg)
	})

	mux.HandleFunc(TypeBatch, func(ctx context.Context, t *asynq.Task) error {
		var msg service.BatchMessage
		if err := decode(t, &msg); err != nil {
			return err
		}
		return batches.Process(ctx, msg)
	})

	mux.HandleFunc(TypeCleanup, func(ctx context.Context, t *asynq.Task) error {
		var p CleanupPayload
		if err := decode(t, &p); err != nil {
			return err
		}
		if _, err := cleaner.CleanupOldTasks(ctx, p.DaysToKeep); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		return nil
	})

	return mux
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Redis       asynq.RedisConnOpt
	Queue       string
	Concurrency int
	// CleanupCron schedules TypeCleanup tasks; empty disables the schedule.
	CleanupCron       string
	CleanupDaysToKeep int
	ShutdownTimeout   time.Duration
}

// Worker runs the asynq server and the cleanup scheduler.
type Worker struct {
	cfg       WorkerConfig
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

// NewWorker creates a Worker serving mux.
func NewWorker(cfg WorkerConfig, mux *asynq.ServeMux) (*Worker, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	server := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{cfg.Queue: 1},
		RetryDelayFunc:  asynq.DefaultRetryDelayFunc,
		ShutdownTimeout: cfg.ShutdownTimeout,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("queue task failed",
				slog.String("task_type", task.Type()),
				slog.Int("retried", retried),
				slog.Int("max_retry", maxRetry),
				logger.Err(err),
			)
		}),
		Logger:   asynqLogger{},
		LogLevel: asynq.WarnLevel,
	})

	w := &Worker{cfg: cfg, server: server, mux: mux}
	if cfg.CleanupCron != "" {
		task, err := NewCleanupTask(cfg.CleanupDaysToKeep)
		if err != nil {
			return nil, err
		}
		w.scheduler = asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   asynqLogger{},
			LogLevel: asynq.WarnLevel,
		})
		if _, err := w.scheduler.Register(cfg.CleanupCron, task, asynq.Queue(cfg.Queue), asynq.MaxRetry(0)); err != nil {
			return nil, fmt.Errorf("register cleanup schedule %q: %w", cfg.CleanupCron, err)
		}
	}
	return w, nil
}

// Run serves until ctx is done, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("start cleanup scheduler: %w", err)
		}
	}
	logger.Info("queue worker started",
		slog.String("queue", w.cfg.Queue),
		slog.Int("concurrency", w.cfg.Concurrency),
		slog.String("cleanup_cron", w.cfg.CleanupCron),
	)

	<-ctx.Done()

	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	logger.Info("queue worker stopped")
	return nil
}

// asynqLogger routes asynq's internal logs to the application logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logger.WithComponent("asynq").Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...any)  { logger.WithComponent("asynq").Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...any)  { logger.WithComponent("asynq").Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...any) { logger.WithComponent("asynq").Error(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...any) { logger.Fatal(fmt.Sprint(args...), slog.String("component", "asynq")) }

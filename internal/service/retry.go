package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"async-import/internal/domain"
	"async-import/internal/logger"
	"async-import/internal/metrics"
	"async-import/internal/repository"
)

const (
	// DefaultRetryBaseDelay is the backoff unit: retry k waits 2^k units.
	DefaultRetryBaseDelay = time.Minute

	// maxBackoffShift keeps the backoff from overflowing time.Duration.
	maxBackoffShift = 20

	sweepBatchLimit = 100
)

// RetryCoordinator decides what happens to a task after a task-level failure.
type RetryCoordinator struct {
	tasks repository.TaskRepository
	queue Queue
	base  time.Duration
	now   func() time.Time
}

// NewRetryCoordinator creates a RetryCoordinator. A base of 0 selects
// DefaultRetryBaseDelay.
func NewRetryCoordinator(tasks repository.TaskRepository, queue Queue, base time.Duration) *RetryCoordinator {
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}
	return &RetryCoordinator{
		tasks: tasks,
		queue: queue,
		base:  base,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Backoff returns the delay before retry number retryCount+1.
func (c *RetryCoordinator) Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxBackoffShift {
		retryCount = maxBackoffShift
	}
	return c.base << uint(retryCount)
}

// HandleFailure marks the task FAILED with cause and, when the failure is
// retryable and the budget allows, schedules a delayed retry.
func (c *RetryCoordinator) HandleFailure(ctx context.Context, task *domain.Task, cause error) error {
	log := logger.WithTaskID(task.ID)
	message := cause.Error()
	retryable := domain.IsRetryable(cause)
	now := c.now()

	applied, err := c.tasks.Fail(ctx, task.ID, message, retryable, now)
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	if !applied {
		// Already FAILED when the start path began; refresh the error only.
		if err := c.tasks.RecordError(ctx, task.ID, message, retryable, now); err != nil {
			return fmt.Errorf("record task error: %w", err)
		}
	}

	current, err := c.tasks.Get(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("reload failed task: %w", err)
	}
	if current == nil || current.Status != domain.TaskStatusFailed {
		log.Warn("failure not recorded, task left its failable state",
			slog.String("error", message))
		return nil
	}
	if applied {
		metrics.ObserveTaskStatus(current.Entity, string(domain.TaskStatusFailed))
		if task.Status == domain.TaskStatusProcessing {
			metrics.EndTask(current.Entity)
		}
	}

	if !retryable {
		log.Error("import task failed permanently", slog.String("error", message))
		return nil
	}
	if !current.CanRetry() {
		log.Error("import task failed, retries exhausted",
			slog.String("error", message),
			slog.Int("retry_count", current.RetryCount),
			slog.Int("max_retries", current.MaxRetries),
		)
		return nil
	}

	delay := c.Backoff(current.RetryCount)
	msg := StartMessage{TaskID: current.ID, Retry: true, Attempt: current.RetryCount}
	if err := c.queue.EnqueueStart(ctx, msg, delay); err != nil {
		// The sweep promotes the task once the backoff has elapsed.
		log.Warn("enqueue retry failed, leaving task for sweep", logger.Err(err))
		return nil
	}
	metrics.ObserveRetryScheduled(current.Entity)
	log.Info("import task retry scheduled",
		slog.String("error", message),
		slog.Int("attempt", current.RetryCount+1),
		slog.Duration("delay", delay),
	)
	return nil
}

// Promote moves a FAILED task back to PENDING for the retry described by msg.
// It returns false for stale or duplicate retry messages.
func (c *RetryCoordinator) Promote(ctx context.Context, msg StartMessage) (bool, error) {
	ok, err := c.tasks.ScheduleRetry(ctx, msg.TaskID, msg.Attempt, c.now())
	if err != nil {
		return false, fmt.Errorf("schedule retry: %w", err)
	}
	return ok, nil
}

// SweepDue promotes FAILED tasks whose backoff has elapsed and re-sends start
// messages for PENDING tasks that have waited longer than one backoff unit.
// Start is idempotent, so re-sent messages for running tasks are harmless.
// It returns the number of start messages sent.
func (c *RetryCoordinator) SweepDue(ctx context.Context) (int, error) {
	now := c.now()
	sent := 0

	retryable, err := c.tasks.FindRetryable(ctx, sweepBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("find retryable tasks: %w", err)
	}
	for _, task := range retryable {
		if task.LastErrorTime != nil && task.LastErrorTime.Add(c.Backoff(task.RetryCount)).After(now) {
			continue
		}
		ok, err := c.tasks.ScheduleRetry(ctx, task.ID, task.RetryCount, now)
		if err != nil {
			return sent, fmt.Errorf("schedule retry for %s: %w", task.ID, err)
		}
		if !ok {
			continue
		}
		metrics.ObserveRetryScheduled(task.Entity)
		if err := c.queue.EnqueueStart(ctx, StartMessage{TaskID: task.ID}, 0); err != nil {
			return sent, fmt.Errorf("enqueue start for %s: %w", task.ID, err)
		}
		sent++
	}

	pending, err := c.tasks.FindPending(ctx, sweepBatchLimit)
	if err != nil {
		return sent, fmt.Errorf("find pending tasks: %w", err)
	}
	for _, task := range pending {
		if task.UpdatedAt.Add(c.base).After(now) {
			continue
		}
		if err := c.queue.EnqueueStart(ctx, StartMessage{TaskID: task.ID}, 0); err != nil {
			return sent, fmt.Errorf("enqueue start for %s: %w", task.ID, err)
		}
		sent++
	}

	if sent > 0 {
		logger.Info("retry sweep sent start messages", slog.Int("count", sent))
	}
	return sent, nil
}

// RunSweeper calls SweepDue every interval until ctx is done.
func (c *RetryCoordinator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.SweepDue(ctx); err != nil {
				logger.Warn("retry sweep failed", logger.Err(err))
			}
		}
	}
}

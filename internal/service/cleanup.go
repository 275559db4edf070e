package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"async-import/internal/domain"
	"async-import/internal/logger"
	"async-import/internal/repository"
)

// Cleaner removes old tasks together with their files and error logs.
type Cleaner struct {
	tasks   repository.TaskRepository
	errLogs repository.ErrorLogRepository
	store   FileStore
	now     func() time.Time
}

// NewCleaner creates a Cleaner.
func NewCleaner(tasks repository.TaskRepository, errLogs repository.ErrorLogRepository, store FileStore) *Cleaner {
	return &Cleaner{
		tasks:   tasks,
		errLogs: errLogs,
		store:   store,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CleanupOldTasks deletes tasks created more than daysToKeep days ago that are
// not PROCESSING. Tasks that cannot be removed are logged and skipped. It
// returns the number of tasks deleted.
func (c *Cleaner) CleanupOldTasks(ctx context.Context, daysToKeep int) (int, error) {
	if daysToKeep <= 0 {
		return 0, fmt.Errorf("%w: days to keep must be positive, got %d", domain.ErrValidationFailed, daysToKeep)
	}

	unlock, err := c.store.Lock()
	if err != nil {
		return 0, fmt.Errorf("lock upload dir: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("release cleanup lock failed", logger.Err(err))
		}
	}()

	cutoff := c.now().AddDate(0, 0, -daysToKeep)
	tasks, err := c.tasks.FindOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := c.remove(ctx, task); err != nil {
			logger.WithTaskID(task.ID).Warn("cleanup of task failed", logger.Err(err))
			continue
		}
		deleted++
	}

	logger.Info("old import tasks cleaned up",
		slog.Int("deleted", deleted),
		slog.Int("candidates", len(tasks)),
		slog.Time("cutoff", cutoff),
	)
	return deleted, nil
}

func (c *Cleaner) remove(ctx context.Context, task *domain.Task) error {
	if err := c.store.Delete(task.File); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if _, err := c.errLogs.DeleteByTaskID(ctx, task.ID); err != nil {
		return err
	}
	return c.tasks.Delete(ctx, task.ID)
}

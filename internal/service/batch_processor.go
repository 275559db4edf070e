package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"async-import/internal/domain"
	"async-import/internal/importer"
	"async-import/internal/logger"
	"async-import/internal/metrics"
	"async-import/internal/repository"
)

// BatchProcessor imports one batch of rows in a single unit of work.
type BatchProcessor struct {
	tasks    repository.TaskRepository
	errLogs  repository.ErrorLogRepository
	tx       repository.Transactor
	handlers *importer.Registry
	tracker  ProgressTracker
	retry    *RetryCoordinator
	now      func() time.Time
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(
	tasks repository.TaskRepository,
	errLogs repository.ErrorLogRepository,
	tx repository.Transactor,
	handlers *importer.Registry,
	tracker ProgressTracker,
	retry *RetryCoordinator,
) *BatchProcessor {
	return &BatchProcessor{
		tasks:    tasks,
		errLogs:  errLogs,
		tx:       tx,
		handlers: handlers,
		tracker:  tracker,
		retry:    retry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process imports msg's rows. Row failures are logged and counted; a failure
// of the batch itself fails the task and hands it to the RetryCoordinator.
func (p *BatchProcessor) Process(ctx context.Context, msg BatchMessage) error {
	log := logger.WithTaskID(msg.TaskID)

	task, err := p.tasks.Get(ctx, msg.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		log.Warn("batch skipped", logger.Err(domain.ErrTaskNotFound))
		return nil
	}
	if task.Status != domain.TaskStatusProcessing {
		log.Info("batch skipped, task is not processing", slog.String("status", string(task.Status)))
		metrics.ObserveBatch(task.Entity, metrics.BatchStale, 0, 0, 0)
		return nil
	}
	if msg.Attempt != task.RetryCount {
		log.Info("batch skipped, stale attempt",
			slog.Int("attempt", msg.Attempt), slog.Int("retry_count", task.RetryCount))
		metrics.ObserveBatch(task.Entity, metrics.BatchStale, 0, 0, 0)
		return nil
	}

	h, err := p.handlers.Get(task.Entity)
	if err != nil {
		return p.fail(ctx, task, msg, err)
	}

	timer := metrics.NewTimer()
	updated, counts, outcome, err := p.apply(ctx, task, h, msg)
	if err != nil {
		return p.fail(ctx, task, msg, err)
	}
	if updated == nil {
		metrics.ObserveBatch(task.Entity, outcome, 0, 0, 0)
		log.Info("batch skipped", slog.String("outcome", outcome),
			slog.Int("start_line", msg.StartLine), slog.Int("end_line", msg.EndLine))
		return nil
	}

	metrics.ObserveBatch(updated.Entity, metrics.BatchApplied, timer.Seconds(), counts.Success, counts.Failed)
	p.tracker.UpdateProgress(updated, updated.ProcessCount, updated.SuccessCount, updated.FailCount, true)

	log.Debug("batch applied",
		slog.Int("start_line", msg.StartLine),
		slog.Int("end_line", msg.EndLine),
		slog.Int("processed", updated.ProcessCount),
		slog.Int("total", updated.TotalCount),
	)

	if updated.IsDone() {
		p.finish(ctx, updated)
	}
	return nil
}

// apply runs the rows inside one transaction. It returns a nil task when the
// batch was a duplicate or the task left PROCESSING meanwhile.
func (p *BatchProcessor) apply(ctx context.Context, task *domain.Task, h importer.Handler, msg BatchMessage) (*domain.Task, repository.BatchCounts, string, error) {
	var none repository.BatchCounts

	uow, err := p.tx.Begin(ctx)
	if err != nil {
		return nil, none, "", err
	}
	defer uow.Rollback(ctx)

	claimed, err := p.tasks.ClaimBatch(ctx, uow, task.ID, msg.Attempt, msg.StartLine)
	if err != nil {
		return nil, none, "", err
	}
	if !claimed {
		return nil, none, metrics.BatchDuplicate, nil
	}

	counts := repository.BatchCounts{Processed: len(msg.Rows)}
	for i, raw := range msg.Rows {
		line := msg.StartLine + i
		rowErr, err := p.importRow(ctx, uow, task, h, raw, line)
		if err != nil {
			return nil, none, "", err
		}
		if rowErr == "" {
			counts.Success++
			continue
		}
		counts.Failed++
		last := fmt.Sprintf("line %d: %s", line, rowErr)
		counts.LastError = &last
	}

	updated, err := p.tasks.ApplyBatch(ctx, uow, task.ID, msg.Attempt, counts, p.now())
	if err != nil {
		return nil, none, "", err
	}
	if updated == nil {
		return nil, none, metrics.BatchStale, nil
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, none, "", err
	}
	return updated, counts, metrics.BatchApplied, nil
}

// importRow returns the row failure message, or "" on success. The error
// return is reserved for failures of the unit of work itself.
func (p *BatchProcessor) importRow(ctx context.Context, uow repository.UnitOfWork, task *domain.Task, h importer.Handler, raw importer.Row, line int) (string, error) {
	log := logger.WithTaskID(task.ID)

	row, err := preprocess(h, raw)
	if err != nil {
		return p.rowFailed(ctx, uow, task, line, err.Error(), raw, nil)
	}

	res := validate(ctx, h, row, line)
	if res.HasWarnings() {
		log.Warn("row validation warnings", slog.Int("line", line), slog.String("warnings", res.WarningMessage()))
	}
	if !res.IsValid() {
		return p.rowFailed(ctx, uow, task, line, res.ErrorMessage(), raw, row)
	}

	err = uow.Savepoint(ctx, func(db repository.DBTX) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("import panicked: %v", r)
			}
		}()
		return h.Import(ctx, db, row, task)
	})
	if err != nil {
		return p.rowFailed(ctx, uow, task, line, err.Error(), raw, row)
	}
	return "", nil
}

func (p *BatchProcessor) rowFailed(ctx context.Context, db repository.DBTX, task *domain.Task, line int, message string, raw, row importer.Row) (string, error) {
	entry := &domain.ErrorLog{
		TaskID:    task.ID,
		Entity:    task.Entity,
		Line:      line,
		Error:     message,
		RawRow:    raw,
		NewRow:    row,
		Attempt:   task.RetryCount,
		CreatedAt: p.now(),
	}
	if err := p.errLogs.Create(ctx, db, entry); err != nil {
		return "", fmt.Errorf("write error log for line %d: %w", line, err)
	}
	return message, nil
}

func (p *BatchProcessor) finish(ctx context.Context, task *domain.Task) {
	log := logger.WithTaskID(task.ID)

	ok, err := p.tasks.Complete(ctx, task.ID, p.now())
	if err != nil {
		log.Error("complete task failed", logger.Err(err))
		return
	}
	if !ok {
		return
	}
	summary := p.tracker.StopTracking(task)
	metrics.EndTask(task.Entity)
	metrics.ObserveTaskCompletion(task.Entity, summary.Duration.Seconds())
	log.Info("import task completed",
		slog.String("entity", task.Entity),
		slog.Int("total", task.TotalCount),
		slog.Int("success", task.SuccessCount),
		slog.Int("failed", task.FailCount),
		slog.Duration("duration", summary.Duration),
		slog.Float64("avg_speed", summary.AverageSpeed),
	)
}

func (p *BatchProcessor) fail(ctx context.Context, task *domain.Task, msg BatchMessage, cause error) error {
	metrics.ObserveBatch(task.Entity, metrics.BatchFailed, 0, 0, 0)
	err := fmt.Errorf("batch failed (lines %d-%d): %w", msg.StartLine, msg.EndLine, cause)
	logger.WithTaskID(task.ID).Error("batch failed", logger.Err(err))
	p.tracker.StopTracking(task)
	return p.retry.HandleFailure(ctx, task, err)
}

func preprocess(h importer.Handler, row importer.Row) (out importer.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preprocess panicked: %v", r)
		}
	}()
	return h.Preprocess(row)
}

func validate(ctx context.Context, h importer.Handler, row importer.Row, line int) (res *domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Failure(fmt.Sprintf("validate panicked: %v", r))
		}
	}()
	res = h.Validate(ctx, row, line)
	if res == nil {
		res = domain.Success()
	}
	return res
}

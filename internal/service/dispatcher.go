package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"async-import/internal/domain"
	"async-import/internal/importer"
	"async-import/internal/logger"
	"async-import/internal/metrics"
	"async-import/internal/parser"
	"async-import/internal/repository"
)

// Dispatcher turns a PENDING task into batch messages.
type Dispatcher struct {
	tasks    repository.TaskRepository
	parsers  *parser.Registry
	handlers *importer.Registry
	store    FileStore
	queue    Queue
	tracker  ProgressTracker
	retry    *RetryCoordinator
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	tasks repository.TaskRepository,
	parsers *parser.Registry,
	handlers *importer.Registry,
	store FileStore,
	queue Queue,
	tracker ProgressTracker,
	retry *RetryCoordinator,
) *Dispatcher {
	return &Dispatcher{
		tasks:    tasks,
		parsers:  parsers,
		handlers: handlers,
		store:    store,
		queue:    queue,
		tracker:  tracker,
		retry:    retry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleStart consumes a start message. Retry messages first promote the
// task from FAILED to PENDING; a message whose attempt no longer matches is
// dropped. The returned error asks the transport to redeliver.
func (d *Dispatcher) HandleStart(ctx context.Context, msg StartMessage) error {
	if msg.Retry {
		ok, err := d.retry.Promote(ctx, msg)
		if err != nil {
			return err
		}
		if !ok {
			logger.WithTaskID(msg.TaskID).Debug("stale retry message ignored",
				slog.Int("attempt", msg.Attempt))
			return nil
		}
	}
	return d.Start(ctx, msg.TaskID)
}

// Start dispatches the task's rows. PENDING and FAILED tasks are started;
// any other status is left alone, so duplicate start messages are harmless.
// A FAILED task restarts on its current attempt; the retry count moves only
// through retry messages and requeues.
func (d *Dispatcher) Start(ctx context.Context, taskID string) error {
	log := logger.WithTaskID(taskID)

	task, err := d.tasks.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		log.Warn("start skipped", logger.Err(domain.ErrTaskNotFound))
		return nil
	}
	if !task.IsProcessable() {
		log.Info("task is not processable", slog.String("status", string(task.Status)))
		return nil
	}

	started, err := d.dispatch(ctx, task)
	if err == nil {
		return nil
	}
	if started != nil {
		task = started
		d.tracker.StopTracking(task)
	}
	log.Warn("dispatch failed", logger.Err(err))
	return d.retry.HandleFailure(ctx, task, err)
}

// dispatch returns the started task once the PROCESSING transition has been
// persisted, so the caller can undo tracking on failure.
func (d *Dispatcher) dispatch(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	log := logger.WithTaskID(task.ID)

	fileType, err := d.resolveFileType(ctx, task)
	if err != nil {
		return nil, err
	}
	p, err := d.parsers.Get(fileType)
	if err != nil {
		return nil, err
	}
	path, err := d.store.Path(task.File)
	if err != nil {
		return nil, err
	}
	if res := p.ValidateFormat(path); !res.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidationFailed, res.ErrorMessage())
	}
	h, err := d.handlers.Get(task.Entity)
	if err != nil {
		return nil, err
	}

	opts := parser.Options(task.ImportConfig)

	// Read the whole file once before any batch leaves, so a malformed file
	// is rejected without a partial import.
	total, err := scanRows(p, path, opts)
	if err != nil {
		return nil, err
	}
	if total != task.TotalCount {
		if err := d.tasks.SetTotalCount(ctx, task.ID, total); err != nil {
			return nil, err
		}
	}

	started, err := d.tasks.StartProcessing(ctx, task.ID, d.now())
	if err != nil {
		return nil, err
	}
	if started == nil {
		log.Info("task already started elsewhere")
		return nil, nil
	}
	metrics.ObserveTaskStatus(started.Entity, string(domain.TaskStatusProcessing))
	metrics.StartTask(started.Entity)
	d.tracker.StartTracking(started)

	if started.TotalCount == 0 {
		if err := d.finishEmpty(ctx, started); err != nil {
			return started, err
		}
		return nil, nil
	}

	size := h.BatchSize()
	if size < 1 {
		size = importer.DefaultBatchSize
	}
	sent, batches, err := d.emit(ctx, started, p, path, opts, size)
	if err != nil {
		return started, err
	}
	if sent != started.TotalCount {
		return started, fmt.Errorf("%w: file changed during dispatch, counted %d rows but read %d",
			domain.ErrMalformedFile, started.TotalCount, sent)
	}

	d.recordMemory(ctx, started.ID)
	log.Info("import task dispatched",
		slog.String("entity", started.Entity),
		slog.Int("rows", sent),
		slog.Int("batches", batches),
		slog.Int("attempt", started.RetryCount),
	)
	return nil, nil
}

func (d *Dispatcher) resolveFileType(ctx context.Context, task *domain.Task) (domain.FileType, error) {
	if task.FileType != nil {
		return *task.FileType, nil
	}
	ft, ok := domain.FileTypeFromName(task.File)
	if !ok {
		return "", fmt.Errorf("%w: cannot infer file type of %q", domain.ErrUnsupportedInput, task.File)
	}
	if err := d.tasks.SetFileType(ctx, task.ID, ft); err != nil {
		return "", err
	}
	task.FileType = &ft
	return ft, nil
}

// emit streams the file and enqueues one message per size rows plus the
// remainder. Lines are 1-based row ordinals. A full batch is held back until
// the next row is read, so a file that grew past the counted total sends
// nothing that could complete the task early.
func (d *Dispatcher) emit(ctx context.Context, task *domain.Task, p parser.FileParser, path string, opts parser.Options, size int) (int, int, error) {
	it, err := p.Parse(path, opts)
	if err != nil {
		return 0, 0, err
	}
	defer it.Close()

	var (
		rows      = make([]importer.Row, 0, size)
		line      int
		batchFrom = 1
		batches   int
	)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		end := batchFrom + len(rows) - 1
		msg := BatchMessage{
			TaskID:    task.ID,
			Attempt:   task.RetryCount,
			StartLine: batchFrom,
			EndLine:   end,
			Rows:      rows,
		}
		if err := d.queue.EnqueueBatch(ctx, msg); err != nil {
			return fmt.Errorf("enqueue batch (lines %d-%d): %w", batchFrom, end, err)
		}
		batches++
		rows = make([]importer.Row, 0, size)
		batchFrom = end + 1
		return nil
	}

	for it.Next() {
		line++
		if line > task.TotalCount {
			return batchFrom - 1, batches, fmt.Errorf("%w: file changed during dispatch, counted %d rows but found more",
				domain.ErrMalformedFile, task.TotalCount)
		}
		row, err := toRow(it.Row(), line)
		if err != nil {
			return batchFrom - 1, batches, err
		}
		if len(rows) >= size {
			if err := flush(); err != nil {
				return batchFrom - 1, batches, err
			}
		}
		rows = append(rows, row)
	}
	if err := it.Err(); err != nil {
		return batchFrom - 1, batches, err
	}
	if err := flush(); err != nil {
		return batchFrom - 1, batches, err
	}
	return batchFrom - 1, batches, nil
}

func (d *Dispatcher) finishEmpty(ctx context.Context, task *domain.Task) error {
	ok, err := d.tasks.Complete(ctx, task.ID, d.now())
	if err != nil {
		return err
	}
	summary := d.tracker.StopTracking(task)
	metrics.EndTask(task.Entity)
	if ok {
		metrics.ObserveTaskCompletion(task.Entity, summary.Duration.Seconds())
		logger.WithTaskID(task.ID).Info("import task completed with no rows")
	}
	return nil
}

func (d *Dispatcher) recordMemory(ctx context.Context, taskID string) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if err := d.tasks.RecordMemoryUsage(ctx, taskID, int64(ms.HeapAlloc)); err != nil {
		logger.WithTaskID(taskID).Debug("record memory usage failed", logger.Err(err))
	}
}

// scanRows counts the rows of the file and checks that every one is keyed.
func scanRows(p parser.FileParser, path string, opts parser.Options) (int, error) {
	it, err := p.Parse(path, opts)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	n := 0
	for it.Next() {
		n++
		if _, err := toRow(it.Row(), n); err != nil {
			return n, err
		}
	}
	return n, it.Err()
}

// toRow accepts string-keyed maps only.
func toRow(v any, line int) (importer.Row, error) {
	switch r := v.(type) {
	case map[string]any:
		return r, nil
	case map[any]any:
		out := make(importer.Row, len(r))
		for k, val := range r {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: row %d has non-string key %v", domain.ErrMalformedFile, line, k)
			}
			out[key] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: row %d is not an object", domain.ErrMalformedFile, line)
	}
}

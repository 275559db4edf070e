package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"async-import/internal/domain"
	"async-import/internal/importer"
	"async-import/internal/logger"
	"async-import/internal/metrics"
	"async-import/internal/parser"
	"async-import/internal/progress"
	"async-import/internal/repository"
	"async-import/internal/validator"
)

const (
	// DefaultErrorPageSize is used when Errors is called without a limit.
	DefaultErrorPageSize = 50
	// MaxErrorPageSize caps a single page of error logs.
	MaxErrorPageSize = 500
	// DefaultTaskPageSize is used when ListTasks is called without a limit.
	DefaultTaskPageSize = 50
)

// ImportService handles import submissions and task administration. Task
// execution happens in the Dispatcher and BatchProcessor behind the queue.
type ImportService struct {
	tasks      repository.TaskRepository
	errLogs    repository.ErrorLogRepository
	parsers    *parser.Registry
	handlers   *importer.Registry
	store      FileStore
	queue      Queue
	tracker    ProgressTracker
	validator  *validator.Validator
	maxRetries int
	now        func() time.Time
}

// NewImportService creates a new ImportService. maxRetries is the retry
// budget for submissions that do not choose one.
func NewImportService(
	tasks repository.TaskRepository,
	errLogs repository.ErrorLogRepository,
	parsers *parser.Registry,
	handlers *importer.Registry,
	store FileStore,
	queue Queue,
	tracker ProgressTracker,
	v *validator.Validator,
	maxRetries int,
) *ImportService {
	if maxRetries < 0 {
		maxRetries = domain.DefaultMaxRetries
	}
	return &ImportService{
		tasks:      tasks,
		errLogs:    errLogs,
		parsers:    parsers,
		handlers:   handlers,
		store:      store,
		queue:      queue,
		tracker:    tracker,
		validator:  v,
		maxRetries: maxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ ImportServiceInterface = (*ImportService)(nil)

// Submit stores the upload, creates a PENDING task and enqueues its start.
// A repeated idempotency key returns the task created first.
func (s *ImportService) Submit(ctx context.Context, req domain.ImportRequest, file io.Reader) (*domain.Task, error) {
	if err := s.validator.ValidateImportRequest(&req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidationFailed, validator.ToValidationResult(err).ErrorMessage())
	}

	if req.IdempotencyKey != nil {
		existing, err := s.tasks.GetByIdempotencyKey(ctx, *req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
		if existing != nil {
			logger.WithTaskID(existing.ID).Info("returning existing task for idempotency key")
			return existing, nil
		}
	}

	h, err := s.handlers.Get(req.Entity)
	if err != nil {
		return nil, err
	}
	fileType, ok := domain.FileTypeFromName(req.FileName)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file %q", domain.ErrUnsupportedInput, req.FileName)
	}
	p, err := s.parsers.Get(fileType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnsupportedInput, err)
	}

	name, err := s.store.Save(req.FileName, file)
	if err != nil {
		return nil, err
	}

	opts := parser.Options(req.Options)
	total := 0
	if path, err := s.store.Path(name); err == nil {
		if n, err := p.CountRows(path, opts); err == nil {
			total = n
		} else {
			logger.Warn("count rows failed, total left for the dispatcher",
				slog.String("file", name), logger.Err(err))
		}
	}

	maxRetries := s.maxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	task := &domain.Task{
		UserID:         req.UserID,
		File:           name,
		Entity:         h.Entity(),
		Remark:         req.Remark,
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.TaskStatusPending,
		FileType:       &fileType,
		ImportConfig:   req.Options,
		TotalCount:     total,
		MaxRetries:     maxRetries,
		Priority:       req.Priority,
		CreatedAt:      s.now(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.discard(name)
		return nil, fmt.Errorf("create import task: %w", err)
	}
	if task.File != name {
		// Lost an idempotency race; the other submission owns the task.
		s.discard(name)
		return task, nil
	}
	metrics.ObserveTaskStatus(task.Entity, string(domain.TaskStatusPending))

	log := logger.WithTaskID(task.ID)
	if err := s.queue.EnqueueStart(ctx, StartMessage{TaskID: task.ID}, 0); err != nil {
		log.Warn("enqueue start failed, task left for sweep", logger.Err(err))
	}
	log.Info("import task submitted",
		slog.String("entity", task.Entity),
		slog.String("file", task.File),
		slog.Int("total", task.TotalCount),
		slog.Int("priority", task.Priority),
	)
	return task, nil
}

// GetTask returns the task or an error wrapping domain.ErrNotFound.
func (s *ImportService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return task, nil
}

// ListTasks lists tasks newest first. Listing PENDING tasks alone returns
// them in dispatch order instead.
func (s *ImportService) ListTasks(ctx context.Context, filter TaskListFilter) ([]*domain.Task, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidationFailed, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultTaskPageSize
	}
	if filter.Status == domain.TaskStatusPending && filter.Entity == "" && filter.UserID == "" && filter.Offset == 0 {
		return s.tasks.FindPending(ctx, filter.Limit)
	}
	return s.tasks.List(ctx, repository.TaskFilter{
		Status: filter.Status,
		Entity: filter.Entity,
		UserID: filter.UserID,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Progress returns live progress when this process tracks the task and the
// persisted counters otherwise.
func (s *ImportService) Progress(ctx context.Context, id string) (*progress.Progress, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	p := s.tracker.GetProgress(task)
	return &p, nil
}

// Errors returns one page of the task's error logs ordered by line.
func (s *ImportService) Errors(ctx context.Context, id string, limit, offset int) (*TaskErrors, error) {
	if _, err := s.GetTask(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultErrorPageSize
	}
	if limit > MaxErrorPageSize {
		limit = MaxErrorPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.errLogs.ListByTaskID(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.errLogs.CountByTaskID(ctx, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.ErrorLog{}
	}
	return &TaskErrors{Total: total, Limit: limit, Offset: offset, Items: items}, nil
}

// ErrorStatistics summarises the task's error logs.
func (s *ImportService) ErrorStatistics(ctx context.Context, id string) (*domain.ErrorStatistics, error) {
	if _, err := s.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return s.errLogs.Statistics(ctx, id)
}

// Cancel moves a PENDING or PROCESSING task to CANCELLED. Batches already
// running finish; later ones are skipped.
func (s *ImportService) Cancel(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.tasks.Cancel(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		logger.WithTaskID(id).Warn("cancel rejected", slog.String("status", string(current.Status)))
		return nil, &domain.TransitionError{From: current.Status, To: domain.TaskStatusCancelled}
	}

	s.tracker.StopTracking(task)
	metrics.ObserveTaskStatus(task.Entity, string(domain.TaskStatusCancelled))
	if task.Status == domain.TaskStatusProcessing {
		metrics.EndTask(task.Entity)
	}
	logger.WithTaskID(id).Info("import task cancelled", slog.String("from", string(task.Status)))
	return s.GetTask(ctx, id)
}

// Retry re-runs a FAILED task through the start path. The retry budget is
// extended when it is already spent.
func (s *ImportService) Retry(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskStatusFailed {
		return nil, &domain.TransitionError{From: task.Status, To: domain.TaskStatusPending}
	}
	ok, err := s.tasks.Requeue(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &domain.TransitionError{From: current.Status, To: domain.TaskStatusPending}
	}

	if err := s.queue.EnqueueStart(ctx, StartMessage{TaskID: id}, 0); err != nil {
		logger.WithTaskID(id).Warn("enqueue start failed, task left for sweep", logger.Err(err))
	}
	logger.WithTaskID(id).Info("import task requeued", slog.Int("retry_count", task.RetryCount+1))
	return s.GetTask(ctx, id)
}

// Enqueue sends a start message for a PENDING task.
func (s *ImportService) Enqueue(ctx context.Context, id string) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != domain.TaskStatusPending {
		return &domain.TransitionError{From: task.Status, To: domain.TaskStatusProcessing}
	}
	return s.queue.EnqueueStart(ctx, StartMessage{TaskID: id}, 0)
}

// Statistics returns the number of tasks per status, including zeros.
func (s *ImportService) Statistics(ctx context.Context) (map[domain.TaskStatus]int, error) {
	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.TaskStatus]int, len(domain.ValidStatuses))
	for _, st := range domain.ValidStatuses {
		out[st] = counts[st]
	}
	return out, nil
}

// Entities lists the registered import handlers.
func (s *ImportService) Entities() []EntityInfo {
	all := s.handlers.All()
	out := make([]EntityInfo, 0, len(all))
	for _, h := range all {
		out = append(out, EntityInfo{
			Entity:       h.Entity(),
			BatchSize:    h.BatchSize(),
			FieldMapping: h.FieldMapping(),
		})
	}
	return out
}

func (s *ImportService) discard(name string) {
	if err := s.store.Delete(name); err != nil {
		logger.Warn("discard upload failed", slog.String("file", name), logger.Err(err))
	}
}

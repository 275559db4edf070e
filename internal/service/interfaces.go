package service

import (
	"context"
	"io"
	"time"

	"async-import/internal/domain"
	"async-import/internal/importer"
	"async-import/internal/progress"
)

// StartMessage asks a worker to dispatch a task. Retry messages carry the
// retry count observed when the retry was scheduled.
type StartMessage struct {
	TaskID  string `json:"task_id"`
	Retry   bool   `json:"retry,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
}

// BatchMessage carries one chunk of rows. Lines are 1-based and inclusive.
type BatchMessage struct {
	TaskID    string         `json:"task_id"`
	Attempt   int            `json:"attempt"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`
	Rows      []importer.Row `json:"rows"`
}

// Queue delivers work items at least once, in no particular order.
type Queue interface {
	EnqueueStart(ctx context.Context, msg StartMessage, delay time.Duration) error
	EnqueueBatch(ctx context.Context, msg BatchMessage) error
}

// FileStore holds uploaded files.
type FileStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Path(name string) (string, error)
	Delete(name string) error
	Lock() (func() error, error)
}

// ProgressTracker is the in-memory progress cache.
type ProgressTracker interface {
	StartTracking(task *domain.Task)
	UpdateProgress(task *domain.Task, processed, success, failed int, emit bool) progress.Event
	StopTracking(task *domain.Task) progress.Summary
	GetProgress(task *domain.Task) progress.Progress
}

// EntityInfo describes a registered import handler.
type EntityInfo struct {
	Entity       string            `json:"entity"`
	BatchSize    int               `json:"batch_size"`
	FieldMapping map[string]string `json:"field_mapping"`
}

// TaskErrors is one page of a task's error logs.
type TaskErrors struct {
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
	Items  []*domain.ErrorLog `json:"items"`
}

// ImportServiceInterface defines the import operations exposed over HTTP and
// the CLI. Used for dependency injection and mocking in tests.
type ImportServiceInterface interface {
	// Submit stores the upload, creates a PENDING task and enqueues it.
	Submit(ctx context.Context, req domain.ImportRequest, file io.Reader) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter TaskListFilter) ([]*domain.Task, error)
	Progress(ctx context.Context, id string) (*progress.Progress, error)
	Errors(ctx context.Context, id string, limit, offset int) (*TaskErrors, error)
	ErrorStatistics(ctx context.Context, id string) (*domain.ErrorStatistics, error)
	Cancel(ctx context.Context, id string) (*domain.Task, error)
	Retry(ctx context.Context, id string) (*domain.Task, error)
	Enqueue(ctx context.Context, id string) error
	Statistics(ctx context.Context) (map[domain.TaskStatus]int, error)
	Entities() []EntityInfo
}

// TaskListFilter narrows ListTasks.
type TaskListFilter struct {
	Status domain.TaskStatus
	Entity string
	UserID string
	Limit  int
	Offset int
}

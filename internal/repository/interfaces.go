package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"async-import/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UnitOfWork is one database transaction. Row writes run inside savepoints so
// a failed row rolls back alone.
type UnitOfWork interface {
	DBTX
	// Savepoint runs fn in a nested transaction. An error from fn rolls back
	// the savepoint and is returned; the outer transaction stays usable.
	Savepoint(ctx context.Context, fn func(db DBTX) error) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Transactor opens units of work.
type Transactor interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// TaskFilter narrows List results. Zero values match everything.
type TaskFilter struct {
	Status domain.TaskStatus
	Entity string
	UserID string
	Limit  int
	Offset int
}

// BatchCounts is the counter delta produced by one processed batch.
type BatchCounts struct {
	Processed int
	Success   int
	Failed    int
	// LastError, when set, replaces the task's last error fields.
	LastError *string
}

// TaskRepository persists import tasks. Status changes are conditional updates
// built from domain.TransitionSources; a false/nil result means the guard did
// not match and nothing changed.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)
	FindPending(ctx context.Context, limit int) ([]*domain.Task, error)
	FindRetryable(ctx context.Context, limit int) ([]*domain.Task, error)
	FindOlderThan(ctx context.Context, before time.Time) ([]*domain.Task, error)

	SetFileType(ctx context.Context, id string, fileType domain.FileType) error
	SetTotalCount(ctx context.Context, id string, total int) error
	RecordMemoryUsage(ctx context.Context, id string, bytes int64) error

	StartProcessing(ctx context.Context, id string, now time.Time) (*domain.Task, error)
	ClaimBatch(ctx context.Context, db DBTX, id string, attempt, startLine int) (bool, error)
	ApplyBatch(ctx context.Context, db DBTX, id string, attempt int, counts BatchCounts, now time.Time) (*domain.Task, error)
	Complete(ctx context.Context, id string, now time.Time) (bool, error)
	Fail(ctx context.Context, id, message string, retryable bool, now time.Time) (bool, error)
	RecordError(ctx context.Context, id, message string, retryable bool, now time.Time) error
	Cancel(ctx context.Context, id string, now time.Time) (bool, error)
	ScheduleRetry(ctx context.Context, id string, attempt int, now time.Time) (bool, error)
	Requeue(ctx context.Context, id string, now time.Time) (bool, error)

	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)
}

// ErrorLogRepository persists row-level failures.
type ErrorLogRepository interface {
	Create(ctx context.Context, db DBTX, log *domain.ErrorLog) error
	ListByTaskID(ctx context.Context, taskID string, limit, offset int) ([]*domain.ErrorLog, error)
	CountByTaskID(ctx context.Context, taskID string) (int, error)
	DeleteByTaskID(ctx context.Context, taskID string) (int64, error)
	Statistics(ctx context.Context, taskID string) (*domain.ErrorStatistics, error)
}

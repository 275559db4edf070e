package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"async-import/internal/domain"
)

const taskColumns = `id, user_id, file, entity, remark, idempotency_key, status, file_type, import_config,
	total_count, process_count, success_count, fail_count, retry_count, max_retries, priority,
	last_error_message, last_error_time, retryable, memory_usage,
	created_at, updated_at, started_at, ended_at`

// PostgresTaskRepository implements TaskRepository using PostgreSQL.
type PostgresTaskRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskRepository creates a new PostgresTaskRepository.
func NewPostgresTaskRepository(pool *pgxpool.Pool) *PostgresTaskRepository {
	return &PostgresTaskRepository{pool: pool}
}

// Create inserts a task. Empty IDs are filled with a UUIDv7.
func (r *PostgresTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate task id: %w", err)
		}
		task.ID = id.String()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt

	_, err := r.pool.Exec(ctx, `
		INSERT INTO import_tasks (id, user_id, file, entity, remark, idempotency_key, status, file_type,
			import_config, total_count, process_count, success_count, fail_count, retry_count, max_retries,
			priority, memory_usage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, task.ID, task.UserID, task.File, task.Entity, task.Remark, task.IdempotencyKey, task.Status, task.FileType,
		task.ImportConfig, task.TotalCount, task.ProcessCount, task.SuccessCount, task.FailCount, task.RetryCount,
		task.MaxRetries, task.Priority, task.MemoryUsage, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			strings.Contains(pgErr.ConstraintName, "idempotency_key") && task.IdempotencyKey != nil {
			existing, fetchErr := r.GetByIdempotencyKey(ctx, *task.IdempotencyKey)
			if fetchErr != nil {
				return fmt.Errorf("fetch existing task after race: %w", fetchErr)
			}
			if existing != nil {
				*task = *existing
				return nil
			}
		}
		return fmt.Errorf("insert import task: %w", err)
	}
	return nil
}

// GetByIdempotencyKey retrieves a task by idempotency key. It returns nil, nil
// when no task carries the key.
func (r *PostgresTaskRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM import_tasks WHERE idempotency_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import task by idempotency key: %w", err)
	}
	return task, nil
}

// Get retrieves a task by ID. It returns nil, nil when the task does not exist.
func (r *PostgresTaskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM import_tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import task: %w", err)
	}
	return task, nil
}

// List returns tasks newest first.
func (r *PostgresTaskRepository) List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Entity != "" {
		args = append(args, filter.Entity)
		where = append(where, fmt.Sprintf("entity = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + taskColumns + ` FROM import_tasks`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	return r.queryTasks(ctx, "list import tasks", sb.String(), args...)
}

// FindPending returns PENDING tasks, highest priority first, then oldest first.
func (r *PostgresTaskRepository) FindPending(ctx context.Context, limit int) ([]*domain.Task, error) {
	return r.queryTasks(ctx, "find pending tasks", `
		SELECT `+taskColumns+` FROM import_tasks
		WHERE status = $1
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
	`, domain.TaskStatusPending, limitOrAll(limit))
}

// FindRetryable returns FAILED tasks whose last failure was retryable and
// whose retry budget is not exhausted, oldest failure first.
func (r *PostgresTaskRepository) FindRetryable(ctx context.Context, limit int) ([]*domain.Task, error) {
	return r.queryTasks(ctx, "find retryable tasks", `
		SELECT `+taskColumns+` FROM import_tasks
		WHERE status = $1 AND retryable AND retry_count < max_retries
		ORDER BY priority DESC, last_error_time ASC NULLS FIRST
		LIMIT $2
	`, domain.TaskStatusFailed, limitOrAll(limit))
}

// FindOlderThan returns tasks created before the cutoff that are not being processed.
func (r *PostgresTaskRepository) FindOlderThan(ctx context.Context, before time.Time) ([]*domain.Task, error) {
	return r.queryTasks(ctx, "find old tasks", `
		SELECT `+taskColumns+` FROM import_tasks
		WHERE created_at < $1 AND status <> $2
		ORDER BY created_at ASC
	`, before, domain.TaskStatusProcessing)
}

// SetFileType persists the inferred file type.
func (r *PostgresTaskRepository) SetFileType(ctx context.Context, id string, fileType domain.FileType) error {
	return r.exec(ctx, "set file type",
		`UPDATE import_tasks SET file_type = $2, updated_at = now() WHERE id = $1`, id, fileType)
}

// SetTotalCount persists the number of rows the task will process.
func (r *PostgresTaskRepository) SetTotalCount(ctx context.Context, id string, total int) error {
	return r.exec(ctx, "set total count",
		`UPDATE import_tasks SET total_count = $2, updated_at = now() WHERE id = $1`, id, total)
}

// RecordMemoryUsage stores the advisory peak memory figure.
func (r *PostgresTaskRepository) RecordMemoryUsage(ctx context.Context, id string, bytes int64) error {
	return r.exec(ctx, "record memory usage",
		`UPDATE import_tasks SET memory_usage = GREATEST(memory_usage, $2) WHERE id = $1`, id, bytes)
}

// StartProcessing moves a PENDING or FAILED task to PROCESSING and resets its
// counters for the new attempt. Batch claims already recorded for the attempt
// are released with the reset, so a FAILED task restarted on the same attempt
// counts every batch again. It returns nil when the task was not startable.
func (r *PostgresTaskRepository) StartProcessing(ctx context.Context, id string, now time.Time) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `
		WITH started AS (
			UPDATE import_tasks
			SET status = $2, started_at = COALESCE(started_at, $3), ended_at = NULL,
				process_count = 0, success_count = 0, fail_count = 0, updated_at = $3
			WHERE id = $1 AND status = ANY($4)
			RETURNING `+taskColumns+`
		), released AS (
			DELETE FROM import_task_batches b
			USING started s
			WHERE b.task_id = s.id AND b.attempt = s.retry_count
		)
		SELECT `+taskColumns+` FROM started`,
		id, domain.TaskStatusProcessing, now, sources(domain.TaskStatusProcessing)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("start processing: %w", err)
	}
	return task, nil
}

// ClaimBatch records that the batch starting at startLine has been applied for
// the attempt. It returns false when the batch was already claimed.
func (r *PostgresTaskRepository) ClaimBatch(ctx context.Context, db DBTX, id string, attempt, startLine int) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO import_task_batches (task_id, attempt, start_line)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, id, attempt, startLine)
	if err != nil {
		return false, fmt.Errorf("claim batch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ApplyBatch adds a batch's counters to the task. The update only applies
// while the task is PROCESSING on the given attempt; otherwise it returns nil.
func (r *PostgresTaskRepository) ApplyBatch(ctx context.Context, db DBTX, id string, attempt int, counts BatchCounts, now time.Time) (*domain.Task, error) {
	task, err := scanTask(db.QueryRow(ctx, `
		UPDATE import_tasks
		SET process_count = process_count + $3,
			success_count = success_count + $4,
			fail_count = fail_count + $5,
			last_error_message = COALESCE($6::text, last_error_message),
			last_error_time = CASE WHEN $6::text IS NULL THEN last_error_time ELSE $7 END,
			updated_at = $7
		WHERE id = $1 AND status = $8 AND retry_count = $2
		RETURNING `+taskColumns,
		id, attempt, counts.Processed, counts.Success, counts.Failed, counts.LastError, now,
		domain.TaskStatusProcessing))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apply batch counters: %w", err)
	}
	return task, nil
}

// Complete moves a PROCESSING task whose rows are all processed to COMPLETED.
// Exactly one caller observes true.
func (r *PostgresTaskRepository) Complete(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.transition(ctx, "complete task", `
		UPDATE import_tasks SET status = $2, ended_at = $3, updated_at = $3
		WHERE id = $1 AND status = ANY($4) AND process_count >= total_count
	`, id, domain.TaskStatusCompleted, now, sources(domain.TaskStatusCompleted))
}

// Fail moves a PENDING or PROCESSING task to FAILED and records the error.
func (r *PostgresTaskRepository) Fail(ctx context.Context, id, message string, retryable bool, now time.Time) (bool, error) {
	return r.transition(ctx, "fail task", `
		UPDATE import_tasks
		SET status = $2, ended_at = $3, updated_at = $3,
			last_error_message = $5, last_error_time = $3, retryable = $6
		WHERE id = $1 AND status = ANY($4)
	`, id, domain.TaskStatusFailed, now, sources(domain.TaskStatusFailed), message, retryable)
}

// RecordError updates the error fields of a task that is already FAILED.
func (r *PostgresTaskRepository) RecordError(ctx context.Context, id, message string, retryable bool, now time.Time) error {
	return r.exec(ctx, "record task error", `
		UPDATE import_tasks
		SET last_error_message = $3, last_error_time = $4, retryable = $5, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, domain.TaskStatusFailed, message, now, retryable)
}

// Cancel moves a PENDING or PROCESSING task to CANCELLED.
func (r *PostgresTaskRepository) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.transition(ctx, "cancel task", `
		UPDATE import_tasks SET status = $2, ended_at = $3, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
	`, id, domain.TaskStatusCancelled, now, sources(domain.TaskStatusCancelled))
}

// ScheduleRetry moves a FAILED task back to PENDING for automatic retry. The
// attempt is the retry count observed when the retry was scheduled, so stale
// or duplicate retry messages do not match.
func (r *PostgresTaskRepository) ScheduleRetry(ctx context.Context, id string, attempt int, now time.Time) (bool, error) {
	return r.transition(ctx, "schedule retry", `
		UPDATE import_tasks
		SET status = $2, retry_count = retry_count + 1, ended_at = NULL, updated_at = $3
		WHERE id = $1 AND status = ANY($4) AND retry_count = $5 AND retry_count < max_retries
	`, id, domain.TaskStatusPending, now, sources(domain.TaskStatusPending), attempt)
}

// Requeue moves a FAILED task back to PENDING on operator request. The retry
// budget is extended when it is already spent.
func (r *PostgresTaskRepository) Requeue(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.transition(ctx, "requeue task", `
		UPDATE import_tasks
		SET status = $2, retry_count = retry_count + 1,
			max_retries = GREATEST(max_retries, retry_count + 1),
			ended_at = NULL, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
	`, id, domain.TaskStatusPending, now, sources(domain.TaskStatusPending))
}

// Delete removes a task and its batch claims.
func (r *PostgresTaskRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete import task", `DELETE FROM import_tasks WHERE id = $1`, id)
}

// CountByStatus returns the number of tasks per status.
func (r *PostgresTaskRepository) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM import_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TaskStatus]int, len(domain.ValidStatuses))
	for rows.Next() {
		var (
			status domain.TaskStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

func (r *PostgresTaskRepository) transition(ctx context.Context, op, sql string, args ...any) (bool, error) {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresTaskRepository) exec(ctx context.Context, op, sql string, args ...any) error {
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresTaskRepository) queryTasks(ctx context.Context, op, sql string, args ...any) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task     domain.Task
		fileType *string
	)
	err := row.Scan(&task.ID, &task.UserID, &task.File, &task.Entity, &task.Remark, &task.IdempotencyKey, &task.Status,
		&fileType, &task.ImportConfig,
		&task.TotalCount, &task.ProcessCount, &task.SuccessCount, &task.FailCount,
		&task.RetryCount, &task.MaxRetries, &task.Priority,
		&task.LastErrorMessage, &task.LastErrorTime, &task.Retryable, &task.MemoryUsage,
		&task.CreatedAt, &task.UpdatedAt, &task.StartedAt, &task.EndedAt)
	if err != nil {
		return nil, err
	}
	if fileType != nil {
		ft := domain.FileType(*fileType)
		task.FileType = &ft
	}
	return &task, nil
}

// sources renders the legal source statuses of target as a text[] argument.
func sources(target domain.TaskStatus) []string {
	src := domain.TransitionSources(target)
	out := make([]string, len(src))
	for i, s := range src {
		out[i] = string(s)
	}
	return out
}

func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

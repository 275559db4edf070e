package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"async-import/internal/domain"
)

// topMessagesLimit bounds the distinct messages returned by Statistics.
const topMessagesLimit = 10

// PostgresErrorLogRepository implements ErrorLogRepository using PostgreSQL.
type PostgresErrorLogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresErrorLogRepository creates a new PostgresErrorLogRepository.
func NewPostgresErrorLogRepository(pool *pgxpool.Pool) *PostgresErrorLogRepository {
	return &PostgresErrorLogRepository{pool: pool}
}

// Create appends an error log through db, normally the batch unit of work.
func (r *PostgresErrorLogRepository) Create(ctx context.Context, db DBTX, log *domain.ErrorLog) error {
	if log.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate error log id: %w", err)
		}
		log.ID = id.String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx, `
		INSERT INTO import_error_logs (id, task_id, entity, line, error, raw_row, new_row, attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, log.ID, log.TaskID, log.Entity, log.Line, log.Error, log.RawRow, log.NewRow, log.Attempt, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

// ListByTaskID returns a task's error logs ordered by line.
func (r *PostgresErrorLogRepository) ListByTaskID(ctx context.Context, taskID string, limit, offset int) ([]*domain.ErrorLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, entity, line, error, raw_row, new_row, attempt, created_at
		FROM import_error_logs
		WHERE task_id = $1
		ORDER BY line ASC, created_at ASC
		LIMIT $2 OFFSET $3
	`, taskID, limitOrAll(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list error logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ErrorLog
	for rows.Next() {
		var l domain.ErrorLog
		if err := rows.Scan(&l.ID, &l.TaskID, &l.Entity, &l.Line, &l.Error,
			&l.RawRow, &l.NewRow, &l.Attempt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error logs: %w", err)
	}
	return logs, nil
}

// CountByTaskID returns the number of error logs of a task.
func (r *PostgresErrorLogRepository) CountByTaskID(ctx context.Context, taskID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM import_error_logs WHERE task_id = $1`, taskID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count error logs: %w", err)
	}
	return n, nil
}

// DeleteByTaskID removes every error log of a task.
func (r *PostgresErrorLogRepository) DeleteByTaskID(ctx context.Context, taskID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM import_error_logs WHERE task_id = $1`, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete error logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Statistics summarises a task's error logs.
func (r *PostgresErrorLogRepository) Statistics(ctx context.Context, taskID string) (*domain.ErrorStatistics, error) {
	stats := &domain.ErrorStatistics{TopMessages: make(map[string]int)}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(MIN(line), 0), COALESCE(MAX(line), 0),
			MAX(created_at), COUNT(DISTINCT attempt)
		FROM import_error_logs
		WHERE task_id = $1
	`, taskID).Scan(&stats.Total, &stats.FirstLine, &stats.LastLine, &stats.LatestAt, &stats.AttemptCount)
	if err != nil {
		return nil, fmt.Errorf("error log statistics: %w", err)
	}
	if stats.Total == 0 {
		return stats, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT error, COUNT(*) AS n
		FROM import_error_logs
		WHERE task_id = $1
		GROUP BY error
		ORDER BY n DESC, error ASC
		LIMIT $2
	`, taskID, topMessagesLimit)
	if err != nil {
		return nil, fmt.Errorf("error log messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg string
			n   int
		)
		if err := rows.Scan(&msg, &n); err != nil {
			return nil, fmt.Errorf("scan error message count: %w", err)
		}
		stats.TopMessages[msg] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error messages: %w", err)
	}
	return stats, nil
}

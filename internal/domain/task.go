package domain

import (
	"math"
	"path/filepath"
	"strings"
	"time"
)

// TaskStatus represents the status of an import task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// ValidStatuses contains all task statuses.
var ValidStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusProcessing,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusCancelled,
}

// IsValid checks if the status is a known task status.
func (s TaskStatus) IsValid() bool {
	for _, st := range ValidStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// transitionSources maps a target status to the statuses it may be entered from.
var transitionSources = map[TaskStatus][]TaskStatus{
	TaskStatusProcessing: {TaskStatusPending, TaskStatusFailed},
	TaskStatusCompleted:  {TaskStatusProcessing},
	TaskStatusFailed:     {TaskStatusPending, TaskStatusProcessing},
	TaskStatusCancelled:  {TaskStatusPending, TaskStatusProcessing},
	TaskStatusPending:    {TaskStatusFailed},
}

// TransitionSources returns the statuses from which target can be reached.
// Repositories use it to build conditional updates.
func TransitionSources(target TaskStatus) []TaskStatus {
	src := transitionSources[target]
	out := make([]TaskStatus, len(src))
	copy(out, src)
	return out
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to TaskStatus) bool {
	for _, s := range transitionSources[to] {
		if s == from {
			return true
		}
	}
	return false
}

// FileType identifies the format of an uploaded file.
type FileType string

const (
	FileTypeCSV   FileType = "csv"
	FileTypeExcel FileType = "excel"
	FileTypeXLS   FileType = "xls"
	FileTypeXLSX  FileType = "xlsx"
	FileTypeJSON  FileType = "json"
)

// IsSpreadsheet reports whether the type is one of the spreadsheet variants.
func (f FileType) IsSpreadsheet() bool {
	return f == FileTypeExcel || f == FileTypeXLS || f == FileTypeXLSX
}

// FileTypeFromName infers the file type from a file name extension.
func FileTypeFromName(name string) (FileType, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return FileTypeCSV, true
	case "xls":
		return FileTypeXLS, true
	case "xlsx":
		return FileTypeXLSX, true
	case "json":
		return FileTypeJSON, true
	default:
		return "", false
	}
}

// DefaultMaxRetries is used when a task is submitted without a retry budget.
const DefaultMaxRetries = 3

// Task represents one bulk import tracked through the status state machine.
type Task struct {
	ID               string         `json:"id"`
	UserID           *string        `json:"user_id,omitempty"`
	File             string         `json:"file"`
	Entity           string         `json:"entity"`
	Remark           *string        `json:"remark,omitempty"`
	IdempotencyKey   *string        `json:"idempotency_key,omitempty"`
	Status           TaskStatus     `json:"status"`
	FileType         *FileType      `json:"file_type,omitempty"`
	ImportConfig     map[string]any `json:"import_config,omitempty"`
	TotalCount       int            `json:"total_count"`
	ProcessCount     int            `json:"process_count"`
	SuccessCount     int            `json:"success_count"`
	FailCount        int            `json:"fail_count"`
	RetryCount       int            `json:"retry_count"`
	MaxRetries       int            `json:"max_retries"`
	Priority         int            `json:"priority"`
	LastErrorMessage *string        `json:"last_error_message,omitempty"`
	LastErrorTime    *time.Time     `json:"last_error_time,omitempty"`
	Retryable        bool           `json:"retryable"`
	MemoryUsage      int64          `json:"memory_usage"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	EndedAt          *time.Time     `json:"ended_at,omitempty"`
}

// IsProcessable reports whether the dispatcher may start the task.
func (t *Task) IsProcessable() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusFailed
}

// CanRetry reports whether an automatic retry may be scheduled.
func (t *Task) CanRetry() bool {
	return t.Status == TaskStatusFailed && t.RetryCount < t.MaxRetries
}

// IsDone reports whether every counted row has been processed.
func (t *Task) IsDone() bool {
	return t.ProcessCount >= t.TotalCount
}

// Percentage returns processed rows as a share of total, rounded to two decimals.
func (t *Task) Percentage() float64 {
	return Percentage(t.ProcessCount, t.TotalCount)
}

// Percentage computes processed/total*100 rounded to two decimals.
// A zero total yields 0.
func Percentage(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(processed)/float64(total)*10000) / 100
}

// Transition moves the task to the target status, applying the timestamp
// side effects of the state machine. Illegal transitions leave the task
// untouched and return ErrIllegalTransition.
func (t *Task) Transition(to TaskStatus, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return &TransitionError{From: t.Status, To: to}
	}

	switch to {
	case TaskStatusProcessing:
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
		t.EndedAt = nil
	case TaskStatusCompleted:
		if !t.IsDone() {
			return &TransitionError{From: t.Status, To: to}
		}
		t.EndedAt = &now
	case TaskStatusFailed, TaskStatusCancelled:
		t.EndedAt = &now
	case TaskStatusPending:
		if t.RetryCount >= t.MaxRetries {
			return &TransitionError{From: t.Status, To: to}
		}
		t.RetryCount++
		t.EndedAt = nil
	}

	t.Status = to
	t.UpdatedAt = now
	return nil
}

// Fail transitions the task to FAILED and records the error.
func (t *Task) Fail(message string, now time.Time) error {
	if err := t.Transition(TaskStatusFailed, now); err != nil {
		return err
	}
	t.RecordError(message, now)
	return nil
}

// RecordError sets the last error fields without changing status.
func (t *Task) RecordError(message string, now time.Time) {
	msg := message
	at := now
	t.LastErrorMessage = &msg
	t.LastErrorTime = &at
}

// ErrorLog is an immutable record of one row-level import failure.
type ErrorLog struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	Entity    string         `json:"entity"`
	Line      int            `json:"line"`
	Error     string         `json:"error"`
	RawRow    map[string]any `json:"raw_row,omitempty"`
	NewRow    map[string]any `json:"new_row,omitempty"`
	Attempt   int            `json:"attempt"`
	CreatedAt time.Time      `json:"created_at"`
}

// ErrorStatistics summarises the error logs of a task.
type ErrorStatistics struct {
	Total        int            `json:"total"`
	FirstLine    int            `json:"first_line"`
	LastLine     int            `json:"last_line"`
	TopMessages  map[string]int `json:"top_messages"`
	LatestAt     *time.Time     `json:"latest_at,omitempty"`
	AttemptCount int            `json:"attempt_count"`
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"async-import/internal/domain"
	"async-import/internal/importer"
	"async-import/internal/repository"
	"async-import/internal/service"
)

// fakeUoW stages writes and applies them on Commit.
type fakeUoW struct {
	mu         sync.Mutex
	pending    []func()
	committed  bool
	rolledBack bool
	commitErr  error
}

func (u *fakeUoW) stage(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = append(u.pending, fn)
}

func (u *fakeUoW) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func (u *fakeUoW) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeUoW: query not supported")
}

func (u *fakeUoW) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (u *fakeUoW) Savepoint(_ context.Context, fn func(db repository.DBTX) error) error {
	u.mu.Lock()
	mark := len(u.pending)
	u.mu.Unlock()

	if err := fn(u); err != nil {
		u.mu.Lock()
		u.pending = u.pending[:mark]
		u.mu.Unlock()
		return err
	}
	return nil
}

func (u *fakeUoW) Commit(context.Context) error {
	if u.commitErr != nil {
		return u.commitErr
	}
	u.mu.Lock()
	pending := u.pending
	u.pending = nil
	u.committed = true
	u.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
	return nil
}

func (u *fakeUoW) Rollback(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.committed {
		return nil
	}
	u.pending = nil
	u.rolledBack = true
	return nil
}

type fakeTransactor struct {
	mu        sync.Mutex
	beginErr  error
	commitErr error
	opened    []*fakeUoW
}

func (f *fakeTransactor) Begin(context.Context) (repository.UnitOfWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	u := &fakeUoW{commitErr: f.commitErr}
	f.opened = append(f.opened, u)
	return u, nil
}

// apply runs fn now, or on commit when db is a unit of work.
func apply(db repository.DBTX, fn func()) {
	if u, ok := db.(*fakeUoW); ok {
		u.stage(fn)
		return
	}
	fn()
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	return &c
}

func statusIn(s domain.TaskStatus, set []domain.TaskStatus) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

// fakeTaskRepo mirrors the conditional updates of the Postgres repository.
type fakeTaskRepo struct {
	mu     sync.Mutex
	tasks  map[string]*domain.Task
	claims map[string]bool
	seq    int
}

var _ repository.TaskRepository = (*fakeTaskRepo)(nil)

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks:  make(map[string]*domain.Task),
		claims: make(map[string]bool),
	}
}

func (r *fakeTaskRepo) put(t *domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = cloneTask(t)
}

func (r *fakeTaskRepo) mutate(id string, guard func(*domain.Task) bool, fn func(*domain.Task)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || !guard(t) {
		return false
	}
	fn(t)
	return true
}

func (r *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.IdempotencyKey != nil {
		for _, t := range r.tasks {
			if t.IdempotencyKey != nil && *t.IdempotencyKey == *task.IdempotencyKey {
				*task = *cloneTask(t)
				return nil
			}
		}
	}
	if task.ID == "" {
		r.seq++
		task.ID = fmt.Sprintf("task-%03d", r.seq)
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.UpdatedAt = task.CreatedAt
	r.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *fakeTaskRepo) Get(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	return cloneTask(t), nil
}

func (r *fakeTaskRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			return cloneTask(t), nil
		}
	}
	return nil, nil
}

func (r *fakeTaskRepo) filter(keep func(*domain.Task) bool, less func(a, b *domain.Task) bool) []*domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.tasks {
		if keep(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *fakeTaskRepo) List(_ context.Context, f repository.TaskFilter) ([]*domain.Task, error) {
	out := r.filter(func(t *domain.Task) bool {
		return (f.Status == "" || t.Status == f.Status) &&
			(f.Entity == "" || t.Entity == f.Entity) &&
			(f.UserID == "" || (t.UserID != nil && *t.UserID == f.UserID))
	}, func(a, b *domain.Task) bool { return a.CreatedAt.After(b.CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeTaskRepo) FindPending(_ context.Context, limit int) ([]*domain.Task, error) {
	out := r.filter(func(t *domain.Task) bool { return t.Status == domain.TaskStatusPending },
		func(a, b *domain.Task) bool {
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTaskRepo) FindRetryable(_ context.Context, limit int) ([]*domain.Task, error) {
	out := r.filter(func(t *domain.Task) bool {
		return t.Status == domain.TaskStatusFailed && t.Retryable && t.RetryCount < t.MaxRetries
	}, func(a, b *domain.Task) bool { return a.ID < b.ID })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTaskRepo) FindOlderThan(_ context.Context, before time.Time) ([]*domain.Task, error) {
	return r.filter(func(t *domain.Task) bool {
		return t.CreatedAt.Before(before) && t.Status != domain.TaskStatusProcessing
	}, func(a, b *domain.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }), nil
}

func always(*domain.Task) bool { return true }

func (r *fakeTaskRepo) SetFileType(_ context.Context, id string, ft domain.FileType) error {
	r.mutate(id, always, func(t *domain.Task) { t.FileType = &ft })
	return nil
}

func (r *fakeTaskRepo) SetTotalCount(_ context.Context, id string, total int) error {
	r.mutate(id, always, func(t *domain.Task) { t.TotalCount = total })
	return nil
}

func (r *fakeTaskRepo) RecordMemoryUsage(_ context.Context, id string, bytes int64) error {
	r.mutate(id, always, func(t *domain.Task) {
		if bytes > t.MemoryUsage {
			t.MemoryUsage = bytes
		}
	})
	return nil
}

func (r *fakeTaskRepo) StartProcessing(_ context.Context, id string, now time.Time) (*domain.Task, error) {
	var out *domain.Task
	r.mutate(id, func(t *domain.Task) bool {
		return statusIn(t.Status, domain.TransitionSources(domain.TaskStatusProcessing))
	}, func(t *domain.Task) {
		t.Status = domain.TaskStatusProcessing
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
		t.EndedAt = nil
		t.ProcessCount, t.SuccessCount, t.FailCount = 0, 0, 0
		t.UpdatedAt = now
		out = cloneTask(t)
	})
	if out != nil {
		prefix := fmt.Sprintf("%s/%d/", id, out.RetryCount)
		r.mu.Lock()
		for key := range r.claims {
			if strings.HasPrefix(key, prefix) {
				delete(r.claims, key)
			}
		}
		r.mu.Unlock()
	}
	return out, nil
}

func (r *fakeTaskRepo) ClaimBatch(_ context.Context, db repository.DBTX, id string, attempt, startLine int) (bool, error) {
	key := fmt.Sprintf("%s/%d/%d", id, attempt, startLine)
	r.mu.Lock()
	claimed := r.claims[key]
	r.mu.Unlock()
	if claimed {
		return false, nil
	}
	apply(db, func() {
		r.mu.Lock()
		r.claims[key] = true
		r.mu.Unlock()
	})
	return true, nil
}

func (r *fakeTaskRepo) ApplyBatch(_ context.Context, db repository.DBTX, id string, attempt int, c repository.BatchCounts, now time.Time) (*domain.Task, error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok || t.Status != domain.TaskStatusProcessing || t.RetryCount != attempt {
		r.mu.Unlock()
		return nil, nil
	}
	preview := cloneTask(t)
	r.mu.Unlock()

	update := func(t *domain.Task) {
		t.ProcessCount += c.Processed
		t.SuccessCount += c.Success
		t.FailCount += c.Failed
		if c.LastError != nil {
			msg := *c.LastError
			at := now
			t.LastErrorMessage = &msg
			t.LastErrorTime = &at
		}
		t.UpdatedAt = now
	}
	update(preview)
	apply(db, func() { r.mutate(id, always, update) })
	return preview, nil
}

func (r *fakeTaskRepo) Complete(_ context.Context, id string, now time.Time) (bool, error) {
	return r.mutate(id, func(t *domain.Task) bool {
		return statusIn(t.Status, domain.TransitionSources(domain.TaskStatusCompleted)) && t.ProcessCount >= t.TotalCount
	}, func(t *domain.Task) {
		t.Status = domain.TaskStatusCompleted
		t.EndedAt = &now
		t.UpdatedAt = now
	}), nil
}

func (r *fakeTaskRepo) Fail(_ context.Context, id, message string, retryable bool, now time.Time) (bool, error) {
	return r.mutate(id, func(t *domain.Task) bool {
		return statusIn(t.Status, domain.TransitionSources(domain.TaskStatusFailed))
	}, func(t *domain.Task) {
		t.Status = domain.TaskStatusFailed
		t.EndedAt = &now
		t.UpdatedAt = now
		t.RecordError(message, now)
		t.Retryable = retryable
	}), nil
}

func (r *fakeTaskRepo) RecordError(_ context.Context, id, message string, retryable bool, now time.Time) error {
	r.mutate(id, func(t *domain.Task) bool { return t.Status == domain.TaskStatusFailed }, func(t *domain.Task) {
		t.RecordError(message, now)
		t.Retryable = retryable
		t.UpdatedAt = now
	})
	return nil
}

func (r *fakeTaskRepo) Cancel(_ context.Context, id string, now time.Time) (bool, error) {
	return r.mutate(id, func(t *domain.Task) bool {
		return statusIn(t.Status, domain.TransitionSources(domain.TaskStatusCancelled))
	}, func(t *domain.Task) {
		t.Status = domain.TaskStatusCancelled
		t.EndedAt = &now
		t.UpdatedAt = now
	}), nil
}

func (r *fakeTaskRepo) ScheduleRetry(_ context.Context, id string, attempt int, now time.Time) (bool, error) {
	return r.mutate(id, func(t *domain.Task) bool {
		return t.Status == domain.TaskStatusFailed && t.RetryCount == attempt && t.RetryCount < t.MaxRetries
	}, func(t *domain.Task) {
		t.Status = domain.TaskStatusPending
		t.RetryCount++
		t.EndedAt = nil
		t.UpdatedAt = now
	}), nil
}

func (r *fakeTaskRepo) Requeue(_ context.Context, id string, now time.Time) (bool, error) {
	return r.mutate(id, func(t *domain.Task) bool { return t.Status == domain.TaskStatusFailed }, func(t *domain.Task) {
		t.Status = domain.TaskStatusPending
		t.RetryCount++
		if t.MaxRetries < t.RetryCount {
			t.MaxRetries = t.RetryCount
		}
		t.EndedAt = nil
		t.UpdatedAt = now
	}), nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	for key := range r.claims {
		if strings.HasPrefix(key, id+"/") {
			delete(r.claims, key)
		}
	}
	return nil
}

func (r *fakeTaskRepo) CountByStatus(context.Context) (map[domain.TaskStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.TaskStatus]int)
	for _, t := range r.tasks {
		out[t.Status]++
	}
	return out, nil
}

type fakeErrorLogRepo struct {
	mu   sync.Mutex
	logs []*domain.ErrorLog
	seq  int
}

var _ repository.ErrorLogRepository = (*fakeErrorLogRepo)(nil)

func (r *fakeErrorLogRepo) Create(_ context.Context, db repository.DBTX, log *domain.ErrorLog) error {
	entry := *log
	apply(db, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seq++
		entry.ID = fmt.Sprintf("err-%03d", r.seq)
		r.logs = append(r.logs, &entry)
	})
	return nil
}

func (r *fakeErrorLogRepo) byTask(taskID string) []*domain.ErrorLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ErrorLog
	for _, l := range r.logs {
		if l.TaskID == taskID {
			c := *l
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func (r *fakeErrorLogRepo) ListByTaskID(_ context.Context, taskID string, limit, offset int) ([]*domain.ErrorLog, error) {
	out := r.byTask(taskID)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeErrorLogRepo) CountByTaskID(_ context.Context, taskID string) (int, error) {
	return len(r.byTask(taskID)), nil
}

func (r *fakeErrorLogRepo) DeleteByTaskID(_ context.Context, taskID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.logs[:0]
	var n int64
	for _, l := range r.logs {
		if l.TaskID == taskID {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return n, nil
}

func (r *fakeErrorLogRepo) Statistics(_ context.Context, taskID string) (*domain.ErrorStatistics, error) {
	logs := r.byTask(taskID)
	stats := &domain.ErrorStatistics{TopMessages: map[string]int{}}
	attempts := map[int]bool{}
	for _, l := range logs {
		stats.Total++
		if stats.FirstLine == 0 || l.Line < stats.FirstLine {
			stats.FirstLine = l.Line
		}
		if l.Line > stats.LastLine {
			stats.LastLine = l.Line
		}
		stats.TopMessages[l.Error]++
		attempts[l.Attempt] = true
	}
	stats.AttemptCount = len(attempts)
	return stats, nil
}

type queuedStart struct {
	msg   service.StartMessage
	delay time.Duration
}

// fakeQueue records messages; tests deliver them explicitly.
type fakeQueue struct {
	mu       sync.Mutex
	starts   []queuedStart
	batches  []service.BatchMessage
	startErr error
	batchErr error
	// allStarts keeps every start ever enqueued.
	allStarts []queuedStart
}

func (q *fakeQueue) EnqueueStart(_ context.Context, msg service.StartMessage, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.startErr != nil {
		return q.startErr
	}
	q.starts = append(q.starts, queuedStart{msg: msg, delay: delay})
	q.allStarts = append(q.allStarts, queuedStart{msg: msg, delay: delay})
	return nil
}

func (q *fakeQueue) EnqueueBatch(_ context.Context, msg service.BatchMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.batchErr != nil {
		return q.batchErr
	}
	q.batches = append(q.batches, msg)
	return nil
}

func (q *fakeQueue) takeStarts() []queuedStart {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.starts
	q.starts = nil
	return out
}

// queuedStarts counts undelivered start messages without draining them.
func (q *fakeQueue) queuedStarts() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.starts)
}

func (q *fakeQueue) takeBatches() []service.BatchMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.batches
	q.batches = nil
	return out
}

func (q *fakeQueue) setBatchErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batchErr = err
}

// recordingHandler imports rows into memory through the unit of work.
type recordingHandler struct {
	importer.Base
	mu       sync.Mutex
	imported []importer.Row
	// failOn makes Import fail for rows whose email matches.
	failOn string
	// panicOn makes Preprocess panic for rows whose email matches.
	panicOn string
}

func newRecordingHandler(batchSize int) *recordingHandler {
	return &recordingHandler{Base: importer.Base{
		Name:    "contacts",
		Size:    batchSize,
		Mapping: map[string]string{"email": "email", "name": "name"},
	}}
}

func (h *recordingHandler) Preprocess(row importer.Row) (importer.Row, error) {
	out := make(importer.Row, len(row))
	for k, v := range row {
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		out[k] = v
	}
	if h.panicOn != "" && out["email"] == h.panicOn {
		panic("boom")
	}
	return out, nil
}

func (h *recordingHandler) Validate(_ context.Context, row importer.Row, line int) *domain.ValidationResult {
	res := domain.NewValidationResult()
	email, _ := row["email"].(string)
	if email == "" {
		res.AddError(fmt.Sprintf("line %d: email is required", line))
	} else if !strings.Contains(email, "@") {
		res.AddError(fmt.Sprintf("line %d: email is invalid", line))
	}
	if name, _ := row["name"].(string); name == "" {
		res.AddWarning(fmt.Sprintf("line %d: name is empty", line))
	}
	return res
}

func (h *recordingHandler) Import(_ context.Context, db repository.DBTX, row importer.Row, _ *domain.Task) error {
	if h.failOn != "" && row["email"] == h.failOn {
		return errors.New("duplicate key value violates unique constraint")
	}
	apply(db, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.imported = append(h.imported, row)
	})
	return nil
}

func (h *recordingHandler) emails() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.imported))
	for _, r := range h.imported {
		out = append(out, r["email"].(string))
	}
	sort.Strings(out)
	return out
}

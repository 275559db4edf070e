// Package progress keeps per-task throughput and ETA figures in memory.
//
// The tracker is a cache over the task counters stored in the database. It is
// lost on restart; GetProgress then falls back to the persisted counters.
package progress

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"async-import/internal/domain"
	"async-import/internal/logger"
)

// Event is emitted to observers on every reported update.
type Event struct {
	TaskID     string         `json:"task_id"`
	Entity     string         `json:"entity"`
	Processed  int            `json:"processed"`
	Success    int            `json:"success"`
	Failed     int            `json:"failed"`
	Total      int            `json:"total"`
	Speed      float64        `json:"speed"`
	ETA        *time.Duration `json:"eta,omitempty"`
	Percentage float64        `json:"percentage"`
	At         time.Time      `json:"at"`
}

// Observer receives progress events. Implementations must return quickly.
type Observer interface {
	OnProgress(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnProgress(e Event) { f(e) }

// Progress is the current view of a task's progress.
type Progress struct {
	TaskID     string         `json:"task_id"`
	Processed  int            `json:"processed"`
	Success    int            `json:"success"`
	Failed     int            `json:"failed"`
	Total      int            `json:"total"`
	Percentage float64        `json:"percentage"`
	Speed      float64        `json:"speed"`
	ETA        *time.Duration `json:"eta,omitempty"`
	Elapsed    time.Duration  `json:"elapsed"`
	// Live is false when the figures come from the persisted counters.
	Live bool `json:"live"`
}

// Summary is returned when tracking stops.
type Summary struct {
	TaskID       string        `json:"task_id"`
	Processed    int           `json:"processed"`
	Success      int           `json:"success"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
	AverageSpeed float64       `json:"average_speed"`
}

type entry struct {
	startedAt  time.Time
	lastUpdate time.Time
	processed  int
	success    int
	failed     int
	lastBatch  int
	speed      float64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithObservers registers observers notified on emitted updates.
func WithObservers(observers ...Observer) Option {
	return func(t *Tracker) { t.observers = append(t.observers, observers...) }
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	entries   map[string]*entry
	observers []Observer
	now       func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartTracking resets the entry of the task.
func (t *Tracker) StartTracking(task *domain.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked(task.ID)
}

func (t *Tracker) startLocked(taskID string) *entry {
	now := t.now()
	e := &entry{startedAt: now, lastUpdate: now}
	t.entries[taskID] = e
	return e
}

// UpdateProgress records cumulative counts for the task and, when emit is
// set, notifies observers. A task that is not tracked starts being tracked.
func (t *Tracker) UpdateProgress(task *domain.Task, processed, success, failed int, emit bool) Event {
	t.mu.Lock()
	e, ok := t.entries[task.ID]
	if !ok {
		e = t.startLocked(task.ID)
	}

	now := t.now()
	delta := processed - e.processed
	if elapsed := now.Sub(e.lastUpdate).Seconds(); elapsed > 0 {
		e.speed = round2(float64(delta) / elapsed)
	}
	e.processed = processed
	e.success = success
	e.failed = failed
	e.lastBatch = delta
	e.lastUpdate = now

	event := Event{
		TaskID:     task.ID,
		Entity:     task.Entity,
		Processed:  processed,
		Success:    success,
		Failed:     failed,
		Total:      task.TotalCount,
		Speed:      e.speed,
		ETA:        eta(task.TotalCount-processed, e.speed),
		Percentage: domain.Percentage(processed, task.TotalCount),
		At:         now,
	}
	t.mu.Unlock()

	if emit {
		t.emit(event)
	}
	return event
}

// StopTracking removes the task's entry and returns its final figures. For an
// untracked task the summary is derived from the task itself.
func (t *Tracker) StopTracking(task *domain.Task) Summary {
	t.mu.Lock()
	e, ok := t.entries[task.ID]
	delete(t.entries, task.ID)
	now := t.now()
	t.mu.Unlock()

	if !ok {
		s := Summary{
			TaskID:    task.ID,
			Processed: task.ProcessCount,
			Success:   task.SuccessCount,
			Failed:    task.FailCount,
		}
		if task.StartedAt != nil {
			s.Duration = now.Sub(*task.StartedAt)
			s.AverageSpeed = average(task.ProcessCount, s.Duration)
		}
		return s
	}

	duration := now.Sub(e.startedAt)
	return Summary{
		TaskID:       task.ID,
		Processed:    e.processed,
		Success:      e.success,
		Failed:       e.failed,
		Duration:     duration,
		AverageSpeed: average(e.processed, duration),
	}
}

// GetProgress returns live figures when the task is tracked in this process
// and the persisted counters otherwise.
func (t *Tracker) GetProgress(task *domain.Task) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[task.ID]
	if !ok {
		return Progress{
			TaskID:     task.ID,
			Processed:  task.ProcessCount,
			Success:    task.SuccessCount,
			Failed:     task.FailCount,
			Total:      task.TotalCount,
			Percentage: task.Percentage(),
		}
	}

	return Progress{
		TaskID:     task.ID,
		Processed:  e.processed,
		Success:    e.success,
		Failed:     e.failed,
		Total:      task.TotalCount,
		Percentage: domain.Percentage(e.processed, task.TotalCount),
		Speed:      e.speed,
		ETA:        eta(task.TotalCount-e.processed, e.speed),
		Elapsed:    t.now().Sub(e.startedAt),
		Live:       true,
	}
}

// TrackedTaskIDs lists the tasks tracked in this process.
func (t *Tracker) TrackedTaskIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) emit(event Event) {
	for _, o := range t.observers {
		notify(o, event)
	}
}

func notify(o Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("progress observer panicked",
				slog.String("task_id", event.TaskID),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	o.OnProgress(event)
}

func eta(remaining int, speed float64) *time.Duration {
	if speed <= 0 {
		return nil
	}
	if remaining < 0 {
		remaining = 0
	}
	d := time.Duration(math.Round(float64(remaining)/speed)) * time.Second
	return &d
}

func average(processed int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return round2(float64(processed) / d.Seconds())
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

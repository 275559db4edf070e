// Package metrics provides Prometheus metrics for observability.
// Metrics are organized by domain: HTTP requests, import tasks, batches, queue and database.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"async-import/internal/progress"
)

const (
	namespace = "async_import"
)

var (
	// HTTP metrics - track request volume and latency
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// Task metrics - track import task lifecycle
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "total",
			Help:      "Total number of import tasks reaching a status, by entity and status",
		},
		[]string{"entity", "status"},
	)

	TasksInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "in_progress",
			Help:      "Number of import tasks dispatched by this process and not yet finished",
		},
		[]string{"entity"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Import task duration from start to completion in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"entity"},
	)

	RetriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "retries_scheduled_total",
			Help:      "Total number of automatic task retries scheduled, by entity",
		},
		[]string{"entity"},
	)

	// Row metrics - track rows within batches
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rows",
			Name:      "processed_total",
			Help:      "Total number of rows processed by entity and result",
		},
		[]string{"entity", "result"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batches",
			Name:      "total",
			Help:      "Total number of batch deliveries by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	BatchProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batches",
			Name:      "duration_seconds",
			Help:      "Batch processing duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"entity"},
	)

	ProgressSpeed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "rows_per_second",
			Help:      "Last observed import throughput by entity",
		},
		[]string{"entity"},
	)

	// Queue metrics
	QueueEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Total number of queue messages enqueued by type and result",
		},
		[]string{"type", "result"},
	)

	// Database metrics - track database operation performance
	DBConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Database connection pool stats",
		},
		[]string{"state"},
	)
)

// Batch outcomes.
const (
	BatchApplied   = "applied"
	BatchStale     = "stale"
	BatchDuplicate = "duplicate"
	BatchFailed    = "failed"
)

// PoolStats is an interface for getting pool statistics
// This allows for easier testing by mocking the pool stats
type PoolStats interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
}

// PoolStatsProvider is an interface for providing pool stats
type PoolStatsProvider interface {
	Stat() PoolStats
}

// pgxPoolAdapter adapts pgxpool.Pool to PoolStatsProvider
type pgxPoolAdapter struct {
	pool *pgxpool.Pool
}

func (a *pgxPoolAdapter) Stat() PoolStats {
	return a.pool.Stat()
}

// PoolStatsCollector collects database pool statistics periodically
type PoolStatsCollector struct {
	provider PoolStatsProvider
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPoolStatsCollector creates a new pool stats collector
func NewPoolStatsCollector(pool *pgxpool.Pool) *PoolStatsCollector {
	return &PoolStatsCollector{
		provider: &pgxPoolAdapter{pool: pool},
		stopChan: make(chan struct{}),
	}
}

// NewPoolStatsCollectorWithProvider creates a new pool stats collector with a custom provider (for testing)
func NewPoolStatsCollectorWithProvider(provider PoolStatsProvider) *PoolStatsCollector {
	return &PoolStatsCollector{
		provider: provider,
		stopChan: make(chan struct{}),
	}
}

// Start begins collecting pool stats every interval
func (c *PoolStatsCollector) Start(interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopChan:
				return
			}
		}
	}()
}

func (c *PoolStatsCollector) collect() {
	stats := c.provider.Stat()
	DBConnectionPoolSize.WithLabelValues("total").Set(float64(stats.TotalConns()))
	DBConnectionPoolSize.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	DBConnectionPoolSize.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
}

// Stop stops the pool stats collector
func (c *PoolStatsCollector) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}

// StartTask increments the in-progress gauge for a dispatched task.
func StartTask(entity string) {
	TasksInProgress.WithLabelValues(entity).Inc()
}

// EndTask decrements the in-progress gauge for a task.
func EndTask(entity string) {
	TasksInProgress.WithLabelValues(entity).Dec()
}

// ObserveTaskStatus counts a task reaching status.
func ObserveTaskStatus(entity, status string) {
	TasksTotal.WithLabelValues(entity, status).Inc()
}

// ObserveTaskCompletion records metrics when a task completes.
func ObserveTaskCompletion(entity string, durationSeconds float64) {
	ObserveTaskStatus(entity, "completed")
	TaskDuration.WithLabelValues(entity).Observe(durationSeconds)
}

// ObserveBatch records one batch delivery and the rows it applied.
func ObserveBatch(entity, outcome string, durationSeconds float64, successCount, failureCount int) {
	BatchesTotal.WithLabelValues(entity, outcome).Inc()
	if outcome != BatchApplied {
		return
	}
	BatchProcessingDuration.WithLabelValues(entity).Observe(durationSeconds)
	if successCount > 0 {
		RowsProcessed.WithLabelValues(entity, "success").Add(float64(successCount))
	}
	if failureCount > 0 {
		RowsProcessed.WithLabelValues(entity, "failure").Add(float64(failureCount))
	}
}

// ObserveRetryScheduled counts an automatic retry.
func ObserveRetryScheduled(entity string) {
	RetriesScheduled.WithLabelValues(entity).Inc()
}

// ObserveEnqueue counts a queue message by type and result.
func ObserveEnqueue(taskType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	QueueEnqueued.WithLabelValues(taskType, result).Inc()
}

// ProgressObserver exports progress events as throughput gauges.
type ProgressObserver struct{}

func (ProgressObserver) OnProgress(e progress.Event) {
	ProgressSpeed.WithLabelValues(e.Entity).Set(e.Speed)
}

// Timer is a helper for measuring operation duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time since the timer was created
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Seconds())
}

// Seconds returns the elapsed time since the timer was created.
func (t *Timer) Seconds() float64 {
	return time.Since(t.start).Seconds()
}

// LogHealthCheckMetrics logs database pool stats (for debugging)
func LogHealthCheckMetrics(ctx context.Context, pool *pgxpool.Pool) {
	stats := pool.Stat()
	slog.DebugContext(ctx, "Database pool stats",
		slog.Int("total_conns", int(stats.TotalConns())),
		slog.Int("idle_conns", int(stats.IdleConns())),
		slog.Int("acquired_conns", int(stats.AcquiredConns())),
		slog.Int64("acquire_count", stats.AcquireCount()),
		slog.Int64("canceled_acquire_count", stats.CanceledAcquireCount()),
	)
}

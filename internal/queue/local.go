package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"async-import/internal/logger"
	"async-import/internal/metrics"
	"async-import/internal/service"
)

// LocalSendTimeout bounds how long Enqueue blocks on a full buffer before
// handing the message to a background sender.
const LocalSendTimeout = 5 * time.Second

// ErrQueueClosed is returned when enqueueing on a closed LocalQueue.
var ErrQueueClosed = errors.New("queue is shutting down")

type localJob struct {
	taskType string
	run      func(ctx context.Context) error
}

// LocalQueue is an in-process service.Queue backed by a worker pool. It
// delivers at most once: messages pending at Close are lost and recovered
// by the retry sweep.
type LocalQueue struct {
	workerCount int
	timeout     time.Duration

	starts  StartHandler
	batches BatchHandler

	jobQueue chan localJob
	stopChan chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
}

var _ service.Queue = (*LocalQueue)(nil)

// NewLocalQueue creates a LocalQueue with workerCount workers. Each message
// runs with the given timeout. Call Bind before enqueueing.
func NewLocalQueue(workerCount int, timeout time.Duration) *LocalQueue {
	if workerCount < 1 {
		workerCount = 1
	}
	q := &LocalQueue{
		workerCount: workerCount,
		timeout:     timeout,
		jobQueue:    make(chan localJob, workerCount*2),
		stopChan:    make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Bind sets the message consumers. The dispatcher needs the queue to be
// built first, so consumers are attached afterwards.
func (q *LocalQueue) Bind(starts StartHandler, batches BatchHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.starts = starts
	q.batches = batches
}

func (q *LocalQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case job, ok := <-q.jobQueue:
			if !ok {
				return
			}
			q.run(job)
		case <-q.stopChan:
			return
		}
	}
}

func (q *LocalQueue) run(job localJob) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	if err := job.run(ctx); err != nil {
		logger.Error("queue task failed", slog.String("task_type", job.taskType), logger.Err(err))
	}
}

// EnqueueStart schedules a start message, after delay when positive.
func (q *LocalQueue) EnqueueStart(_ context.Context, msg service.StartMessage, delay time.Duration) error {
	job := localJob{taskType: TypeStart, run: func(ctx context.Context) error {
		q.mu.RLock()
		h := q.starts
		q.mu.RUnlock()
		if h == nil {
			return errors.New("no start handler bound")
		}
		return h.HandleStart(ctx, msg)
	}}
	if delay <= 0 {
		return q.send(job)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.ObserveEnqueue(job.taskType, ErrQueueClosed)
		return ErrQueueClosed
	}
	time.AfterFunc(delay, func() {
		if err := q.send(job); err != nil {
			logger.WithTaskID(msg.TaskID).Warn("delayed start dropped", logger.Err(err))
		}
	})
	metrics.ObserveEnqueue(job.taskType, nil)
	return nil
}

// EnqueueBatch schedules a batch message.
func (q *LocalQueue) EnqueueBatch(_ context.Context, msg service.BatchMessage) error {
	return q.send(localJob{taskType: TypeBatch, run: func(ctx context.Context) error {
		q.mu.RLock()
		h := q.batches
		q.mu.RUnlock()
		if h == nil {
			return errors.New("no batch handler bound")
		}
		return h.Process(ctx, msg)
	}})
}

func (q *LocalQueue) send(job localJob) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		metrics.ObserveEnqueue(job.taskType, ErrQueueClosed)
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	metrics.ObserveEnqueue(job.taskType, nil)
	select {
	case q.jobQueue <- job:
	case <-time.After(LocalSendTimeout):
		logger.Warn("queue full, message will be delivered when capacity is available",
			slog.String("task_type", job.taskType))
		go func() {
			select {
			case q.jobQueue <- job:
			case <-q.stopChan:
			}
		}()
	case <-q.stopChan:
		return ErrQueueClosed
	}
	return nil
}

// Close stops the workers once in-flight messages finish. Pending and
// delayed messages are dropped.
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stopChan)
	q.wg.Wait()
}

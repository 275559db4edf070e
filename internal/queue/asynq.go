package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"async-import/internal/metrics"
	"async-import/internal/service"
)

// Enqueuer is the subset of *asynq.Client used to send tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DefaultMaxRetry bounds asynq redelivery of a message whose handler
// returned an error.
const DefaultMaxRetry = 5

// AsynqQueue implements service.Queue on top of asynq.
type AsynqQueue struct {
	client   Enqueuer
	queue    string
	maxRetry int
}

var _ service.Queue = (*AsynqQueue)(nil)

// NewAsynqQueue creates an AsynqQueue sending to the named asynq queue.
func NewAsynqQueue(client Enqueuer, queueName string) *AsynqQueue {
	return &AsynqQueue{client: client, queue: queueName, maxRetry: DefaultMaxRetry}
}

// EnqueueStart sends a start message, delayed when delay is positive.
func (q *AsynqQueue) EnqueueStart(ctx context.Context, msg service.StartMessage, delay time.Duration) error {
	task, err := NewStartTask(msg)
	if err != nil {
		return err
	}
	opts := q.options()
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	return q.enqueue(ctx, task, opts)
}

// EnqueueBatch sends a batch message.
func (q *AsynqQueue) EnqueueBatch(ctx context.Context, msg service.BatchMessage) error {
	task, err := NewBatchTask(msg)
	if err != nil {
		return err
	}
	return q.enqueue(ctx, task, q.options())
}

// EnqueueCleanup asks a worker to run retention cleanup.
func (q *AsynqQueue) EnqueueCleanup(ctx context.Context, daysToKeep int) error {
	task, err := NewCleanupTask(daysToKeep)
	if err != nil {
		return err
	}
	return q.enqueue(ctx, task, append(q.options(), asynq.MaxRetry(0)))
}

func (q *AsynqQueue) options() []asynq.Option {
	return []asynq.Option{asynq.Queue(q.queue), asynq.MaxRetry(q.maxRetry)}
}

func (q *AsynqQueue) enqueue(ctx context.Context, task *asynq.Task, opts []asynq.Option) error {
	_, err := q.client.EnqueueContext(ctx, task, opts...)
	metrics.ObserveEnqueue(task.Type(), err)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"async-import/internal/importer"
	"async-import/internal/queue"
	"async-import/internal/service"
)

type enqueued struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueued
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, enqueued{task: task, opts: opts})
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (any, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestAsynqQueue_EnqueueStart(t *testing.T) {
	ctx := context.Background()
	client := &fakeEnqueuer{}
	q := queue.NewAsynqQueue(client, "imports")

	require.NoError(t, q.EnqueueStart(ctx, service.StartMessage{TaskID: "t1"}, 0))
	require.NoError(t, q.EnqueueStart(ctx, service.StartMessage{TaskID: "t1", Retry: true, Attempt: 2}, 4*time.Minute))
	require.Len(t, client.calls, 2)

	first := client.calls[0]
	assert.Equal(t, queue.TypeStart, first.task.Type())
	assert.JSONEq(t, `{"task_id":"t1"}`, string(first.task.Payload()))
	name, ok := optionValue(first.opts, asynq.QueueOpt)
	require.True(t, ok)
	assert.Equal(t, "imports", name)
	_, delayed := optionValue(first.opts, asynq.ProcessInOpt)
	assert.False(t, delayed)

	second := client.calls[1]
	assert.JSONEq(t, `{"task_id":"t1","retry":true,"attempt":2}`, string(second.task.Payload()))
	delay, ok := optionValue(second.opts, asynq.ProcessInOpt)
	require.True(t, ok)
	assert.Equal(t, 4*time.Minute, delay)
}

func TestAsynqQueue_EnqueueBatch(t *testing.T) {
	client := &fakeEnqueuer{}
	q := queue.NewAsynqQueue(client, "imports")

	msg := service.BatchMessage{
		TaskID:    "t1",
		Attempt:   1,
		StartLine: 3,
		EndLine:   4,
		Rows:      []importer.Row{{"email": "a@example.com"}, {"email": "b@example.com"}},
	}
	require.NoError(t, q.EnqueueBatch(context.Background(), msg))
	require.Len(t, client.calls, 1)
	assert.Equal(t, queue.TypeBatch, client.calls[0].task.Type())
	retries, ok := optionValue(client.calls[0].opts, asynq.MaxRetryOpt)
	require.True(t, ok)
	assert.Equal(t, queue.DefaultMaxRetry, retries)
}

func TestAsynqQueue_EnqueueError(t *testing.T) {
	client := &fakeEnqueuer{err: errors.New("redis: connection refused")}
	q := queue.NewAsynqQueue(client, "imports")

	err := q.EnqueueStart(context.Background(), service.StartMessage{TaskID: "t1"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue import:task:start")
	assert.Contains(t, err.Error(), "connection refused")
}

type recordingConsumer struct {
	mu      sync.Mutex
	starts  []service.StartMessage
	batches []service.BatchMessage
	cleanup []int
	err     error
}

func (c *recordingConsumer) HandleStart(_ context.Context, msg service.StartMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts = append(c.starts, msg)
	return c.err
}

func (c *recordingConsumer) Process(_ context.Context, msg service.BatchMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, msg)
	return c.err
}

func (c *recordingConsumer) CleanupOldTasks(_ context.Context, days int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanup = append(c.cleanup, days)
	return 0, c.err
}

func (c *recordingConsumer) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.starts), len(c.batches)
}

func TestServeMux_RoutesMessages(t *testing.T) {
	ctx := context.Background()
	c := &recordingConsumer{}
	mux := queue.NewServeMux(c, c, c)

	start, err := queue.NewStartTask(service.StartMessage{TaskID: "t1", Retry: true, Attempt: 1})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, start))

	batch, err := queue.NewBatchTask(service.BatchMessage{
		TaskID: "t1", Attempt: 1, StartLine: 1, EndLine: 1,
		Rows: []importer.Row{{"email": "a@example.com", "age": 30}},
	})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, batch))

	cleanup, err := queue.NewCleanupTask(30)
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, cleanup))

	assert.Equal(t, []service.StartMessage{{TaskID: "t1", Retry: true, Attempt: 1}}, c.starts)
	require.Len(t, c.batches, 1)
	assert.Equal(t, "a@example.com", c.batches[0].Rows[0]["email"])
	assert.Equal(t, float64(30), c.batches[0].Rows[0]["age"])
	assert.Equal(t, []int{30}, c.cleanup)
}

func TestServeMux_MalformedPayloadSkipsRetry(t *testing.T) {
	c := &recordingConsumer{}
	mux := queue.NewServeMux(c, c, c)

	for _, typ := range []string{queue.TypeStart, queue.TypeBatch, queue.TypeCleanup} {
		err := mux.ProcessTask(context.Background(), asynq.NewTask(typ, []byte("{not json")))
		require.Error(t, err, typ)
		assert.ErrorIs(t, err, asynq.SkipRetry, typ)
	}
	starts, batches := c.counts()
	assert.Zero(t, starts)
	assert.Zero(t, batches)
}

func TestServeMux_HandlerErrorIsRetried(t *testing.T) {
	c := &recordingConsumer{err: errors.New("database unavailable")}
	mux := queue.NewServeMux(c, c, c)

	task, err := queue.NewStartTask(service.StartMessage{TaskID: "t1"})
	require.NoError(t, err)
	err = mux.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestLocalQueue_DeliversMessages(t *testing.T) {
	ctx := context.Background()
	c := &recordingConsumer{}
	q := queue.NewLocalQueue(2, time.Second)
	defer q.Close()
	q.Bind(c, c)

	require.NoError(t, q.EnqueueStart(ctx, service.StartMessage{TaskID: "t1"}, 0))
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.EnqueueBatch(ctx, service.BatchMessage{TaskID: "t1", StartLine: i, EndLine: i}))
	}

	require.Eventually(t, func() bool {
		starts, batches := c.counts()
		return starts == 1 && batches == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLocalQueue_DelayedStart(t *testing.T) {
	c := &recordingConsumer{}
	q := queue.NewLocalQueue(1, time.Second)
	defer q.Close()
	q.Bind(c, c)

	require.NoError(t, q.EnqueueStart(context.Background(), service.StartMessage{TaskID: "t1", Retry: true}, 50*time.Millisecond))

	starts, _ := c.counts()
	assert.Zero(t, starts)
	require.Eventually(t, func() bool {
		starts, _ := c.counts()
		return starts == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLocalQueue_Closed(t *testing.T) {
	q := queue.NewLocalQueue(1, time.Second)
	q.Close()
	q.Close()

	err := q.EnqueueBatch(context.Background(), service.BatchMessage{TaskID: "t1"})
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
	err = q.EnqueueStart(context.Background(), service.StartMessage{TaskID: "t1"}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
}

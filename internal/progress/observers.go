package progress

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"async-import/internal/logger"
)

const (
	defaultPublishBuffer  = 256
	defaultPublishTimeout = 2 * time.Second
)

// LogObserver writes each event at debug level.
type LogObserver struct{}

func (LogObserver) OnProgress(e Event) {
	args := []any{
		slog.String("task_id", e.TaskID),
		slog.String("entity", e.Entity),
		slog.Int("processed", e.Processed),
		slog.Int("total", e.Total),
		slog.Int("success", e.Success),
		slog.Int("failed", e.Failed),
		slog.Float64("speed", e.Speed),
		slog.Float64("percentage", e.Percentage),
	}
	if e.ETA != nil {
		args = append(args, slog.Duration("eta", *e.ETA))
	}
	logger.Debug("import progress", args...)
}

// Publisher is the subset of *redis.Client used by RedisObserver.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisObserver publishes events as JSON on a Redis pub/sub channel. Events
// are queued and published by Run; when the queue is full they are dropped.
type RedisObserver struct {
	client  Publisher
	channel string
	timeout time.Duration
	events  chan Event
	dropped atomic.Int64
}

// NewRedisObserver creates a RedisObserver. Call Run to start publishing.
func NewRedisObserver(client Publisher, channel string, buffer int) *RedisObserver {
	if buffer < 1 {
		buffer = defaultPublishBuffer
	}
	return &RedisObserver{
		client:  client,
		channel: channel,
		timeout: defaultPublishTimeout,
		events:  make(chan Event, buffer),
	}
}

// OnProgress never blocks.
func (o *RedisObserver) OnProgress(e Event) {
	select {
	case o.events <- e:
	default:
		o.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (o *RedisObserver) Dropped() int64 {
	return o.dropped.Load()
}

// Run publishes queued events until ctx is done.
func (o *RedisObserver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-o.events:
			o.publish(ctx, e)
		}
	}
}

func (o *RedisObserver) publish(ctx context.Context, e Event) {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(e)
	if err != nil {
		logger.Warn("encode progress event", slog.String("task_id", e.TaskID), logger.Err(err))
		return
	}

	pctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.client.Publish(pctx, o.channel, payload).Err(); err != nil {
		logger.Warn("publish progress event",
			slog.String("task_id", e.TaskID),
			slog.String("channel", o.channel),
			logger.Err(err),
		)
	}
}

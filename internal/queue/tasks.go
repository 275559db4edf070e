// Package queue carries pipeline messages between processes. The asynq
// backend uses Redis; the local backend runs everything in-process.
package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"async-import/internal/service"
)

// Task type names.
const (
	TypeStart   = "import:task:start"
	TypeBatch   = "import:batch:process"
	TypeCleanup = "import:cleanup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CleanupPayload is the payload of a TypeCleanup task.
type CleanupPayload struct {
	DaysToKeep int `json:"days_to_keep"`
}

// NewStartTask builds a TypeStart task.
func NewStartTask(msg service.StartMessage, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode start message: %w", err)
	}
	return asynq.NewTask(TypeStart, payload, opts...), nil
}

// NewBatchTask builds a TypeBatch task.
func NewBatchTask(msg service.BatchMessage, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode batch message: %w", err)
	}
	return asynq.NewTask(TypeBatch, payload, opts...), nil
}

// NewCleanupTask builds a TypeCleanup task.
func NewCleanupTask(daysToKeep int, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(CleanupPayload{DaysToKeep: daysToKeep})
	if err != nil {
		return nil, fmt.Errorf("encode cleanup payload: %w", err)
	}
	return asynq.NewTask(TypeCleanup, payload, opts...), nil
}

func decode(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

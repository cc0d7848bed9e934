package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of background work. Consumers process tasks at least
// once, so every handler keyed off a task must be idempotent.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTask wraps a payload struct into a Task.
func NewTask(kind string, payload interface{}) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Queue is a durable at-least-once task queue. Dequeue moves the task to a
// per-queue processing list; Ack removes it once the handler finishes. A
// crashed consumer leaves the task on the processing list for reclaim.
type Queue interface {
	Enqueue(ctx context.Context, name string, task Task) error
	Dequeue(ctx context.Context, name string, timeout time.Duration) (*Task, error)
	Ack(ctx context.Context, name string, task Task) error
	Requeue(ctx context.Context, name string, task Task) error
}

// Well-known queue names.
const (
	SyncPushQueue = "calsync:push"
	SyncPullQueue = "calsync:pull"
	WorkflowQueue = "workflow:execute"
)

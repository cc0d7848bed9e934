package calsync

import (
	"context"
	"encoding/json"

	"github.com/clearbook/scheduling-engine/queue"
)

// Op is the push operation against the external provider.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// PushPayload is the sync-push task body. Attempt rides along so retries
// keep their backoff position across requeues.
type PushPayload struct {
	AppointmentID uint `json:"appointment_id"`
	Op            Op   `json:"op"`
	Attempt       int  `json:"attempt"`
}

// PullPayload asks the puller to sync one connection, typically after a
// provider webhook.
type PullPayload struct {
	ConnectionID uint `json:"connection_id"`
}

// EnqueuePush queues an external upsert/delete for an appointment. Called
// from booking arbitration after commit; never blocks on provider latency.
func EnqueuePush(ctx context.Context, q queue.Queue, appointmentID uint, op Op) error {
	task, err := queue.NewTask("sync_push", PushPayload{AppointmentID: appointmentID, Op: op})
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, queue.SyncPushQueue, task)
}

// EnqueuePull queues a pull-sync for one connection.
func EnqueuePull(ctx context.Context, q queue.Queue, connectionID uint) error {
	task, err := queue.NewTask("sync_pull", PullPayload{ConnectionID: connectionID})
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, queue.SyncPullQueue, task)
}

func decodePush(raw json.RawMessage) (PushPayload, error) {
	var p PushPayload
	err := json.Unmarshal(raw, &p)
	return p, err
}

func decodePull(raw json.RawMessage) (PullPayload, error) {
	var p PullPayload
	err := json.Unmarshal(raw, &p)
	return p, err
}

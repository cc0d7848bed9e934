package calsync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearbook/scheduling-engine/queue"
)

// A malformed pull payload must be acked, not left stranded in flight.
func TestPullerRunAcksBadPayload(t *testing.T) {
	q := queue.NewMemory()
	ctx := context.Background()
	bad := queue.Task{ID: "t1", Kind: "sync_pull", Payload: json.RawMessage("{")}
	if err := q.Enqueue(ctx, queue.SyncPullQueue, bad); err != nil {
		t.Fatal(err)
	}

	p := &Puller{Queue: q, Log: zerolog.Nop(), Now: func() time.Time { return time.Now().UTC() }}
	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	p.Run(runCtx)

	if n := q.Len(queue.SyncPullQueue); n != 0 {
		t.Errorf("pending after run = %d, want 0", n)
	}
	if n := q.ProcessingLen(queue.SyncPullQueue); n != 0 {
		t.Errorf("in-flight after run = %d, want 0", n)
	}
}

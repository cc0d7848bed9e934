package workflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/queue"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{6, 32 * time.Minute},
		{7, time.Hour},  // 64m capped
		{20, time.Hour}, // stays capped
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIdempotencyKey(t *testing.T) {
	window := time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC)

	key := IdempotencyKey(3, 17, window)
	if key != "wf-3-17-1748872800" {
		t.Errorf("IdempotencyKey() = %q", key)
	}

	// Same inputs, different zone representation of the same instant.
	ny, _ := time.LoadLocation("America/New_York")
	if other := IdempotencyKey(3, 17, window.In(ny)); other != key {
		t.Errorf("key should be zone-independent: %q != %q", other, key)
	}

	if IdempotencyKey(3, 17, window.Add(time.Hour)) == key {
		t.Error("different windows must produce different keys")
	}
}

func TestStale(t *testing.T) {
	tests := []struct {
		name    string
		trigger models.WorkflowTrigger
		status  models.AppointmentStatus
		want    bool
	}{
		{"reminder for canceled appointment", models.TriggerBeforeStart, models.StatusCanceled, true},
		{"reminder for rescheduled appointment", models.TriggerBeforeStart, models.StatusRescheduled, true},
		{"reminder for confirmed appointment", models.TriggerBeforeStart, models.StatusConfirmed, false},
		{"confirmation for canceled appointment", models.TriggerConfirmed, models.StatusCanceled, true},
		{"follow-up after cancel", models.TriggerAfterEnd, models.StatusCanceled, true},
		{"follow-up for completed", models.TriggerAfterEnd, models.StatusCompleted, false},
		{"cancel trigger never stale", models.TriggerCanceled, models.StatusCanceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stale(tt.trigger, tt.status); got != tt.want {
				t.Errorf("stale(%s, %s) = %v, want %v", tt.trigger, tt.status, got, tt.want)
			}
		})
	}
}

// A malformed execute payload must be acked, not left stranded in flight.
func TestExecutorRunAcksBadPayload(t *testing.T) {
	q := queue.NewMemory()
	ctx := context.Background()
	bad := queue.Task{ID: "t1", Kind: "workflow_execute", Payload: json.RawMessage("{")}
	if err := q.Enqueue(ctx, queue.WorkflowQueue, bad); err != nil {
		t.Fatal(err)
	}

	e := &Executor{Queue: q, Log: zerolog.Nop(), Now: func() time.Time { return time.Now().UTC() }}
	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	e.Run(runCtx)

	if n := q.Len(queue.WorkflowQueue); n != 0 {
		t.Errorf("pending after run = %d, want 0", n)
	}
	if n := q.ProcessingLen(queue.WorkflowQueue); n != 0 {
		t.Errorf("in-flight after run = %d, want 0", n)
	}
}

package queue

import (
	"context"
	"testing"
	"time"
)

func mustTask(t *testing.T, kind string) Task {
	t.Helper()
	task, err := NewTask(kind, map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func TestMemoryEnqueueDequeueAck(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	task := mustTask(t, "sync_push")
	if err := q.Enqueue(ctx, SyncPushQueue, task); err != nil {
		t.Fatal(err)
	}
	if q.Len(SyncPushQueue) != 1 {
		t.Fatalf("Len = %d, want 1", q.Len(SyncPushQueue))
	}

	got, err := q.Dequeue(ctx, SyncPushQueue, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != task.ID {
		t.Fatalf("Dequeue() = %v, want task %s", got, task.ID)
	}
	if q.Len(SyncPushQueue) != 0 {
		t.Error("dequeued task should leave pending")
	}

	if err := q.Ack(ctx, SyncPushQueue, *got); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryDequeueTimeout(t *testing.T) {
	q := NewMemory()
	got, err := q.Dequeue(context.Background(), WorkflowQueue, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Dequeue on empty queue = %v, want nil", got)
	}
}

func TestMemoryDequeueWakesOnEnqueue(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	task := mustTask(t, "sync_pull")

	done := make(chan *Task, 1)
	go func() {
		got, _ := q.Dequeue(ctx, SyncPullQueue, 5*time.Second)
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Enqueue(ctx, SyncPullQueue, task); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		if got == nil || got.ID != task.ID {
			t.Errorf("woken Dequeue() = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue did not wake on enqueue")
	}
}

func TestMemoryRequeue(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	task := mustTask(t, "workflow")

	q.Enqueue(ctx, WorkflowQueue, task)
	got, _ := q.Dequeue(ctx, WorkflowQueue, time.Second)
	if got == nil {
		t.Fatal("expected task")
	}

	if err := q.Requeue(ctx, WorkflowQueue, *got); err != nil {
		t.Fatal(err)
	}
	if q.Len(WorkflowQueue) != 1 {
		t.Fatalf("Len after requeue = %d, want 1", q.Len(WorkflowQueue))
	}

	again, _ := q.Dequeue(ctx, WorkflowQueue, time.Second)
	if again == nil || again.ID != task.ID {
		t.Errorf("requeued task not redelivered: %v", again)
	}
}

func TestMemoryContextCancel(t *testing.T) {
	q := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx, SyncPushQueue, time.Minute)
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue did not observe cancellation")
	}
}

func TestQueuesAreIndependent(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	q.Enqueue(ctx, SyncPushQueue, mustTask(t, "sync_push"))
	got, err := q.Dequeue(ctx, WorkflowQueue, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("task leaked across queues: %v", got)
	}
}

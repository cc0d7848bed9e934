package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Queue used by tests and by single-node deployments
// that run without Redis. Same at-least-once contract as the Redis queue.
type Memory struct {
	mu         sync.Mutex
	pending    map[string][]Task
	processing map[string][]Task
	wake       chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		pending:    make(map[string][]Task),
		processing: make(map[string][]Task),
		wake:       make(chan struct{}, 1),
	}
}

func (m *Memory) Enqueue(_ context.Context, name string, task Task) error {
	m.mu.Lock()
	m.pending[name] = append(m.pending[name], task)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

func (m *Memory) Dequeue(ctx context.Context, name string, timeout time.Duration) (*Task, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		m.mu.Lock()
		if q := m.pending[name]; len(q) > 0 {
			task := q[0]
			m.pending[name] = q[1:]
			m.processing[name] = append(m.processing[name], task)
			m.mu.Unlock()
			return &task, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-m.wake:
		}
	}
}

func (m *Memory) Ack(_ context.Context, name string, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processing[name] = removeTask(m.processing[name], task.ID)
	return nil
}

func (m *Memory) Requeue(_ context.Context, name string, task Task) error {
	m.mu.Lock()
	m.processing[name] = removeTask(m.processing[name], task.ID)
	m.pending[name] = append(m.pending[name], task)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len reports pending depth, for tests.
func (m *Memory) Len(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[name])
}

// ProcessingLen reports in-flight depth, for tests.
func (m *Memory) ProcessingLen(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.processing[name])
}

func removeTask(tasks []Task, id string) []Task {
	for i, t := range tasks {
		if t.ID == id {
			return append(tasks[:i], tasks[i+1:]...)
		}
	}
	return tasks
}

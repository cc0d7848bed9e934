package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Queue: LPUSH to the pending list, BRPOPLPUSH onto a
// processing list, LREM on ack. Tasks survive process restarts; anything left
// on the processing list can be reclaimed by ReclaimStale.
type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func pendingKey(name string) string    { return "queue:" + name }
func processingKey(name string) string { return "queue:" + name + ":processing" }

func (r *Redis) Enqueue(ctx context.Context, name string, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := r.Client.LPush(ctx, pendingKey(name), raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", name, err)
	}
	return nil
}

func (r *Redis) Dequeue(ctx context.Context, name string, timeout time.Duration) (*Task, error) {
	raw, err := r.Client.BRPopLPush(ctx, pendingKey(name), processingKey(name), timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", name, err)
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// Poison entry; drop it from processing so it does not wedge the queue.
		r.Client.LRem(ctx, processingKey(name), 1, raw)
		return nil, fmt.Errorf("decode task from %s: %w", name, err)
	}
	return &task, nil
}

func (r *Redis) Ack(ctx context.Context, name string, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return r.Client.LRem(ctx, processingKey(name), 1, raw).Err()
}

func (r *Redis) Requeue(ctx context.Context, name string, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	pipe.LRem(ctx, processingKey(name), 1, raw)
	pipe.LPush(ctx, pendingKey(name), raw)
	_, err = pipe.Exec(ctx)
	return err
}

// ReclaimStale pushes everything on the processing list back onto the
// pending list. Run at startup to recover tasks a crashed consumer held.
func (r *Redis) ReclaimStale(ctx context.Context, name string) (int, error) {
	n := 0
	for {
		raw, err := r.Client.RPopLPush(ctx, processingKey(name), pendingKey(name)).Result()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reclaim %s: %w", name, err)
		}
		_ = raw
		n++
	}
}

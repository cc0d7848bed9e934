package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clearbook/scheduling-engine/calsync"
	"github.com/clearbook/scheduling-engine/polls"
	"github.com/clearbook/scheduling-engine/queue"
	"github.com/clearbook/scheduling-engine/workflow"
)

// Jobs bundles the periodic work: workflow dispatch, calendar pulls, poll
// deadline sweeps and queue reclamation.
type Jobs struct {
	Dispatcher *workflow.Dispatcher
	Pusher     *calsync.Pusher
	Puller     *calsync.Puller
	Polls      *polls.Service
	Queue      queue.Queue
	Log        zerolog.Logger
}

// Start registers the schedules and starts the scheduler. The returned cron
// can be stopped on shutdown.
func Start(j Jobs) (*cron.Cron, error) {
	c := cron.New()

	// Every minute: move due workflow executions onto the queue.
	_, err := c.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		if err := j.Dispatcher.Tick(ctx); err != nil {
			j.Log.Error().Err(err).Msg("workflow dispatch tick failed")
		}
	})
	if err != nil {
		return nil, err
	}

	// Every minute: re-enqueue sync pushes whose persisted backoff elapsed.
	_, err = c.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		if err := j.Pusher.TickRetries(ctx); err != nil {
			j.Log.Error().Err(err).Msg("push retry tick failed")
		}
	})
	if err != nil {
		return nil, err
	}

	// Every five minutes: pull changes from every active calendar
	// connection. Webhooks cover the fast path; this catches missed ones.
	_, err = c.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if err := j.Puller.EnqueueAll(ctx); err != nil {
			j.Log.Error().Err(err).Msg("calendar pull enqueue failed")
		}
	})
	if err != nil {
		return nil, err
	}

	// Every ten minutes: close polls whose deadline passed.
	_, err = c.AddFunc("*/10 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := j.Polls.SweepExpired(ctx); err != nil {
			j.Log.Error().Err(err).Msg("poll sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}

	// Hourly: requeue tasks stranded on processing lists by crashed workers.
	if r, ok := j.Queue.(*queue.Redis); ok {
		_, err = c.AddFunc("0 * * * *", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			for _, name := range []string{queue.SyncPushQueue, queue.SyncPullQueue, queue.WorkflowQueue} {
				n, err := r.ReclaimStale(ctx, name)
				if err != nil {
					j.Log.Error().Err(err).Str("queue", name).Msg("reclaim failed")
					continue
				}
				if n > 0 {
					j.Log.Warn().Int("count", n).Str("queue", name).Msg("reclaimed stale tasks")
				}
			}
		})
		if err != nil {
			return nil, err
		}
	}

	c.Start()
	j.Log.Info().Msg("cron scheduler started")
	return c, nil
}

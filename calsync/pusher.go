package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/queue"
)

const (
	pushMaxAttempts = 6
	pushBackoffBase = 30 * time.Second
)

// Pusher consumes the sync-push queue and mirrors appointment state to every
// push-capable connection of the assigned host. Delivery is at-least-once;
// the provider upsert is keyed by the appointment's stable idempotency key,
// so replays never create duplicate external events.
type Pusher struct {
	DB        *gorm.DB
	Queue     queue.Queue
	Providers Registry
	Log       zerolog.Logger
	Now       func() time.Time
}

func NewPusher(db *gorm.DB, q queue.Queue, providers Registry, log zerolog.Logger) *Pusher {
	return &Pusher{
		DB:        db,
		Queue:     q,
		Providers: providers,
		Log:       log.With().Str("comp", "calsync.pusher").Logger(),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run consumes tasks until ctx is canceled.
func (p *Pusher) Run(ctx context.Context) {
	for {
		task, err := p.Queue.Dequeue(ctx, queue.SyncPushQueue, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Error().Err(err).Msg("dequeue push task")
			continue
		}
		if task == nil {
			continue
		}
		p.handle(ctx, *task)
	}
}

func (p *Pusher) handle(ctx context.Context, task queue.Task) {
	payload, err := decodePush(task.Payload)
	if err != nil {
		p.Log.Error().Err(err).Str("task", task.ID).Msg("bad push payload")
		_ = p.Queue.Ack(ctx, queue.SyncPushQueue, task)
		return
	}

	err = p.Process(ctx, payload)
	if err == nil {
		_ = p.Queue.Ack(ctx, queue.SyncPushQueue, task)
		return
	}

	var se *errs.ExternalSyncError
	transient := errors.As(err, &se) && se.Transient
	if transient && payload.Attempt+1 < pushMaxAttempts {
		// The queue has no delayed delivery, so the backoff lives in a
		// persisted retry row. TickRetries re-enqueues it once NextRunAt
		// passes; a crash in between loses nothing.
		retry := nextRetry(payload, p.Now())
		retry.LastError = err.Error()
		if derr := p.DB.Create(&retry).Error; derr != nil {
			p.Log.Error().Err(derr).Uint("appointment", payload.AppointmentID).Msg("persist push retry")
		} else {
			p.Log.Warn().Err(err).Uint("appointment", payload.AppointmentID).
				Int("attempt", retry.Attempts).Time("next_run_at", retry.NextRunAt).Msg("push failed, retry scheduled")
		}
	} else {
		p.Log.Error().Err(err).Uint("appointment", payload.AppointmentID).Msg("push failed permanently")
	}
	_ = p.Queue.Ack(ctx, queue.SyncPushQueue, task)
}

// nextRetry builds the persisted retry state after a transient failure,
// doubling the delay each attempt.
func nextRetry(payload PushPayload, now time.Time) models.SyncPushRetry {
	attempt := payload.Attempt + 1
	return models.SyncPushRetry{
		AppointmentID: payload.AppointmentID,
		Op:            string(payload.Op),
		Attempts:      attempt,
		NextRunAt:     now.Add(pushBackoffBase << attempt),
	}
}

// TickRetries re-enqueues pushes whose persisted backoff has elapsed. The
// conditional delete claims each row, so two tickers never double-enqueue.
func (p *Pusher) TickRetries(ctx context.Context) error {
	now := p.Now()
	var due []models.SyncPushRetry
	if err := p.DB.Where("next_run_at <= ?", now).Limit(200).Find(&due).Error; err != nil {
		return fmt.Errorf("load due push retries: %w", err)
	}
	for _, r := range due {
		res := p.DB.Unscoped().Delete(&models.SyncPushRetry{}, r.ID)
		if res.Error != nil {
			p.Log.Error().Err(res.Error).Uint("retry", r.ID).Msg("claim push retry")
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		task, err := queue.NewTask("sync_push", PushPayload{
			AppointmentID: r.AppointmentID,
			Op:            Op(r.Op),
			Attempt:       r.Attempts,
		})
		if err != nil {
			p.Log.Error().Err(err).Uint("retry", r.ID).Msg("build push retry task")
			continue
		}
		if err := p.Queue.Enqueue(ctx, queue.SyncPushQueue, task); err != nil {
			// Restore the row so the next tick retries the enqueue.
			p.DB.Create(&r)
			p.Log.Error().Err(err).Uint("retry", r.ID).Msg("enqueue push retry")
		}
	}
	return nil
}

// Process pushes one appointment to all its host's connections. Exported so
// the admin replay endpoint can rerun a failed attempt synchronously.
func (p *Pusher) Process(ctx context.Context, payload PushPayload) error {
	var appt models.Appointment
	if err := p.DB.First(&appt, payload.AppointmentID).Error; err != nil {
		return errs.SyncPermanent("internal", fmt.Errorf("load appointment %d: %w", payload.AppointmentID, err))
	}

	// Supersession check: do not push stale state. A delete op for an
	// appointment that is no longer canceled/rescheduled, or an upsert for
	// one that is, reflects an outdated task.
	op := payload.Op
	if appt.Status == models.StatusCanceled || appt.Status == models.StatusRescheduled {
		op = OpDelete
	}

	var connections []models.CalendarConnection
	err := p.DB.Where("host_id = ? AND active = ? AND direction IN ?",
		appt.HostID, true, []models.SyncDirection{models.SyncPush, models.SyncBoth}).
		Find(&connections).Error
	if err != nil {
		return errs.SyncTransient("internal", fmt.Errorf("load connections: %w", err))
	}

	key := IdempotencyKey(appt.PublicID)
	var firstErr error
	for _, conn := range connections {
		if err := p.pushOne(ctx, conn, appt, op, key, payload.Attempt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pusher) pushOne(ctx context.Context, conn models.CalendarConnection, appt models.Appointment, op Op, key string, attempt int) error {
	provider, ok := p.Providers[conn.Provider]
	if !ok {
		p.logAttempt(conn.ID, &appt.ID, key, models.SyncPermanent, "unknown_provider", fmt.Sprintf("no provider %q registered", conn.Provider), attempt)
		return errs.SyncPermanent(conn.Provider, fmt.Errorf("unknown provider"))
	}

	var err error
	switch op {
	case OpDelete:
		err = p.deleteOne(ctx, provider, conn, appt, key)
	default:
		err = p.upsertOne(ctx, provider, conn, appt, key)
	}

	if err == nil {
		p.logAttempt(conn.ID, &appt.ID, key, models.SyncSucceeded, "", "", attempt)
		now := p.Now()
		p.DB.Model(&models.CalendarConnection{}).Where("id = ?", conn.ID).Update("last_synced_at", now)
		return nil
	}

	outcome := models.SyncPermanent
	var se *errs.ExternalSyncError
	if errors.As(err, &se) && se.Transient {
		outcome = models.SyncTransient
	}
	p.logAttempt(conn.ID, &appt.ID, key, outcome, errorClass(err), err.Error(), attempt)
	return err
}

func (p *Pusher) upsertOne(ctx context.Context, provider Provider, conn models.CalendarConnection, appt models.Appointment, key string) error {
	ev := Event{
		Summary: fmt.Sprintf("Booking: %s", appt.InviteeName),
		Start:   appt.StartTime,
		End:     appt.EndTime,
	}
	externalID, err := provider.UpsertEvent(ctx, conn, ev, key)
	if err != nil {
		return err
	}

	// Record the mapping so pull-sync recognizes our own events. The
	// (connection, external) pair is unique; replays update in place.
	var mapping models.ExternalEventMapping
	res := p.DB.Where("connection_id = ? AND external_event_id = ?", conn.ID, externalID).First(&mapping)
	if res.Error == gorm.ErrRecordNotFound {
		mapping = models.ExternalEventMapping{
			ConnectionID:    conn.ID,
			ExternalEventID: externalID,
			AppointmentID:   &appt.ID,
			BusyStart:       appt.StartTime,
			BusyEnd:         appt.EndTime,
		}
		return p.DB.Create(&mapping).Error
	}
	if res.Error != nil {
		return errs.SyncTransient(provider.Name(), res.Error)
	}
	return p.DB.Model(&mapping).Updates(map[string]interface{}{
		"appointment_id": appt.ID,
		"busy_start":     appt.StartTime,
		"busy_end":       appt.EndTime,
	}).Error
}

func (p *Pusher) deleteOne(ctx context.Context, provider Provider, conn models.CalendarConnection, appt models.Appointment, key string) error {
	externalID := key
	var mapping models.ExternalEventMapping
	err := p.DB.Where("connection_id = ? AND appointment_id = ?", conn.ID, appt.ID).First(&mapping).Error
	if err == nil {
		externalID = mapping.ExternalEventID
	}

	if err := provider.DeleteEvent(ctx, conn, externalID); err != nil {
		return err
	}
	return p.DB.Where("connection_id = ? AND appointment_id = ?", conn.ID, appt.ID).
		Delete(&models.ExternalEventMapping{}).Error
}

func (p *Pusher) logAttempt(connID uint, apptID *uint, key string, outcome models.SyncOutcome, class, detail string, attempt int) {
	entry := models.SyncAttemptLog{
		ConnectionID:   connID,
		AppointmentID:  apptID,
		Direction:      "push",
		IdempotencyKey: key,
		Outcome:        outcome,
		ErrorClass:     class,
		ErrorDetail:    detail,
		RetryCount:     attempt,
	}
	if err := p.DB.Create(&entry).Error; err != nil {
		p.Log.Error().Err(err).Msg("append sync attempt log")
	}
}

func errorClass(err error) string {
	var se *errs.ExternalSyncError
	if errors.As(err, &se) {
		if se.Transient {
			return "transient"
		}
		return "permanent"
	}
	return "internal"
}

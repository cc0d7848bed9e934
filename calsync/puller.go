package calsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/queue"
)

// Puller reconciles externally created/changed/deleted events into the
// mapping table. External events without an internal mapping become opaque
// busy blocks, never full appointments. When an external edit collides with
// an internally confirmed appointment the internal record stays
// authoritative and the discrepancy is logged for manual resync.
type Puller struct {
	DB        *gorm.DB
	Queue     queue.Queue
	Providers Registry
	Log       zerolog.Logger
	Now       func() time.Time
}

func NewPuller(db *gorm.DB, q queue.Queue, providers Registry, log zerolog.Logger) *Puller {
	return &Puller{
		DB:        db,
		Queue:     q,
		Providers: providers,
		Log:       log.With().Str("comp", "calsync.puller").Logger(),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run consumes pull tasks until ctx is canceled.
func (p *Puller) Run(ctx context.Context) {
	for {
		task, err := p.Queue.Dequeue(ctx, queue.SyncPullQueue, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Error().Err(err).Msg("dequeue pull task")
			continue
		}
		if task == nil {
			continue
		}
		payload, err := decodePull(task.Payload)
		if err != nil {
			p.Log.Error().Err(err).Str("task", task.ID).Msg("bad pull payload")
		} else if err := p.SyncConnection(ctx, payload.ConnectionID); err != nil {
			p.Log.Error().Err(err).Uint("connection", payload.ConnectionID).Msg("pull sync failed")
		}
		_ = p.Queue.Ack(ctx, queue.SyncPullQueue, *task)
	}
}

// EnqueueAll queues a pull for every active pull-capable connection. The
// cron poller calls this periodically; webhooks enqueue single connections.
func (p *Puller) EnqueueAll(ctx context.Context) error {
	var connections []models.CalendarConnection
	err := p.DB.Where("active = ? AND direction IN ?",
		true, []models.SyncDirection{models.SyncPull, models.SyncBoth}).
		Find(&connections).Error
	if err != nil {
		return fmt.Errorf("load pull connections: %w", err)
	}
	for _, conn := range connections {
		if err := EnqueuePull(ctx, p.Queue, conn.ID); err != nil {
			return err
		}
	}
	return nil
}

// SyncConnection pulls changes since the connection's cursor and reconciles
// them. Idempotent: replaying a page updates the same mapping rows.
func (p *Puller) SyncConnection(ctx context.Context, connectionID uint) error {
	var conn models.CalendarConnection
	if err := p.DB.First(&conn, connectionID).Error; err != nil {
		return fmt.Errorf("load connection %d: %w", connectionID, err)
	}
	provider, ok := p.Providers[conn.Provider]
	if !ok {
		return fmt.Errorf("no provider %q registered", conn.Provider)
	}

	result, err := provider.PullChanges(ctx, conn, conn.SyncCursor)
	if err != nil {
		p.logAttempt(conn.ID, nil, models.SyncTransient, "pull_failed", err.Error())
		return err
	}

	for _, ev := range result.Events {
		if err := p.reconcile(conn, ev); err != nil {
			p.Log.Error().Err(err).Str("event", ev.ID).Msg("reconcile external event")
		}
	}

	now := p.Now()
	return p.DB.Model(&models.CalendarConnection{}).Where("id = ?", conn.ID).
		Updates(map[string]interface{}{
			"sync_cursor":    result.NextCursor,
			"last_synced_at": now,
		}).Error
}

func (p *Puller) reconcile(conn models.CalendarConnection, ev Event) error {
	// Events we pushed ourselves carry our metadata key; resolve them to the
	// internal appointment through the mapping table.
	var mapping models.ExternalEventMapping
	err := p.DB.Where("connection_id = ? AND external_event_id = ?", conn.ID, ev.ID).First(&mapping).Error

	switch {
	case err == gorm.ErrRecordNotFound:
		if ev.Canceled {
			return nil // unseen and already gone
		}
		if key := ev.Metadata[MetadataKey]; key != "" {
			return p.adoptPushedEvent(conn, ev, key)
		}
		// Foreign event: record an opaque busy block.
		mapping = models.ExternalEventMapping{
			ConnectionID:    conn.ID,
			ExternalEventID: ev.ID,
			BusyStart:       ev.Start,
			BusyEnd:         ev.End,
			AllDay:          ev.AllDay,
			Tentative:       ev.Tentative,
		}
		return p.DB.Create(&mapping).Error

	case err != nil:
		return err
	}

	if ev.Canceled {
		if mapping.AppointmentID != nil {
			// Externally deleted an event that mirrors an internal confirmed
			// appointment: internal record wins, log the conflict.
			p.logConflict(conn.ID, mapping.AppointmentID, "external deletion of internally managed event")
			return nil
		}
		return p.DB.Delete(&mapping).Error
	}

	if mapping.AppointmentID != nil {
		var appt models.Appointment
		if err := p.DB.First(&appt, *mapping.AppointmentID).Error; err != nil {
			return err
		}
		if appt.Status == models.StatusConfirmed &&
			(!ev.Start.Equal(appt.StartTime) || !ev.End.Equal(appt.EndTime)) {
			// External move conflicts with the internal time. Never
			// auto-resolve silently in either direction.
			p.logConflict(conn.ID, mapping.AppointmentID, fmt.Sprintf(
				"external time %s-%s differs from internal %s-%s",
				ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339),
				appt.StartTime.Format(time.RFC3339), appt.EndTime.Format(time.RFC3339)))
		}
		return nil
	}

	// Plain busy block moved or changed shape.
	return p.DB.Model(&mapping).Updates(map[string]interface{}{
		"busy_start": ev.Start,
		"busy_end":   ev.End,
		"all_day":    ev.AllDay,
		"tentative":  ev.Tentative,
	}).Error
}

// adoptPushedEvent rebuilds a missing mapping for an event we pushed before
// (e.g. after the mapping table was restored). The appointment is resolved
// through the idempotency key embedded in the metadata.
func (p *Puller) adoptPushedEvent(conn models.CalendarConnection, ev Event, key string) error {
	publicID := strings.TrimPrefix(key, "apt-")
	var appt models.Appointment
	err := p.DB.Where("public_id = ?", publicID).First(&appt).Error
	if err == gorm.ErrRecordNotFound {
		// Key points nowhere; treat as foreign busy time.
		appt = models.Appointment{}
	} else if err != nil {
		return err
	}

	mapping := models.ExternalEventMapping{
		ConnectionID:    conn.ID,
		ExternalEventID: ev.ID,
		BusyStart:       ev.Start,
		BusyEnd:         ev.End,
		AllDay:          ev.AllDay,
		Tentative:       ev.Tentative,
	}
	if appt.ID != 0 {
		mapping.AppointmentID = &appt.ID
	}
	return p.DB.Create(&mapping).Error
}

func (p *Puller) logAttempt(connID uint, apptID *uint, outcome models.SyncOutcome, class, detail string) {
	entry := models.SyncAttemptLog{
		ConnectionID:  connID,
		AppointmentID: apptID,
		Direction:     "pull",
		Outcome:       outcome,
		ErrorClass:    class,
		ErrorDetail:   detail,
	}
	if err := p.DB.Create(&entry).Error; err != nil {
		p.Log.Error().Err(err).Msg("append sync attempt log")
	}
}

func (p *Puller) logConflict(connID uint, apptID *uint, detail string) {
	entry := models.SyncAttemptLog{
		ConnectionID:  connID,
		AppointmentID: apptID,
		Direction:     "pull",
		Outcome:       models.SyncConflict,
		ErrorClass:    "conflict",
		ErrorDetail:   detail,
	}
	if err := p.DB.Create(&entry).Error; err != nil {
		p.Log.Error().Err(err).Msg("append sync conflict log")
	}
	p.Log.Warn().Uint("connection", connID).Str("detail", detail).Msg("sync conflict recorded")
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// SyncDirection controls which way a connection propagates events.
type SyncDirection string

const (
	SyncPush SyncDirection = "push"
	SyncPull SyncDirection = "pull"
	SyncBoth SyncDirection = "both"
)

// CalendarConnection is one host's link to an external calendar provider.
// The OAuth credential is encrypted at rest; plaintext never hits the table.
type CalendarConnection struct {
	gorm.Model
	HostID   uint   `json:"host_id" gorm:"index"`
	Host     User   `json:"host,omitempty" gorm:"foreignKey:HostID"`
	Provider string `json:"provider"` // "google" | "outlook"

	CredentialCiphertext []byte `json:"-"` // AES-GCM sealed OAuth token JSON
	CalendarEmail        string `json:"calendar_email"`

	Direction SyncDirection `json:"direction" gorm:"default:both"`

	// Pull cursor: opaque provider token (Google syncToken / Outlook delta
	// link) recorded after each successful pull.
	SyncCursor     string     `json:"-"`
	LastSyncedAt   *time.Time `json:"last_synced_at"`
	TreatTentative bool       `json:"treat_tentative_as_busy" gorm:"default:true"`
	TreatAllDay    bool       `json:"treat_all_day_as_busy" gorm:"default:true"`
	Active         bool       `json:"active" gorm:"default:true"`
}

// ExternalEventMapping joins internal appointments to external provider
// events by stable IDs. Internal and external rows are never embedded in one
// another so either side can be rebuilt independently during resync.
type ExternalEventMapping struct {
	gorm.Model
	ConnectionID    uint   `json:"connection_id" gorm:"index:idx_conn_external,unique"`
	ExternalEventID string `json:"external_event_id" gorm:"index:idx_conn_external,unique"`
	AppointmentID   *uint  `json:"appointment_id" gorm:"index"` // nil = opaque external busy block

	// Busy window as last seen from the provider; authoritative only for
	// unmapped external blocks.
	BusyStart time.Time `json:"busy_start"`
	BusyEnd   time.Time `json:"busy_end"`
	AllDay    bool      `json:"all_day"`
	Tentative bool      `json:"tentative"`
}

// SyncOutcome classifies one sync attempt.
type SyncOutcome string

const (
	SyncSucceeded SyncOutcome = "succeeded"
	SyncTransient SyncOutcome = "transient_failure"
	SyncPermanent SyncOutcome = "permanent_failure"
	SyncConflict  SyncOutcome = "conflict"
)

// SyncPushRetry is the durable backoff state for a transiently failed push:
// attempt count plus next-eligible-time. A cron tick re-enqueues due rows,
// so a worker crash between failure and retry loses nothing.
type SyncPushRetry struct {
	gorm.Model
	AppointmentID uint      `json:"appointment_id" gorm:"index"`
	Op            string    `json:"op"`
	Attempts      int       `json:"attempts"`
	NextRunAt     time.Time `json:"next_run_at" gorm:"index"`
	LastError     string    `json:"last_error"`
}

// SyncAttemptLog is append-only: one row per push or pull attempt, kept for
// reconciliation and admin replay. Conflict rows are what operators review
// when an external edit collides with an internally confirmed appointment.
type SyncAttemptLog struct {
	gorm.Model
	ConnectionID   uint        `json:"connection_id" gorm:"index"`
	AppointmentID  *uint       `json:"appointment_id" gorm:"index"`
	Direction      string      `json:"direction"` // "push" | "pull"
	IdempotencyKey string      `json:"idempotency_key" gorm:"index"`
	Outcome        SyncOutcome `json:"outcome" gorm:"index"`
	ErrorClass     string      `json:"error_class"`
	ErrorDetail    string      `json:"error_detail"`
	RetryCount     int         `json:"retry_count"`
	Resolved       bool        `json:"resolved"` // set when an operator replays or dismisses a conflict
}

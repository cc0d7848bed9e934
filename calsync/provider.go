package calsync

import (
	"context"
	"time"

	"github.com/clearbook/scheduling-engine/models"
)

// Event is the provider-neutral shape of an external calendar event.
type Event struct {
	ID        string            `json:"id"`
	Summary   string            `json:"summary"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	AllDay    bool              `json:"all_day"`
	Tentative bool              `json:"tentative"`
	Canceled  bool              `json:"canceled"`
	Metadata  map[string]string `json:"metadata,omitempty"` // carries the internal idempotency key
}

// PullResult is one page of externally changed events plus the cursor to
// resume from.
type PullResult struct {
	Events     []Event
	NextCursor string
}

// Provider is the boundary to one external calendar service. Upserts are
// keyed by an idempotency key stored in the event's metadata, so retried
// delivery never creates duplicate external events. Implementations must
// bound their own timeouts; callers never hold booking locks while calling.
type Provider interface {
	Name() string
	UpsertEvent(ctx context.Context, conn models.CalendarConnection, ev Event, idempotencyKey string) (externalID string, err error)
	DeleteEvent(ctx context.Context, conn models.CalendarConnection, externalID string) error
	PullChanges(ctx context.Context, conn models.CalendarConnection, cursor string) (PullResult, error)
}

// Registry resolves the provider for a connection.
type Registry map[string]Provider

func (r Registry) Add(p Provider) { r[p.Name()] = p }

// MetadataKey is where the internal appointment key lives on external events.
const MetadataKey = "clearbook_appointment"

// IdempotencyKey derives the stable external key for an appointment.
func IdempotencyKey(publicID string) string { return "apt-" + publicID }

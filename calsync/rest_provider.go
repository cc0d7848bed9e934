package calsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/utils"
)

// RESTProvider talks to a calendar provider's event API over plain HTTP.
// Google and Outlook connectors both run through this shape; only the base
// URL and credential audience differ per connection. Requests carry bounded
// timeouts and share an outbound rate limiter so a slow provider can never
// hold up the rest of the system (booking never waits on these calls).
type RESTProvider struct {
	ProviderName string
	BaseURL      string
	HTTP         *http.Client
	Limiter      *rate.Limiter
	Credentials  *utils.CredentialBox
}

func NewRESTProvider(name, baseURL string, creds *utils.CredentialBox) *RESTProvider {
	return &RESTProvider{
		ProviderName: name,
		BaseURL:      baseURL,
		HTTP:         &http.Client{Timeout: 15 * time.Second},
		Limiter:      rate.NewLimiter(rate.Limit(10), 20),
		Credentials:  creds,
	}
}

func (p *RESTProvider) Name() string { return p.ProviderName }

type restEvent struct {
	ID        string            `json:"id,omitempty"`
	Summary   string            `json:"summary"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	AllDay    bool              `json:"all_day"`
	Tentative bool              `json:"tentative"`
	Status    string            `json:"status,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *RESTProvider) UpsertEvent(ctx context.Context, conn models.CalendarConnection, ev Event, idempotencyKey string) (string, error) {
	body := restEvent{
		Summary:   ev.Summary,
		Start:     ev.Start,
		End:       ev.End,
		AllDay:    ev.AllDay,
		Tentative: ev.Tentative,
		Metadata:  map[string]string{MetadataKey: idempotencyKey},
	}
	var out restEvent
	err := p.do(ctx, conn, http.MethodPut, fmt.Sprintf("/calendars/%s/events/%s", conn.CalendarEmail, idempotencyKey), body, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		out.ID = idempotencyKey
	}
	return out.ID, nil
}

func (p *RESTProvider) DeleteEvent(ctx context.Context, conn models.CalendarConnection, externalID string) error {
	err := p.do(ctx, conn, http.MethodDelete, fmt.Sprintf("/calendars/%s/events/%s", conn.CalendarEmail, externalID), nil, nil)
	var se *errs.ExternalSyncError
	if err != nil && errors.As(err, &se) && !se.Transient {
		// Deleting an already-deleted event is a success for our purposes.
		return nil
	}
	return err
}

func (p *RESTProvider) PullChanges(ctx context.Context, conn models.CalendarConnection, cursor string) (PullResult, error) {
	path := fmt.Sprintf("/calendars/%s/changes?cursor=%s", conn.CalendarEmail, cursor)
	var out struct {
		Events     []restEvent `json:"events"`
		NextCursor string      `json:"next_cursor"`
	}
	if err := p.do(ctx, conn, http.MethodGet, path, nil, &out); err != nil {
		return PullResult{}, err
	}

	res := PullResult{NextCursor: out.NextCursor}
	for _, e := range out.Events {
		res.Events = append(res.Events, Event{
			ID:        e.ID,
			Summary:   e.Summary,
			Start:     e.Start,
			End:       e.End,
			AllDay:    e.AllDay,
			Tentative: e.Tentative,
			Canceled:  e.Status == "cancelled",
			Metadata:  e.Metadata,
		})
	}
	return res, nil
}

func (p *RESTProvider) do(ctx context.Context, conn models.CalendarConnection, method, path string, body, out interface{}) error {
	if err := p.Limiter.Wait(ctx); err != nil {
		return errs.SyncTransient(p.ProviderName, err)
	}

	token, err := p.Credentials.Open(conn.CredentialCiphertext)
	if err != nil {
		return errs.SyncPermanent(p.ProviderName, fmt.Errorf("unseal credential: %w", err))
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errs.SyncPermanent(p.ProviderName, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, reader)
	if err != nil {
		return errs.SyncPermanent(p.ProviderName, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return errs.SyncTransient(p.ProviderName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return errs.SyncPermanent(p.ProviderName, fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errs.SyncTransient(p.ProviderName, fmt.Errorf("provider returned %d", resp.StatusCode))
	default:
		return errs.SyncPermanent(p.ProviderName, fmt.Errorf("provider returned %d", resp.StatusCode))
	}
}

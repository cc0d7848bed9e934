package calsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/utils"
)

func testBox(t *testing.T) *utils.CredentialBox {
	t.Helper()
	box, err := utils.NewCredentialBox(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	return box
}

func testConn(t *testing.T, box *utils.CredentialBox) models.CalendarConnection {
	t.Helper()
	sealed, err := box.Seal([]byte("token-123"))
	if err != nil {
		t.Fatal(err)
	}
	return models.CalendarConnection{
		Provider:             "google",
		CalendarEmail:        "host@example.com",
		CredentialCiphertext: sealed,
	}
}

func TestIdempotencyKey(t *testing.T) {
	if got := IdempotencyKey("abc-123"); got != "apt-abc-123" {
		t.Errorf("IdempotencyKey() = %q", got)
	}
}

func TestUpsertEventSendsMetadataAndAuth(t *testing.T) {
	box := testBox(t)
	conn := testConn(t, box)

	var gotPath, gotAuth string
	var gotBody restEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(restEvent{ID: "ext-42"})
	}))
	defer srv.Close()

	p := NewRESTProvider("google", srv.URL, box)
	ev := Event{
		Summary: "Intro call",
		Start:   time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC),
		End:     time.Date(2025, time.June, 2, 14, 30, 0, 0, time.UTC),
	}
	id, err := p.UpsertEvent(context.Background(), conn, ev, "apt-xyz")
	if err != nil {
		t.Fatal(err)
	}
	if id != "ext-42" {
		t.Errorf("external ID = %q", id)
	}
	if gotPath != "/calendars/host@example.com/events/apt-xyz" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Metadata[MetadataKey] != "apt-xyz" {
		t.Errorf("metadata = %v; pull-side adoption depends on this key", gotBody.Metadata)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		box := testBox(t)
		p := NewRESTProvider("google", srv.URL, box)
		_, err := p.UpsertEvent(context.Background(), testConn(t, box), Event{}, "apt-k")
		srv.Close()

		var se *errs.ExternalSyncError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: expected ExternalSyncError, got %v", tt.status, err)
		}
		if se.Transient != tt.wantTransient {
			t.Errorf("status %d: transient = %v, want %v", tt.status, se.Transient, tt.wantTransient)
		}
	}
}

func TestDeleteEventToleratesAlreadyDeleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	box := testBox(t)
	p := NewRESTProvider("google", srv.URL, box)
	if err := p.DeleteEvent(context.Background(), testConn(t, box), "ext-1"); err != nil {
		t.Errorf("delete of missing event should succeed, got %v", err)
	}
}

func TestDeleteEventPropagatesTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	box := testBox(t)
	p := NewRESTProvider("google", srv.URL, box)
	err := p.DeleteEvent(context.Background(), testConn(t, box), "ext-1")
	var se *errs.ExternalSyncError
	if !errors.As(err, &se) || !se.Transient {
		t.Errorf("expected transient error for 503, got %v", err)
	}
}

func TestPullChangesMapsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "cursor=abc" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"events": []restEvent{
				{ID: "ext-1", Status: "cancelled"},
				{ID: "ext-2", Status: "confirmed"},
			},
			"next_cursor": "def",
		})
	}))
	defer srv.Close()

	box := testBox(t)
	p := NewRESTProvider("google", srv.URL, box)
	res, err := p.PullChanges(context.Background(), testConn(t, box), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if res.NextCursor != "def" {
		t.Errorf("cursor = %q", res.NextCursor)
	}
	if len(res.Events) != 2 || !res.Events[0].Canceled || res.Events[1].Canceled {
		t.Errorf("events = %+v", res.Events)
	}
}

package booking

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
)

var testNow = time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

func TestValidateLink(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	tests := []struct {
		name     string
		link     models.BookingLink
		password string
		wantErr  bool
	}{
		{
			name: "active open link",
			link: models.BookingLink{Active: true},
		},
		{
			name:    "inactive link",
			link:    models.BookingLink{Active: false},
			wantErr: true,
		},
		{
			name:    "expired link",
			link:    models.BookingLink{Active: true, ExpiresAt: &past},
			wantErr: true,
		},
		{
			name: "future expiry ok",
			link: models.BookingLink{Active: true, ExpiresAt: &future},
		},
		{
			name:     "correct password",
			link:     models.BookingLink{Active: true, PasswordHash: string(hash)},
			password: "sesame",
		},
		{
			name:    "missing password",
			link:    models.BookingLink{Active: true, PasswordHash: string(hash)},
			wantErr: true,
		},
		{
			name:     "wrong password",
			link:     models.BookingLink{Active: true, PasswordHash: string(hash)},
			password: "open",
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLink(&tt.link, tt.password, testNow)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateLink() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errs.IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateAnswers(t *testing.T) {
	schema := models.IntakeSchema{
		{Key: "topic", Label: "Topic", Kind: "text", Required: true},
		{Key: "channel", Label: "Channel", Kind: "select", Options: []string{"phone", "video"}},
	}

	tests := []struct {
		name    string
		answers models.IntakeAnswers
		wantErr bool
	}{
		{
			name:    "all good",
			answers: models.IntakeAnswers{"topic": "taxes", "channel": "video"},
		},
		{
			name:    "optional select omitted",
			answers: models.IntakeAnswers{"topic": "taxes"},
		},
		{
			name:    "required missing",
			answers: models.IntakeAnswers{"channel": "video"},
			wantErr: true,
		},
		{
			name:    "required empty string",
			answers: models.IntakeAnswers{"topic": ""},
			wantErr: true,
		},
		{
			name:    "select outside options",
			answers: models.IntakeAnswers{"topic": "taxes", "channel": "fax"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAnswers(schema, tt.answers)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAnswers() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSlot(t *testing.T) {
	free := timeslot.Set{
		{Start: testNow, End: testNow.Add(3 * time.Hour)},
	}
	duration := 30 * time.Minute

	t.Run("inside free interval", func(t *testing.T) {
		slot := timeslot.Interval{Start: testNow.Add(time.Hour), End: testNow.Add(time.Hour + duration)}
		if err := validateSlot(slot, duration, free); err != nil {
			t.Errorf("validateSlot() = %v", err)
		}
	})

	t.Run("flush against interval end", func(t *testing.T) {
		slot := timeslot.Interval{Start: testNow.Add(150 * time.Minute), End: testNow.Add(3 * time.Hour)}
		if err := validateSlot(slot, duration, free); err != nil {
			t.Errorf("validateSlot() = %v", err)
		}
	})

	t.Run("straddles interval end", func(t *testing.T) {
		slot := timeslot.Interval{Start: testNow.Add(170 * time.Minute), End: testNow.Add(200 * time.Minute)}
		err := validateSlot(slot, duration, free)
		if !errs.IsConflict(err) {
			t.Errorf("expected ConflictError, got %v", err)
		}
	})

	t.Run("wrong duration", func(t *testing.T) {
		slot := timeslot.Interval{Start: testNow, End: testNow.Add(time.Hour)}
		err := validateSlot(slot, duration, free)
		if !errs.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("empty slot", func(t *testing.T) {
		err := validateSlot(timeslot.Interval{Start: testNow, End: testNow}, duration, free)
		if !errs.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})
}

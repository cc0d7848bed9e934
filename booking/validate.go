package booking

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
)

// Invitee identifies who is booking. Enrichment from CRM contact lookup is a
// collaborator concern; only name/email matter here.
type Invitee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// validateLink gates the public flow: active, unexpired and, when password
// protected, a matching credential.
func validateLink(link *models.BookingLink, password string, now time.Time) error {
	if link.Expired(now) {
		return errs.Validation("link", "booking link is expired or inactive")
	}
	if link.PasswordHash != "" {
		if password == "" {
			return errs.Validation("password", "booking link requires a password")
		}
		if bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(password)) != nil {
			return errs.Validation("password", "invalid booking link password")
		}
	}
	return nil
}

// validateAnswers checks intake answers against the type's question schema.
func validateAnswers(schema models.IntakeSchema, answers models.IntakeAnswers) error {
	for _, q := range schema {
		val, ok := answers[q.Key]
		if q.Required && (!ok || val == "") {
			return errs.Validation(q.Key, "required answer missing")
		}
		if !ok || val == "" {
			continue
		}
		if q.Kind == "select" && len(q.Options) > 0 {
			found := false
			for _, opt := range q.Options {
				if opt == val {
					found = true
					break
				}
			}
			if !found {
				return errs.Validation(q.Key, "answer is not one of the allowed options")
			}
		}
	}
	return nil
}

// validateSlot confirms the requested slot matches the type duration and is
// one of the currently free intervals. This is the lock-free pre-check; the
// commit transaction re-validates under the host lock.
func validateSlot(slot timeslot.Interval, duration time.Duration, free timeslot.Set) error {
	if slot.IsEmpty() {
		return errs.Validation("slot", "slot end must be after start")
	}
	if slot.Duration() != duration {
		return errs.Validation("slot", "slot length does not match appointment duration")
	}
	for _, iv := range free {
		if !slot.Start.Before(iv.Start) && !slot.End.After(iv.End) {
			return nil
		}
	}
	return errs.Conflict(0, "requested slot is not available")
}

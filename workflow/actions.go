package workflow

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/utils"
)

// ActionSet holds the handlers behind each workflow action type. Handlers
// are idempotent per idempotency key: a replayed attempt re-sending an email
// or webhook with the same key is accepted by downstream dedup.
type ActionSet struct {
	DB        *gorm.DB
	HTTP      *http.Client
	SendEmail func(to, subject, body string) error
	Log       zerolog.Logger
}

func NewActionSet(db *gorm.DB, log zerolog.Logger) *ActionSet {
	return &ActionSet{
		DB:        db,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		SendEmail: utils.SendEmail,
		Log:       log.With().Str("comp", "workflow.actions").Logger(),
	}
}

// Run dispatches to the handler for the workflow's action.
func (a *ActionSet) Run(ctx context.Context, wf models.MeetingWorkflow, appt models.Appointment, idempotencyKey string) error {
	switch wf.Action {
	case models.ActionEmailInvitee:
		return a.email(appt.InviteeEmail, appt.InviteeName, wf, appt)
	case models.ActionEmailHost:
		var host models.User
		if err := a.DB.First(&host, appt.HostID).Error; err != nil {
			return fmt.Errorf("load host %d: %w", appt.HostID, err)
		}
		return a.email(host.Email, host.Name, wf, appt)
	case models.ActionExternalCall:
		return a.externalCall(ctx, wf, appt, idempotencyKey)
	case models.ActionMarkNoShow:
		return a.markNoShow(appt)
	default:
		return fmt.Errorf("unknown workflow action %q", wf.Action)
	}
}

func (a *ActionSet) email(to, name string, wf models.MeetingWorkflow, appt models.Appointment) error {
	if to == "" {
		return fmt.Errorf("no recipient for workflow %d", wf.ID)
	}
	loc, err := time.LoadLocation(appt.DisplayTimeZone)
	if err != nil {
		loc = time.UTC
	}

	replacer := strings.NewReplacer(
		"{{name}}", name,
		"{{start}}", appt.StartTime.In(loc).Format("Mon, 2 Jan 2006 15:04 MST"),
		"{{end}}", appt.EndTime.In(loc).Format("15:04 MST"),
		"{{status}}", string(appt.Status),
	)
	subject := replacer.Replace(wf.Subject)
	body := replacer.Replace(wf.Body)
	if body == "" {
		body = fmt.Sprintf(`
			<p>Dear %s,</p>
			<p>This is a reminder about your appointment.</p>
			<ul>
				<li><strong>Start:</strong> %s</li>
				<li><strong>End:</strong> %s</li>
			</ul>
		`, name,
			appt.StartTime.In(loc).Format("Mon, 2 Jan 2006 15:04 MST"),
			appt.EndTime.In(loc).Format("Mon, 2 Jan 2006 15:04 MST"))
	}
	return a.SendEmail(to, subject, body)
}

func (a *ActionSet) externalCall(ctx context.Context, wf models.MeetingWorkflow, appt models.Appointment, idempotencyKey string) error {
	if wf.TargetURL == "" {
		return fmt.Errorf("workflow %d: external_call without target_url", wf.ID)
	}
	payload := fmt.Sprintf(`{"appointment_id":%q,"status":%q,"start":%q,"end":%q}`,
		appt.PublicID, appt.Status,
		appt.StartTime.Format(time.RFC3339), appt.EndTime.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wf.TargetURL, bytes.NewReader([]byte(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("external call returned %d", resp.StatusCode)
	}
	return nil
}

// markNoShow flips a confirmed appointment to no_show after its end, e.g.
// via an after_end workflow on types that track attendance.
func (a *ActionSet) markNoShow(appt models.Appointment) error {
	if appt.Status != models.StatusConfirmed {
		return nil // already resolved another way
	}
	return a.DB.Transaction(func(tx *gorm.DB) error {
		return appt.UpdateStatus(tx, models.StatusNoShow, "system")
	})
}

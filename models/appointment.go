package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusRequested            AppointmentStatus = "requested"
	StatusAwaitingConfirmation AppointmentStatus = "awaiting_confirmation"
	StatusConfirmed            AppointmentStatus = "confirmed"
	StatusCompleted            AppointmentStatus = "completed"
	StatusCanceled             AppointmentStatus = "canceled"
	StatusRescheduled          AppointmentStatus = "rescheduled"
	StatusNoShow               AppointmentStatus = "no_show"
)

// statusTransitions is the allowed transition graph. It is acyclic: nothing
// ever returns to requested once confirmed.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusRequested:            {StatusAwaitingConfirmation, StatusConfirmed, StatusCanceled},
	StatusAwaitingConfirmation: {StatusConfirmed, StatusCanceled},
	StatusConfirmed:            {StatusCompleted, StatusCanceled, StatusRescheduled, StatusNoShow},
	StatusCompleted:            {},
	StatusCanceled:             {},
	StatusRescheduled:          {},
	StatusNoShow:               {},
}

// CanTransition reports whether moving from one status to the other is an
// allowed change.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IntakeAnswers maps question keys to invitee answers, stored as JSONB.
type IntakeAnswers map[string]string

func (a IntakeAnswers) Value() (driver.Value, error) {
	jsonData, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

func (a *IntakeAnswers) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal IntakeAnswers: unsupported type %T", value)
	}
	return json.Unmarshal(data, a)
}

// Appointment is a committed (or requested) booking. Start/End are UTC
// instants; DisplayTimeZone is what invitee-facing surfaces render in. After
// creation only the status may change: a reschedule creates a new appointment
// linked through RescheduledToID plus an audit entry, never a silent
// overwrite of the time range.
type Appointment struct {
	gorm.Model
	PublicID string `json:"public_id" gorm:"uniqueIndex"` // uuid, doubles as the external sync idempotency root

	AppointmentTypeID uint            `json:"appointment_type_id"`
	AppointmentType   AppointmentType `json:"appointment_type,omitempty" gorm:"foreignKey:AppointmentTypeID"`
	BookingLinkID     uint            `json:"booking_link_id"`

	StartTime       time.Time `json:"start_time"` // UTC
	EndTime         time.Time `json:"end_time"`   // UTC
	DisplayTimeZone string    `json:"display_time_zone"`

	Status AppointmentStatus `json:"status" gorm:"index"`

	HostID   uint   `json:"host_id" gorm:"index"`
	Host     User   `json:"host,omitempty" gorm:"foreignKey:HostID"`
	CoHosts  []User `json:"co_hosts,omitempty" gorm:"many2many:appointment_co_hosts;"` // collective types only

	InviteeName  string        `json:"invitee_name"`
	InviteeEmail string        `json:"invitee_email"`
	Answers      IntakeAnswers `json:"answers" gorm:"type:jsonb"`

	RescheduledToID *uint `json:"rescheduled_to_id"`

	AuditTrail []AppointmentAudit `json:"audit_trail,omitempty" gorm:"foreignKey:AppointmentID"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = StatusRequested
	}
	return nil
}

// UpdateStatus applies a transition, persists it and appends an audit entry
// in the same transaction. Invalid transitions are rejected.
func (a *Appointment) UpdateStatus(tx *gorm.DB, newStatus AppointmentStatus, actor string) error {
	if !CanTransition(a.Status, newStatus) {
		return fmt.Errorf("invalid transition from %s to %s", a.Status, newStatus)
	}

	prev := a.Status
	a.Status = newStatus
	if err := tx.Model(a).Update("status", newStatus).Error; err != nil {
		return err
	}

	audit := AppointmentAudit{
		AppointmentID: a.ID,
		FromStatus:    prev,
		ToStatus:      newStatus,
		Actor:         actor,
		OccurredAt:    time.Now().UTC(),
	}
	return tx.Create(&audit).Error
}

// AppointmentAudit is one row per status transition, append-only.
type AppointmentAudit struct {
	gorm.Model
	AppointmentID uint              `json:"appointment_id" gorm:"index"`
	FromStatus    AppointmentStatus `json:"from_status"`
	ToStatus      AppointmentStatus `json:"to_status"`
	Actor         string            `json:"actor"` // "invitee", "host:<id>", "system"
	Note          string            `json:"note"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

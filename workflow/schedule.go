package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/models"
)

// ScheduleForAppointment creates scheduled executions for every active
// workflow of the appointment's type that matches the trigger. Lifecycle
// triggers fire immediately; relative-time triggers anchor on start (before)
// or end (after). Scheduling is idempotent per (workflow, appointment,
// attempt window): re-running for the same transition creates nothing new.
func ScheduleForAppointment(db *gorm.DB, appt *models.Appointment, trigger models.WorkflowTrigger, now time.Time) error {
	var workflows []models.MeetingWorkflow
	err := db.Where("appointment_type_id = ? AND active = ?", appt.AppointmentTypeID, true).
		Find(&workflows).Error
	if err != nil {
		return fmt.Errorf("load workflows for type %d: %w", appt.AppointmentTypeID, err)
	}

	for _, wf := range workflows {
		var runAt time.Time
		switch wf.Trigger {
		case trigger:
			runAt = now
		case models.TriggerBeforeStart:
			// Relative triggers are scheduled when the appointment becomes
			// confirmed, alongside the lifecycle trigger of that transition.
			if trigger != models.TriggerConfirmed {
				continue
			}
			runAt = appt.StartTime.Add(-wf.Delay.ToDuration())
		case models.TriggerAfterEnd:
			if trigger != models.TriggerConfirmed {
				continue
			}
			runAt = appt.EndTime.Add(wf.Delay.ToDuration())
		default:
			continue
		}
		if runAt.Before(now) {
			runAt = now
		}

		key := IdempotencyKey(wf.ID, appt.ID, runAt)
		var existing int64
		if err := db.Model(&models.WorkflowExecution{}).
			Where("idempotency_key = ?", key).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			continue
		}

		exec := models.WorkflowExecution{
			WorkflowID:     wf.ID,
			AppointmentID:  appt.ID,
			ScheduledFor:   runAt,
			Status:         models.ExecutionScheduled,
			NextRunAt:      runAt,
			IdempotencyKey: key,
		}
		if err := db.Create(&exec).Error; err != nil {
			return fmt.Errorf("schedule workflow %d: %w", wf.ID, err)
		}
	}
	return nil
}

// IdempotencyKey is stable per (workflow, appointment, attempt window) so
// at-least-once execution with idempotent handlers never double-applies.
func IdempotencyKey(workflowID, appointmentID uint, window time.Time) string {
	return fmt.Sprintf("wf-%d-%d-%d", workflowID, appointmentID, window.UTC().Unix())
}

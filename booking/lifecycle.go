package booking

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/calsync"
	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
	"github.com/clearbook/scheduling-engine/workflow"
)

// Cancel transitions an appointment to canceled, records the audit entry and
// enqueues the external delete plus cancellation workflows.
func (s *Service) Cancel(ctx context.Context, appointmentID uint, actor string) (*models.Appointment, error) {
	var appt models.Appointment
	if err := s.DB.First(&appt, appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.Validation("id", "appointment not found")
		}
		return nil, fmt.Errorf("load appointment %d: %w", appointmentID, err)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := appt.UpdateStatus(tx, models.StatusCanceled, actor); err != nil {
			return errs.Validation("status", err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := calsync.EnqueuePush(ctx, s.Queue, appt.ID, calsync.OpDelete); err != nil {
		s.Log.Error().Err(err).Uint("appointment", appt.ID).Msg("enqueue sync delete")
	}
	if err := workflow.ScheduleForAppointment(s.DB, &appt, models.TriggerCanceled, s.Now()); err != nil {
		s.Log.Error().Err(err).Uint("appointment", appt.ID).Msg("schedule cancel workflows")
	}
	return &appt, nil
}

// Reschedule books a new time range through full arbitration, then marks the
// old appointment rescheduled with a link to its replacement. The original
// time range is never overwritten in place.
func (s *Service) Reschedule(ctx context.Context, appointmentID uint, newSlot timeslot.Interval, actor string) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.DB.Preload("AppointmentType").Preload("AppointmentType.Hosts").First(&appt, appointmentID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.Validation("id", "appointment not found")
		}
		return nil, fmt.Errorf("load appointment %d: %w", appointmentID, err)
	}
	if appt.Status != models.StatusConfirmed {
		return nil, errs.Validation("status", "only confirmed appointments can be rescheduled")
	}

	var link models.BookingLink
	if err := s.DB.First(&link, appt.BookingLinkID).Error; err != nil {
		return nil, fmt.Errorf("load booking link %d: %w", appt.BookingLinkID, err)
	}

	apptType := appt.AppointmentType
	now := s.Now()

	// The replacement must clear availability excluding the appointment being
	// moved, so back-to-back self-reschedules work.
	free, err := s.Availability.FreeForHost(appt.HostID, apptType, newSlot.Start.Add(-24*time.Hour), newSlot.End.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	free = timeslot.Union(free, timeslot.Set{{Start: appt.StartTime, End: appt.EndTime}})
	if err := validateSlot(newSlot, apptType.Duration.ToDuration(), free); err != nil {
		return nil, err
	}

	req := Request{
		LinkSlug: link.Slug,
		Slot:     newSlot,
		Invitee:  Invitee{Name: appt.InviteeName, Email: appt.InviteeEmail},
		Answers:  appt.Answers,
		TimeZone: appt.DisplayTimeZone,
	}

	// The old appointment is excluded from the commit re-check so a
	// replacement overlapping the vacated time range can land.
	replacement, err := s.commit(ctx, link, apptType, []uint{appt.HostID}, req, now, appt.ID)
	if err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := appt.UpdateStatus(tx, models.StatusRescheduled, actor); err != nil {
			return errs.Validation("status", err.Error())
		}
		return tx.Model(&appt).Update("rescheduled_to_id", replacement.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, replacement)
	if err := calsync.EnqueuePush(ctx, s.Queue, appt.ID, calsync.OpDelete); err != nil {
		s.Log.Error().Err(err).Uint("appointment", appt.ID).Msg("enqueue sync delete for rescheduled appointment")
	}
	return replacement, nil
}

// Confirm moves an awaiting_confirmation appointment to confirmed (host
// approval path) and fires the confirmed-side effects.
func (s *Service) Confirm(ctx context.Context, appointmentID uint, actor string) (*models.Appointment, error) {
	var appt models.Appointment
	if err := s.DB.First(&appt, appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.Validation("id", "appointment not found")
		}
		return nil, fmt.Errorf("load appointment %d: %w", appointmentID, err)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := appt.UpdateStatus(tx, models.StatusConfirmed, actor); err != nil {
			return errs.Validation("status", err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, &appt)
	return &appt, nil
}

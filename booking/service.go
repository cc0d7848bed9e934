package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/availability"
	"github.com/clearbook/scheduling-engine/calsync"
	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/queue"
	"github.com/clearbook/scheduling-engine/routing"
	"github.com/clearbook/scheduling-engine/timeslot"
	"github.com/clearbook/scheduling-engine/workflow"
)

// Service is the booking arbitration core. It guarantees at most one
// successful booking per host and overlapping interval: the free check is
// repeated inside the commit transaction while holding the host's advisory
// lock, so a stale availability read can never double-book.
type Service struct {
	DB           *gorm.DB
	Availability *availability.Service
	Routing      *routing.Service
	Queue        queue.Queue
	Log          zerolog.Logger
	Now          func() time.Time

	locks *hostLocks
}

func NewService(db *gorm.DB, avail *availability.Service, route *routing.Service, q queue.Queue, log zerolog.Logger) *Service {
	return &Service{
		DB:           db,
		Availability: avail,
		Routing:      route,
		Queue:        q,
		Log:          log.With().Str("comp", "booking").Logger(),
		Now:          func() time.Time { return time.Now().UTC() },
		locks:        newHostLocks(),
	}
}

// Request carries one booking attempt through arbitration.
type Request struct {
	LinkSlug string
	Slot     timeslot.Interval // UTC
	Invitee  Invitee
	Answers  models.IntakeAnswers
	Password string
	TimeZone string // invitee display timezone
}

// RequestBooking validates, routes, arbitrates and commits one booking.
// Returns the appointment, or a ValidationError / ConflictError /
// NoAvailableHostError per the contract. Sync and workflow side effects are
// enqueued, never executed synchronously.
func (s *Service) RequestBooking(ctx context.Context, req Request) (*models.Appointment, error) {
	now := s.Now()

	var link models.BookingLink
	err := s.DB.Preload("AppointmentType").Preload("AppointmentType.Hosts").
		Where("slug = ?", req.LinkSlug).First(&link).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Validation("link", "booking link not found")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve booking link: %w", err)
	}

	if err := validateLink(&link, req.Password, now); err != nil {
		return nil, err
	}
	apptType := link.AppointmentType
	if err := validateAnswers(apptType.Intake, req.Answers); err != nil {
		return nil, err
	}

	if apptType.Routing == models.RoutingCollective {
		return s.requestCollective(ctx, link, req, now)
	}

	hostID, err := s.routeHost(apptType)
	if err != nil {
		return nil, err
	}

	// Lock-free pre-check. False positives here are caught at commit.
	free, err := s.Availability.FreeForHost(hostID, apptType, req.Slot.Start.Add(-24*time.Hour), req.Slot.End.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	if err := validateSlot(req.Slot, apptType.Duration.ToDuration(), free); err != nil {
		return nil, err
	}

	appt, err := s.commit(ctx, link, apptType, []uint{hostID}, req, now, 0)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, appt)
	return appt, nil
}

// requestCollective books all pool hosts at once. The commit locks hosts in
// ascending ID order so concurrent collective bookings cannot deadlock.
func (s *Service) requestCollective(ctx context.Context, link models.BookingLink, req Request, now time.Time) (*models.Appointment, error) {
	apptType := link.AppointmentType
	if len(apptType.Hosts) == 0 {
		return nil, &errs.NoAvailableHostError{PoolSize: 0, Policy: string(apptType.Routing)}
	}
	hostIDs := make([]uint, 0, len(apptType.Hosts))
	for _, h := range apptType.Hosts {
		hostIDs = append(hostIDs, h.ID)
	}

	free, err := s.Availability.FreeForHosts(hostIDs, apptType, req.Slot.Start.Add(-24*time.Hour), req.Slot.End.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	if err := validateSlot(req.Slot, apptType.Duration.ToDuration(), free); err != nil {
		return nil, err
	}

	appt, err := s.commit(ctx, link, apptType, hostIDs, req, now, 0)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, appt)
	return appt, nil
}

func (s *Service) routeHost(apptType models.AppointmentType) (uint, error) {
	if apptType.Routing == models.RoutingFixed {
		return routing.Select(apptType, nil)
	}
	candidates, err := s.Routing.Candidates(apptType)
	if err != nil {
		return 0, err
	}
	return routing.Select(apptType, candidates)
}

// commit is the serialization point. Within one transaction: take the host
// advisory lock(s), re-check that no confirmed appointment overlaps the
// buffered slot, insert, audit, bump the routing counter. excludeID names an
// appointment to ignore in the overlap check (the one being rescheduled);
// zero excludes nothing.
func (s *Service) commit(ctx context.Context, link models.BookingLink, apptType models.AppointmentType, hostIDs []uint, req Request, now time.Time, excludeID uint) (*models.Appointment, error) {
	sortUints(hostIDs)

	// In-process fast path: serialize local attempts on the first host.
	unlock := s.locks.Lock(hostIDs[0])
	defer unlock()

	status := models.StatusConfirmed
	if apptType.RequiresConfirmation {
		status = models.StatusAwaitingConfirmation
	}

	appt := &models.Appointment{
		PublicID:          uuid.NewString(),
		AppointmentTypeID: apptType.ID,
		BookingLinkID:     link.ID,
		StartTime:         req.Slot.Start,
		EndTime:           req.Slot.End,
		DisplayTimeZone:   req.TimeZone,
		Status:            status,
		HostID:            hostIDs[0],
		InviteeName:       req.Invitee.Name,
		InviteeEmail:      req.Invitee.Email,
		Answers:           req.Answers,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, hostID := range hostIDs {
			if err := acquireHostLock(tx, hostID); err != nil {
				return fmt.Errorf("acquire host lock %d: %w", hostID, err)
			}
		}

		// Re-validate inside the atomic unit: any live appointment that
		// overlaps the buffered slot on any required host fails the booking.
		// Buffers resolve exactly as the availability engine resolves them,
		// so commit never rejects a slot the engine offered.
		locByHost := make(map[uint]*time.Location, len(hostIDs))
		for _, hostID := range hostIDs {
			var profile models.AvailabilityProfile
			err := tx.Where("host_id = ?", hostID).First(&profile).Error
			if err != nil && err != gorm.ErrRecordNotFound {
				return fmt.Errorf("load availability profile for host %d: %w", hostID, err)
			}
			if loc, lerr := time.LoadLocation(profile.TimeZone); lerr == nil {
				locByHost[hostID] = loc
			} else {
				locByHost[hostID] = time.UTC
			}
			before, after := availability.EffectiveBuffers(profile, apptType)

			var existing []models.Appointment
			err = tx.Where("host_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
				hostID, liveStatuses,
				req.Slot.End.Add(before), req.Slot.Start.Add(-after)).
				Find(&existing).Error
			if err != nil {
				return fmt.Errorf("overlap re-check for host %d: %w", hostID, err)
			}
			if conflictsBuffered(existing, req.Slot, before, after, excludeID) {
				return errs.Conflict(hostID, "slot was taken while booking")
			}
		}

		if err := tx.Create(appt).Error; err != nil {
			return fmt.Errorf("persist appointment: %w", err)
		}

		if len(hostIDs) > 1 {
			var coHosts []models.User
			if err := tx.Find(&coHosts, hostIDs[1:]).Error; err != nil {
				return fmt.Errorf("load co-hosts: %w", err)
			}
			if err := tx.Model(appt).Association("CoHosts").Append(coHosts); err != nil {
				return fmt.Errorf("attach co-hosts: %w", err)
			}
		}

		audit := models.AppointmentAudit{
			AppointmentID: appt.ID,
			FromStatus:    models.StatusRequested,
			ToStatus:      status,
			Actor:         "invitee",
			OccurredAt:    now,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		for _, hostID := range hostIDs {
			if err := routing.RecordAssignment(tx, apptType.ID, hostID, now, locByHost[hostID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// afterCommit enqueues the asynchronous side effects. Failures here never
// undo the booking: the user-facing confirmation is already durable and the
// cron dispatcher will still pick up due workflow executions.
func (s *Service) afterCommit(ctx context.Context, appt *models.Appointment) {
	if err := calsync.EnqueuePush(ctx, s.Queue, appt.ID, calsync.OpUpsert); err != nil {
		s.Log.Error().Err(err).Uint("appointment", appt.ID).Msg("enqueue sync push")
	}
	if err := workflow.ScheduleForAppointment(s.DB, appt, triggerForStatus(appt.Status), s.Now()); err != nil {
		s.Log.Error().Err(err).Uint("appointment", appt.ID).Msg("schedule workflows")
	}
}

func triggerForStatus(status models.AppointmentStatus) models.WorkflowTrigger {
	switch status {
	case models.StatusConfirmed:
		return models.TriggerConfirmed
	case models.StatusCanceled:
		return models.TriggerCanceled
	case models.StatusCompleted:
		return models.TriggerCompleted
	default:
		return models.TriggerCreated
	}
}

func sortUints(ids []uint) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// liveStatuses occupy the calendar for arbitration purposes.
var liveStatuses = []models.AppointmentStatus{
	models.StatusConfirmed,
	models.StatusAwaitingConfirmation,
}

// conflictsBuffered reports whether any existing appointment, expanded by
// the same buffers the availability engine applies, overlaps the slot.
// excludeID skips the appointment being rescheduled.
func conflictsBuffered(existing []models.Appointment, slot timeslot.Interval, before, after time.Duration, excludeID uint) bool {
	for _, a := range existing {
		if excludeID != 0 && a.ID == excludeID {
			continue
		}
		iv := timeslot.Interval{Start: a.StartTime, End: a.EndTime}
		if iv.Expand(before, after).Overlaps(slot) {
			return true
		}
	}
	return false
}

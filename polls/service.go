package polls

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/booking"
	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
)

// Service manages meeting polls: propose slots, collect votes, resolve a
// winner. Auto-resolution books the winning slot through the same
// arbitration path as a direct booking, so a slot that filled up in the
// meantime fails with a conflict instead of double-booking.
type Service struct {
	DB      *gorm.DB
	Booking *booking.Service
	Log     zerolog.Logger
	Now     func() time.Time
}

func NewService(db *gorm.DB, bookingSvc *booking.Service, log zerolog.Logger) *Service {
	return &Service{
		DB:      db,
		Booking: bookingSvc,
		Log:     log.With().Str("comp", "polls").Logger(),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// ProposedSlot is one candidate time in a creation request.
type ProposedSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CreatePoll persists a poll with its proposed slot set.
func (s *Service) CreatePoll(firmID, apptTypeID, hostID uint, title string, slots []ProposedSlot, deadline time.Time) (*models.MeetingPoll, error) {
	if len(slots) == 0 {
		return nil, errs.Validation("slots", "at least one proposed slot is required")
	}
	if !deadline.After(s.Now()) {
		return nil, errs.Validation("deadline", "deadline must be in the future")
	}
	for _, ps := range slots {
		if !ps.End.After(ps.Start) {
			return nil, errs.Validation("slots", "slot end must be after start")
		}
	}

	poll := &models.MeetingPoll{
		FirmID:            firmID,
		AppointmentTypeID: apptTypeID,
		HostID:            hostID,
		Title:             title,
		Deadline:          deadline.UTC(),
		Status:            models.PollOpen,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(poll).Error; err != nil {
			return err
		}
		for _, ps := range slots {
			slot := models.PollSlot{PollID: poll.ID, StartTime: ps.Start.UTC(), EndTime: ps.End.UTC()}
			if err := tx.Create(&slot).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	return s.Get(poll.ID)
}

// Get loads a poll with slots and votes.
func (s *Service) Get(pollID uint) (*models.MeetingPoll, error) {
	var poll models.MeetingPoll
	err := s.DB.Preload("Slots").Preload("Slots.Votes").First(&poll, pollID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Validation("id", "poll not found")
	}
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// Vote is one invitee's choice on one slot.
type Vote struct {
	SlotID uint              `json:"slot_id"`
	Choice models.VoteChoice `json:"choice"`
}

// CastVote records an invitee's votes, overwriting earlier ones per slot.
func (s *Service) CastVote(pollID uint, inviteeName, inviteeEmail string, votes []Vote) error {
	poll, err := s.Get(pollID)
	if err != nil {
		return err
	}
	if poll.Status != models.PollOpen {
		return errs.Validation("poll", "poll is no longer open")
	}
	if s.Now().After(poll.Deadline) {
		return errs.Validation("poll", "voting deadline has passed")
	}
	if inviteeEmail == "" {
		return errs.Validation("invitee_email", "email is required")
	}

	slotIDs := make(map[uint]bool, len(poll.Slots))
	for _, slot := range poll.Slots {
		slotIDs[slot.ID] = true
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		for _, v := range votes {
			if !slotIDs[v.SlotID] {
				return errs.Validation("slot_id", "slot does not belong to this poll")
			}
			switch v.Choice {
			case models.VoteYes, models.VoteMaybe, models.VoteNo:
			default:
				return errs.Validation("choice", "choice must be yes, maybe or no")
			}

			var existing models.PollVote
			err := tx.Where("slot_id = ? AND invitee_email = ?", v.SlotID, inviteeEmail).First(&existing).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				vote := models.PollVote{
					SlotID:       v.SlotID,
					InviteeEmail: inviteeEmail,
					InviteeName:  inviteeName,
					Choice:       v.Choice,
				}
				if err := tx.Create(&vote).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Update("choice", v.Choice).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Resolve picks the winner and books it. With no yes-majority the poll is
// marked unresolved and left for manual selection. The winning slot still
// goes through booking arbitration: if it is no longer free the poll stays
// open and the conflict is surfaced to the organizer.
func (s *Service) Resolve(ctx context.Context, pollID uint, linkSlug string) (*models.MeetingPoll, error) {
	poll, err := s.Get(pollID)
	if err != nil {
		return nil, err
	}
	if poll.Status != models.PollOpen {
		return poll, nil
	}

	winner, ok := Winner(poll.Slots)
	if !ok {
		if err := s.DB.Model(poll).Update("status", models.PollUnresolved).Error; err != nil {
			return nil, err
		}
		poll.Status = models.PollUnresolved
		return poll, nil
	}

	var organizer models.User
	if err := s.DB.First(&organizer, poll.HostID).Error; err != nil {
		return nil, fmt.Errorf("load poll organizer: %w", err)
	}

	appt, err := s.Booking.RequestBooking(ctx, booking.Request{
		LinkSlug: linkSlug,
		Slot:     timeslot.Interval{Start: winner.StartTime, End: winner.EndTime},
		Invitee:  booking.Invitee{Name: organizer.Name, Email: organizer.Email},
		TimeZone: "UTC",
	})
	if err != nil {
		if errs.IsConflict(err) {
			s.Log.Warn().Uint("poll", poll.ID).Uint("slot", winner.ID).Msg("winning slot no longer free")
		}
		return nil, err
	}

	err = s.DB.Model(poll).Updates(map[string]interface{}{
		"status":          models.PollResolved,
		"winning_slot_id": winner.ID,
		"appointment_id":  appt.ID,
	}).Error
	if err != nil {
		return nil, err
	}
	poll.Status = models.PollResolved
	poll.WinningSlotID = &winner.ID
	poll.AppointmentID = &appt.ID
	return poll, nil
}

// SweepExpired closes open polls whose deadline passed. Polls with a
// yes-majority auto-resolve through an active booking link of their type,
// going through standard booking arbitration. Only deadline-with-no-majority
// becomes unresolved outright; a majority poll that cannot be booked (link
// missing, winning slot taken) also falls back to unresolved so the
// organizer has a reviewable record rather than a lost poll.
func (s *Service) SweepExpired(ctx context.Context) error {
	now := s.Now()
	var expired []models.MeetingPoll
	err := s.DB.Where("status = ? AND deadline <= ?", models.PollOpen, now).Find(&expired).Error
	if err != nil {
		return fmt.Errorf("load expired polls: %w", err)
	}
	for _, poll := range expired {
		full, err := s.Get(poll.ID)
		if err != nil {
			s.Log.Error().Err(err).Uint("poll", poll.ID).Msg("load expired poll")
			continue
		}
		if sweepActionFor(full.Slots) == sweepAutoResolve {
			slug, err := s.linkSlugForType(full.AppointmentTypeID)
			if err != nil {
				s.Log.Warn().Err(err).Uint("poll", poll.ID).Msg("no active booking link for majority poll, marking unresolved")
			} else if _, err := s.Resolve(ctx, poll.ID, slug); err == nil {
				s.Log.Info().Uint("poll", poll.ID).Msg("expired poll auto-resolved")
				continue
			} else {
				s.Log.Warn().Err(err).Uint("poll", poll.ID).Msg("auto-resolve failed, marking unresolved")
			}
		}
		if err := s.DB.Model(&models.MeetingPoll{}).Where("id = ? AND status = ?", poll.ID, models.PollOpen).
			Update("status", models.PollUnresolved).Error; err != nil {
			s.Log.Error().Err(err).Uint("poll", poll.ID).Msg("mark poll unresolved")
		}
	}
	return nil
}

// sweepAction is what SweepExpired does with one expired open poll.
type sweepAction int

const (
	sweepMarkUnresolved sweepAction = iota
	sweepAutoResolve
)

// sweepActionFor decides an expired poll's fate: a yes-majority resolves
// through booking arbitration, anything else becomes unresolved.
func sweepActionFor(slots []models.PollSlot) sweepAction {
	if _, ok := Winner(slots); ok {
		return sweepAutoResolve
	}
	return sweepMarkUnresolved
}

// linkSlugForType finds the newest active booking link exposing the type.
func (s *Service) linkSlugForType(typeID uint) (string, error) {
	var link models.BookingLink
	err := s.DB.Where("appointment_type_id = ? AND active = ?", typeID, true).
		Order("created_at DESC").First(&link).Error
	if err != nil {
		return "", fmt.Errorf("active booking link for type %d: %w", typeID, err)
	}
	return link.Slug, nil
}

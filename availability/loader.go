package availability

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
)

// Service loads everything a Query needs from the database. Reads are
// lock-free; a replica-stale read can only yield a false-positive free slot,
// which the arbitration service re-validates at commit.
type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// BuildQuery assembles the engine input for one host.
func (s *Service) BuildQuery(hostID uint, apptType models.AppointmentType, from, to time.Time) (Query, error) {
	var profile models.AvailabilityProfile
	err := s.DB.Preload("WeeklyHours").Preload("Exceptions").Preload("Holidays").
		Where("host_id = ?", hostID).First(&profile).Error
	if err != nil {
		return Query{}, fmt.Errorf("availability profile for host %d: %w", hostID, err)
	}

	loc, err := time.LoadLocation(profile.TimeZone)
	if err != nil {
		return Query{}, fmt.Errorf("profile %d: bad timezone %q: %w", profile.ID, profile.TimeZone, err)
	}

	// Fetch a padded window so buffer expansion of adjacent bookings is seen.
	pad := profile.BufferBefore.ToDuration() + profile.BufferAfter.ToDuration() +
		apptType.BufferBefore.ToDuration() + apptType.BufferAfter.ToDuration() + 24*time.Hour

	var appointments []models.Appointment
	err = s.DB.Where("host_id = ? AND status = ? AND start_time < ? AND end_time > ?",
		hostID, models.StatusConfirmed, to.Add(pad), from.Add(-pad)).
		Find(&appointments).Error
	if err != nil {
		return Query{}, fmt.Errorf("load appointments for host %d: %w", hostID, err)
	}

	booked := make([]timeslot.Interval, 0, len(appointments))
	counts := make(map[string]int)
	for _, a := range appointments {
		booked = append(booked, timeslot.Interval{Start: a.StartTime, End: a.EndTime})
		if a.AppointmentTypeID == apptType.ID {
			counts[a.StartTime.In(loc).Format("2006-01-02")]++
		}
	}

	external, err := s.externalBusy(hostID, profile, from.Add(-pad), to.Add(pad))
	if err != nil {
		return Query{}, err
	}

	return Query{
		Profile:      profile,
		Type:         apptType,
		From:         from,
		To:           to,
		Now:          s.Now(),
		Booked:       booked,
		ExternalBusy: external,
		DailyCounts:  counts,
	}, nil
}

// externalBusy collects opaque busy blocks pulled from the host's calendar
// connections. Mapped events are skipped: their internal appointment is
// already in the booked list.
func (s *Service) externalBusy(hostID uint, profile models.AvailabilityProfile, from, to time.Time) ([]timeslot.Interval, error) {
	var connections []models.CalendarConnection
	err := s.DB.Where("host_id = ? AND active = ?", hostID, true).Find(&connections).Error
	if err != nil {
		return nil, fmt.Errorf("load calendar connections for host %d: %w", hostID, err)
	}
	if len(connections) == 0 {
		return nil, nil
	}

	byID := make(map[uint]models.CalendarConnection, len(connections))
	ids := make([]uint, 0, len(connections))
	for _, c := range connections {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	var mappings []models.ExternalEventMapping
	err = s.DB.Where("connection_id IN ? AND appointment_id IS NULL AND busy_start < ? AND busy_end > ?",
		ids, to, from).Find(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("load external busy blocks for host %d: %w", hostID, err)
	}

	var busy []timeslot.Interval
	for _, m := range mappings {
		conn := byID[m.ConnectionID]
		if m.AllDay && !conn.TreatAllDay {
			continue
		}
		if m.Tentative && !conn.TreatTentative {
			continue
		}
		busy = append(busy, timeslot.Interval{Start: m.BusyStart, End: m.BusyEnd})
	}
	return busy, nil
}

// FreeForHost computes the host's free intervals for the appointment type.
func (s *Service) FreeForHost(hostID uint, apptType models.AppointmentType, from, to time.Time) (timeslot.Set, error) {
	q, err := s.BuildQuery(hostID, apptType, from, to)
	if err != nil {
		return nil, err
	}
	return FreeIntervals(q)
}

// FreeForHosts computes the collective intersection across all hosts.
func (s *Service) FreeForHosts(hostIDs []uint, apptType models.AppointmentType, from, to time.Time) (timeslot.Set, error) {
	queries := make([]Query, 0, len(hostIDs))
	for _, id := range hostIDs {
		q, err := s.BuildQuery(id, apptType, from, to)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return Collective(queries)
}

package routing

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/models"
)

// Service assembles routing candidates from persisted state. Fairness
// counters are versioned rows updated inside the booking transaction, so the
// pool state survives restarts and concurrent bookings contend through the
// database rather than shared memory.
type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// Candidates loads the pool for an appointment type with per-host loads over
// the type's fairness window.
func (s *Service) Candidates(apptType models.AppointmentType) ([]Candidate, error) {
	var hosts []models.User
	err := s.DB.Model(&apptType).Association("Hosts").Find(&hosts)
	if err != nil {
		return nil, fmt.Errorf("load host pool for type %d: %w", apptType.ID, err)
	}
	if len(hosts) == 0 {
		return nil, nil
	}

	windowDays := apptType.FairnessWindowDays
	if windowDays <= 0 {
		windowDays = 30
	}
	now := s.Now()
	windowStart := now.AddDate(0, 0, -windowDays)

	var weights []models.HostWeight
	if err := s.DB.Where("appointment_type_id = ?", apptType.ID).Find(&weights).Error; err != nil {
		return nil, fmt.Errorf("load host weights for type %d: %w", apptType.ID, err)
	}
	weightByHost := make(map[uint]models.HostWeight, len(weights))
	for _, w := range weights {
		weightByHost[w.HostID] = w
	}

	candidates := make([]Candidate, 0, len(hosts))
	for _, h := range hosts {
		c := Candidate{HostID: h.ID, Weight: 1}
		if w, ok := weightByHost[h.ID]; ok {
			c.Weight = w.Weight
			c.DailyCap = w.DailyCap
			c.WeeklyCap = w.WeeklyCap
		}

		// Daily and weekly caps follow the host's calendar, not UTC.
		dayStart := LocalDayStart(now, s.hostLocation(h.ID))
		weekStart := dayStart.AddDate(0, 0, -6)

		if err := s.countAssignments(apptType.ID, h.ID, windowStart, &c.Assignments); err != nil {
			return nil, err
		}
		if err := s.countAssignments(apptType.ID, h.ID, dayStart, &c.DailyCount); err != nil {
			return nil, err
		}
		if err := s.countAssignments(apptType.ID, h.ID, weekStart, &c.WeeklyCount); err != nil {
			return nil, err
		}

		var counter models.RoutingCounter
		err := s.DB.Where("appointment_type_id = ? AND host_id = ?", apptType.ID, h.ID).
			Order("window_start DESC").First(&counter).Error
		if err == nil {
			c.LastAssignedAt = counter.LastAssignedAt
		} else if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("load routing counter for host %d: %w", h.ID, err)
		}

		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Service) countAssignments(typeID, hostID uint, since time.Time, out *int) error {
	var n int64
	err := s.DB.Model(&models.Appointment{}).
		Where("appointment_type_id = ? AND host_id = ? AND status = ? AND start_time >= ?",
			typeID, hostID, models.StatusConfirmed, since).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("count assignments for host %d: %w", hostID, err)
	}
	*out = int(n)
	return nil
}

// RecordAssignment bumps the fairness counter for (type, host) inside the
// caller's transaction, the same atomic unit that commits the booking. The
// counter window is the host-local calendar day; loc is the host's profile
// timezone. The version column guards against lost updates if two
// transactions race past the advisory lock on different hosts.
func RecordAssignment(tx *gorm.DB, typeID, hostID uint, now time.Time, loc *time.Location) error {
	windowStart := LocalDayStart(now, loc)

	var counter models.RoutingCounter
	err := tx.Where("appointment_type_id = ? AND host_id = ? AND window_start = ?",
		typeID, hostID, windowStart).First(&counter).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		counter = models.RoutingCounter{
			AppointmentTypeID: typeID,
			HostID:            hostID,
			WindowStart:       windowStart,
			Assignments:       1,
			LastAssignedAt:    now,
			Version:           1,
		}
		return tx.Create(&counter).Error
	case err != nil:
		return fmt.Errorf("load routing counter: %w", err)
	}

	res := tx.Model(&models.RoutingCounter{}).
		Where("id = ? AND version = ?", counter.ID, counter.Version).
		Updates(map[string]interface{}{
			"assignments":      counter.Assignments + 1,
			"last_assigned_at": now,
			"version":          counter.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("routing counter %d: concurrent update", counter.ID)
	}
	return nil
}

// LocalDayStart returns midnight of now's calendar day in loc, as a UTC
// instant.
func LocalDayStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}

// hostLocation resolves a host's profile timezone, falling back to UTC for
// hosts without a profile.
func (s *Service) hostLocation(hostID uint) *time.Location {
	var profile models.AvailabilityProfile
	err := s.DB.Select("time_zone").Where("host_id = ?", hostID).First(&profile).Error
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(profile.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

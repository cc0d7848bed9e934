package models

import (
	"gorm.io/gorm"
)

type DayOfWeek int

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// AvailabilityProfile is a host's recurring and exception-based free-time
// rules. One profile per host; mutated only by that host or an admin, read by
// the availability engine on every query.
type AvailabilityProfile struct {
	gorm.Model
	HostID   uint   `json:"host_id" gorm:"uniqueIndex"`
	Host     User   `json:"host,omitempty" gorm:"foreignKey:HostID"`
	TimeZone string `json:"time_zone"` // IANA identifier, e.g. "America/New_York"

	WeeklyHours []WeeklyHour    `json:"weekly_hours,omitempty" gorm:"foreignKey:ProfileID"`
	Exceptions  []DateException `json:"exceptions,omitempty" gorm:"foreignKey:ProfileID"`
	Holidays    []Holiday       `json:"holidays,omitempty" gorm:"foreignKey:ProfileID"`

	MinimumNotice     Duration `json:"minimum_notice" gorm:"type:jsonb"`
	MaxHorizonDays    int      `json:"max_horizon_days" gorm:"default:60"`
	SlotGranularity   Duration `json:"slot_granularity" gorm:"type:jsonb"` // slot starts round up to this, in profile TZ
	BufferBefore      Duration `json:"buffer_before" gorm:"type:jsonb"`
	BufferAfter       Duration `json:"buffer_after" gorm:"type:jsonb"`
	TreatAllDayAsBusy bool     `json:"treat_all_day_as_busy" gorm:"default:true"`
}

// WeeklyHour is one recurring open interval on a weekday, local to the
// profile's timezone. A day may carry several rows (split shifts).
type WeeklyHour struct {
	gorm.Model
	ProfileID uint      `json:"profile_id" gorm:"index"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	StartTime string    `json:"start_time"` // "HH:MM" 24h, profile-local
	EndTime   string    `json:"end_time"`   // "HH:MM" 24h, profile-local
}

// DateException overrides a single civil date. Open exceptions add hours on
// top of the weekly recurrence unless FullDayOverride is set, in which case
// they replace the day entirely. Closed exceptions always remove the day.
type DateException struct {
	gorm.Model
	ProfileID       uint   `json:"profile_id" gorm:"index"`
	Date            string `json:"date" gorm:"index"` // "2006-01-02", profile-local
	Closed          bool   `json:"closed"`
	FullDayOverride bool   `json:"full_day_override"`
	StartTime       string `json:"start_time"` // only for open exceptions
	EndTime         string `json:"end_time"`
	Remarks         string `json:"remarks"`
}

// Holiday is a full-day closure.
type Holiday struct {
	gorm.Model
	ProfileID uint   `json:"profile_id" gorm:"index"`
	Date      string `json:"date" gorm:"index"` // "2006-01-02", profile-local
	Name      string `json:"name"`
}

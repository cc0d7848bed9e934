package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// RoutingPolicy decides which host(s) serve a booking request for this type.
type RoutingPolicy string

const (
	RoutingFixed      RoutingPolicy = "fixed"
	RoutingRoundRobin RoutingPolicy = "round_robin"
	RoutingWeighted   RoutingPolicy = "weighted"
	RoutingCapacity   RoutingPolicy = "capacity"
	RoutingCollective RoutingPolicy = "collective"
)

// LocationMode is where the appointment happens.
type LocationMode string

const (
	LocationInPerson LocationMode = "in_person"
	LocationPhone    LocationMode = "phone"
	LocationVideo    LocationMode = "video"
)

// IntakeQuestion is one entry of the intake schema invitees answer at booking
// time. Stored as JSONB on the appointment type.
type IntakeQuestion struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"` // "text", "select", "bool"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// IntakeSchema is the ordered question list; implements Valuer/Scanner for
// the JSONB column.
type IntakeSchema []IntakeQuestion

func (s IntakeSchema) Value() (driver.Value, error) {
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

func (s *IntakeSchema) Scan(value interface{}) error {
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
		return fmt.Errorf("failed to unmarshal IntakeSchema: unsupported type %T", value)
	}
	return json.Unmarshal(data, s)
}

// AppointmentType is the bookable offering: duration, buffers, limits and the
// routing policy that picks hosts. Identity is immutable; configuration is
// mutable by firm staff.
type AppointmentType struct {
	gorm.Model
	FirmID      uint         `json:"firm_id" gorm:"index"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Location    LocationMode `json:"location" gorm:"default:video"`

	Duration Duration `json:"duration" gorm:"type:jsonb"`

	// Buffer overrides; when zero the profile defaults apply.
	BufferBefore Duration `json:"buffer_before" gorm:"type:jsonb"`
	BufferAfter  Duration `json:"buffer_after" gorm:"type:jsonb"`

	DailyBookingLimit int `json:"daily_booking_limit"` // 0 = unlimited, per host per local day

	Routing            RoutingPolicy `json:"routing" gorm:"default:fixed"`
	FixedHostID        uint          `json:"fixed_host_id"`
	Hosts              []User        `json:"hosts,omitempty" gorm:"many2many:appointment_type_hosts;"`
	FairnessWindowDays int           `json:"fairness_window_days" gorm:"default:30"`
	SoftCap            bool          `json:"soft_cap"` // capacity fallback: route to least-loaded instead of rejecting

	MinAttendees int `json:"min_attendees" gorm:"default:1"`
	MaxAttendees int `json:"max_attendees" gorm:"default:1"`

	RequiresConfirmation bool `json:"requires_confirmation"`

	Intake IntakeSchema `json:"intake" gorm:"type:jsonb"`
}

// HostWeight carries the per-host weight for weighted routing.
type HostWeight struct {
	gorm.Model
	AppointmentTypeID uint    `json:"appointment_type_id" gorm:"index:idx_type_host,unique"`
	HostID            uint    `json:"host_id" gorm:"index:idx_type_host,unique"`
	Weight            float64 `json:"weight" gorm:"default:1"`
	DailyCap          int     `json:"daily_cap"`  // 0 = uncapped
	WeeklyCap         int     `json:"weekly_cap"` // 0 = uncapped
}

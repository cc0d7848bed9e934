package models

import (
	"time"

	"gorm.io/gorm"
)

// BookingLink exposes an AppointmentType to the public booking flow under a
// stable slug. Created by staff, resolved read-only by invitees.
type BookingLink struct {
	gorm.Model
	Slug              string          `json:"slug" gorm:"uniqueIndex"`
	FirmID            uint            `json:"firm_id" gorm:"index"`
	AppointmentTypeID uint            `json:"appointment_type_id"`
	AppointmentType   AppointmentType `json:"appointment_type,omitempty" gorm:"foreignKey:AppointmentTypeID"`
	Active            bool            `json:"active" gorm:"default:true"`
	ExpiresAt         *time.Time      `json:"expires_at"`
	PasswordHash      string          `json:"-"` // bcrypt; empty means public
}

// Expired reports whether the link can no longer be booked through.
func (l *BookingLink) Expired(now time.Time) bool {
	if !l.Active {
		return true
	}
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

package models

import (
	"time"
)

// User is a bookable host (staff member) or an admin.
type User struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	Name         string        `json:"name"`
	Email        string        `json:"email" gorm:"unique"`
	Password     string        `json:"-"` // bcrypt hash
	FirmID       uint          `json:"firm_id" gorm:"index"`
	RoleID       uint          `json:"role_id"`
	Role         Role          `json:"role,omitempty" gorm:"foreignKey:RoleID"`
	Appointments []Appointment `json:"appointments,omitempty" gorm:"foreignKey:HostID"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

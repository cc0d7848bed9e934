package models

import (
	"time"

	"gorm.io/gorm"
)

// RoutingCounter is the persisted, versioned fairness counter for one host in
// one (appointment type, fairness window) pool. Updated inside the booking
// commit transaction, never an in-memory global.
type RoutingCounter struct {
	gorm.Model
	AppointmentTypeID uint      `json:"appointment_type_id" gorm:"index:idx_pool_host_window,unique"`
	HostID            uint      `json:"host_id" gorm:"index:idx_pool_host_window,unique"`
	WindowStart       time.Time `json:"window_start" gorm:"index:idx_pool_host_window,unique"` // UTC day the rolling window snapshot begins
	Assignments       int       `json:"assignments"`
	LastAssignedAt    time.Time `json:"last_assigned_at"` // tie-break: longest idle wins
	Version           int       `json:"version"`          // optimistic concurrency guard
}

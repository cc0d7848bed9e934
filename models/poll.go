package models

import (
	"time"

	"gorm.io/gorm"
)

// PollStatus tracks a meeting poll's lifecycle.
type PollStatus string

const (
	PollOpen       PollStatus = "open"
	PollResolved   PollStatus = "resolved"
	PollUnresolved PollStatus = "unresolved" // deadline passed with no majority; needs manual pick
)

// MeetingPoll proposes a set of slots and collects invitee votes until the
// deadline. Resolution picks a winner deterministically and books it through
// the same arbitration path as a direct booking.
type MeetingPoll struct {
	gorm.Model
	FirmID            uint       `json:"firm_id" gorm:"index"`
	AppointmentTypeID uint       `json:"appointment_type_id"`
	HostID            uint       `json:"host_id"`
	Title             string     `json:"title"`
	Deadline          time.Time  `json:"deadline"` // UTC
	Status            PollStatus `json:"status" gorm:"default:open"`

	Slots []PollSlot `json:"slots,omitempty" gorm:"foreignKey:PollID"`

	WinningSlotID *uint `json:"winning_slot_id"`
	AppointmentID *uint `json:"appointment_id"` // set once the winner is booked
}

// PollSlot is one proposed [Start, End) option.
type PollSlot struct {
	gorm.Model
	PollID    uint      `json:"poll_id" gorm:"index"`
	StartTime time.Time `json:"start_time"` // UTC
	EndTime   time.Time `json:"end_time"`   // UTC

	Votes []PollVote `json:"votes,omitempty" gorm:"foreignKey:SlotID"`
}

// VoteChoice is an invitee's answer for one slot.
type VoteChoice string

const (
	VoteYes   VoteChoice = "yes"
	VoteMaybe VoteChoice = "maybe"
	VoteNo    VoteChoice = "no"
)

// PollVote is one invitee's choice on one slot. Re-voting updates in place;
// the (slot, invitee) pair is unique.
type PollVote struct {
	gorm.Model
	SlotID       uint       `json:"slot_id" gorm:"index:idx_slot_invitee,unique"`
	InviteeEmail string     `json:"invitee_email" gorm:"index:idx_slot_invitee,unique"`
	InviteeName  string     `json:"invitee_name"`
	Choice       VoteChoice `json:"choice"`
}

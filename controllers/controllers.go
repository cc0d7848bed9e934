package controllers

import (
	"github.com/rs/zerolog"

	"github.com/clearbook/scheduling-engine/availability"
	"github.com/clearbook/scheduling-engine/booking"
	"github.com/clearbook/scheduling-engine/calsync"
	"github.com/clearbook/scheduling-engine/polls"
	"github.com/clearbook/scheduling-engine/queue"
	"github.com/clearbook/scheduling-engine/utils"
)

// Shared service handles, wired once from main before routes are mounted.
var (
	AvailabilitySvc *availability.Service
	BookingSvc      *booking.Service
	PollSvc         *polls.Service
	SyncPusher      *calsync.Pusher
	TaskQueue       queue.Queue
	Providers       calsync.Registry
	CredBox         *utils.CredentialBox
	Log             zerolog.Logger
)

// Deps bundles what the handlers need.
type Deps struct {
	Availability *availability.Service
	Booking      *booking.Service
	Polls        *polls.Service
	Pusher       *calsync.Pusher
	Queue        queue.Queue
	Providers    calsync.Registry
	CredBox      *utils.CredentialBox
	Log          zerolog.Logger
}

// Init wires the handler dependencies.
func Init(d Deps) {
	AvailabilitySvc = d.Availability
	BookingSvc = d.Booking
	PollSvc = d.Polls
	SyncPusher = d.Pusher
	TaskQueue = d.Queue
	Providers = d.Providers
	CredBox = d.CredBox
	Log = d.Log
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// WorkflowTrigger is what fires a workflow for an appointment.
type WorkflowTrigger string

const (
	TriggerCreated     WorkflowTrigger = "created"
	TriggerConfirmed   WorkflowTrigger = "confirmed"
	TriggerCanceled    WorkflowTrigger = "canceled"
	TriggerCompleted   WorkflowTrigger = "completed"
	TriggerBeforeStart WorkflowTrigger = "before_start" // fires Delay before StartTime
	TriggerAfterEnd    WorkflowTrigger = "after_end"    // fires Delay after EndTime
)

// WorkflowAction is what a workflow does when it fires.
type WorkflowAction string

const (
	ActionEmailInvitee  WorkflowAction = "email_invitee"
	ActionEmailHost     WorkflowAction = "email_host"
	ActionExternalCall  WorkflowAction = "external_call" // webhook-style update to a collaborator
	ActionMarkNoShow    WorkflowAction = "mark_no_show"
)

// MeetingWorkflow binds a trigger to an action for every appointment of one
// type. Delay applies only to the relative-time triggers.
type MeetingWorkflow struct {
	gorm.Model
	FirmID            uint            `json:"firm_id" gorm:"index"`
	AppointmentTypeID uint            `json:"appointment_type_id" gorm:"index"`
	Name              string          `json:"name"`
	Trigger           WorkflowTrigger `json:"trigger"`
	Delay             Duration        `json:"delay" gorm:"type:jsonb"`
	Action            WorkflowAction  `json:"action"`
	Subject           string          `json:"subject"`
	Body              string          `json:"body"`
	TargetURL         string          `json:"target_url"` // external_call only
	MaxAttempts       int             `json:"max_attempts" gorm:"default:5"`
	Active            bool            `json:"active" gorm:"default:true"`
}

// ExecutionStatus is the workflow execution state machine. An execution
// starts scheduled, runs, and ends succeeded; failures retry with backoff
// until they succeed or go dead.
type ExecutionStatus string

const (
	ExecutionScheduled ExecutionStatus = "scheduled"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionDead      ExecutionStatus = "dead" // retries exhausted; operator review
)

// WorkflowExecution is one scheduled firing of a workflow against one
// appointment. Attempt count and next-eligible time are persisted so retry
// control flow survives restarts.
type WorkflowExecution struct {
	gorm.Model
	WorkflowID    uint            `json:"workflow_id" gorm:"index"`
	Workflow      MeetingWorkflow `json:"workflow,omitempty" gorm:"foreignKey:WorkflowID"`
	AppointmentID uint            `json:"appointment_id" gorm:"index"`

	ScheduledFor time.Time       `json:"scheduled_for" gorm:"index"` // UTC
	Status       ExecutionStatus `json:"status" gorm:"index;default:scheduled"`
	Attempts     int             `json:"attempts"`
	NextRunAt    time.Time       `json:"next_run_at" gorm:"index"` // backoff target for retries
	LastError    string          `json:"last_error"`

	// Stable per-attempt-window key so at-least-once delivery with idempotent
	// handlers never duplicates the action's effect.
	IdempotencyKey string `json:"idempotency_key" gorm:"index"`
}

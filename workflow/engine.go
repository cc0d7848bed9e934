package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/queue"
)

const backoffBase = time.Minute

// Backoff returns the delay before retry number attempt (1-based), doubling
// each time and capped at one hour.
func Backoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > time.Hour || d <= 0 {
		return time.Hour
	}
	return d
}

// executePayload is the queue task body.
type executePayload struct {
	ExecutionID uint `json:"execution_id"`
}

// Dispatcher moves due scheduled executions onto the work queue. The cron
// scheduler ticks it; claiming happens via a conditional status update so two
// dispatcher instances never double-enqueue the same execution.
type Dispatcher struct {
	DB    *gorm.DB
	Queue queue.Queue
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewDispatcher(db *gorm.DB, q queue.Queue, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		DB:    db,
		Queue: q,
		Log:   log.With().Str("comp", "workflow.dispatcher").Logger(),
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Tick enqueues every execution whose NextRunAt has passed.
func (d *Dispatcher) Tick(ctx context.Context) error {
	now := d.Now()
	var due []models.WorkflowExecution
	err := d.DB.Where("status IN ? AND next_run_at <= ?",
		[]models.ExecutionStatus{models.ExecutionScheduled, models.ExecutionFailed}, now).
		Limit(200).Find(&due).Error
	if err != nil {
		return fmt.Errorf("load due executions: %w", err)
	}

	for _, exec := range due {
		// Claim: only one dispatcher wins the flip to running.
		res := d.DB.Model(&models.WorkflowExecution{}).
			Where("id = ? AND status = ?", exec.ID, exec.Status).
			Update("status", models.ExecutionRunning)
		if res.Error != nil {
			d.Log.Error().Err(res.Error).Uint("execution", exec.ID).Msg("claim execution")
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		task, err := queue.NewTask("workflow_execute", executePayload{ExecutionID: exec.ID})
		if err != nil {
			d.Log.Error().Err(err).Uint("execution", exec.ID).Msg("build task")
			continue
		}
		if err := d.Queue.Enqueue(ctx, queue.WorkflowQueue, task); err != nil {
			// Roll the claim back so the next tick retries.
			d.DB.Model(&models.WorkflowExecution{}).Where("id = ?", exec.ID).
				Update("status", models.ExecutionScheduled)
			d.Log.Error().Err(err).Uint("execution", exec.ID).Msg("enqueue execution")
		}
	}
	return nil
}

// Executor consumes the workflow queue and runs actions with retry and
// failure isolation: one dead execution never blocks the rest.
type Executor struct {
	DB      *gorm.DB
	Queue   queue.Queue
	Actions *ActionSet
	Log     zerolog.Logger
	Now     func() time.Time
}

func NewExecutor(db *gorm.DB, q queue.Queue, actions *ActionSet, log zerolog.Logger) *Executor {
	return &Executor{
		DB:      db,
		Queue:   q,
		Actions: actions,
		Log:     log.With().Str("comp", "workflow.executor").Logger(),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run consumes tasks until ctx is canceled.
func (e *Executor) Run(ctx context.Context) {
	for {
		task, err := e.Queue.Dequeue(ctx, queue.WorkflowQueue, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.Log.Error().Err(err).Msg("dequeue workflow task")
			continue
		}
		if task == nil {
			continue
		}

		var payload executePayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			e.Log.Error().Err(err).Str("task", task.ID).Msg("bad workflow payload")
		} else {
			e.Execute(ctx, payload.ExecutionID)
		}
		_ = e.Queue.Ack(ctx, queue.WorkflowQueue, *task)
	}
}

// Execute runs one execution attempt and persists the outcome: succeeded,
// failed with backoff, or dead once attempts are exhausted. Never silently
// drops a failure.
func (e *Executor) Execute(ctx context.Context, executionID uint) {
	var exec models.WorkflowExecution
	err := e.DB.Preload("Workflow").First(&exec, executionID).Error
	if err != nil {
		e.Log.Error().Err(err).Uint("execution", executionID).Msg("load execution")
		return
	}
	if exec.Status != models.ExecutionRunning {
		// Another consumer finished it, or an operator intervened.
		return
	}

	var appt models.Appointment
	if err := e.DB.First(&appt, exec.AppointmentID).Error; err != nil {
		e.fail(&exec, fmt.Errorf("load appointment %d: %w", exec.AppointmentID, err))
		return
	}

	// Supersession: do not apply stale actions. A reminder for an
	// appointment that was canceled after scheduling must not fire.
	if stale(exec.Workflow.Trigger, appt.Status) {
		e.DB.Model(&exec).Updates(map[string]interface{}{
			"status":     models.ExecutionSucceeded,
			"last_error": "skipped: appointment state superseded",
		})
		e.Log.Info().Uint("execution", exec.ID).Str("status", string(appt.Status)).Msg("skipped stale execution")
		return
	}

	if err := e.Actions.Run(ctx, exec.Workflow, appt, exec.IdempotencyKey); err != nil {
		e.fail(&exec, &errs.WorkflowExecutionError{ExecutionID: exec.ID, Err: err})
		return
	}

	e.DB.Model(&exec).Updates(map[string]interface{}{
		"status":   models.ExecutionSucceeded,
		"attempts": exec.Attempts + 1,
	})
}

func (e *Executor) fail(exec *models.WorkflowExecution, cause error) {
	attempts := exec.Attempts + 1
	maxAttempts := exec.Workflow.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": cause.Error(),
	}
	if attempts >= maxAttempts {
		updates["status"] = models.ExecutionDead
		e.Log.Error().Err(cause).Uint("execution", exec.ID).Int("attempts", attempts).
			Msg("execution dead, operator review required")
	} else {
		updates["status"] = models.ExecutionFailed
		updates["next_run_at"] = e.Now().Add(Backoff(attempts))
		e.Log.Warn().Err(cause).Uint("execution", exec.ID).Int("attempts", attempts).
			Msg("execution failed, will retry")
	}
	if err := e.DB.Model(exec).Updates(updates).Error; err != nil {
		e.Log.Error().Err(err).Uint("execution", exec.ID).Msg("persist failure state")
	}
}

// stale reports whether the appointment's current status supersedes the
// workflow's trigger intent.
func stale(trigger models.WorkflowTrigger, status models.AppointmentStatus) bool {
	switch trigger {
	case models.TriggerBeforeStart, models.TriggerConfirmed, models.TriggerCreated:
		return status == models.StatusCanceled || status == models.StatusRescheduled
	case models.TriggerAfterEnd, models.TriggerCompleted:
		return status == models.StatusCanceled
	default:
		return false
	}
}

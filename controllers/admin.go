package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/calsync"
	"github.com/clearbook/scheduling-engine/db"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/utils"
)

// ListDeadExecutions returns workflow executions that exhausted their
// retries and need operator attention.
// GET /admin/workflow-executions/dead
func ListDeadExecutions(c *fiber.Ctx) error {
	var execs []models.WorkflowExecution
	err := db.DB.Preload("Workflow").
		Where("status = ?", models.ExecutionDead).
		Order("updated_at DESC").Limit(200).Find(&execs).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to list dead executions",
			Error:   err.Error(),
		})
	}
	return c.JSON(execs)
}

// RetryDeadExecution puts a dead execution back on the schedule with a
// fresh attempt counter.
// POST /admin/workflow-executions/:id/retry
func RetryDeadExecution(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid execution ID",
			Error:   err.Error(),
		})
	}
	res := db.DB.Model(&models.WorkflowExecution{}).
		Where("id = ? AND status = ?", id, models.ExecutionDead).
		Updates(map[string]interface{}{
			"status":      models.ExecutionScheduled,
			"attempts":    0,
			"next_run_at": time.Now().UTC(),
			"last_error":  "",
		})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to retry execution",
			Error:   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "No dead execution with that ID",
		})
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// ListSyncConflicts returns unresolved conflict rows from the sync log.
// GET /admin/sync-conflicts
func ListSyncConflicts(c *fiber.Ctx) error {
	var attempts []models.SyncAttemptLog
	err := db.DB.Where("outcome = ? AND resolved = ?", models.SyncConflict, false).
		Order("created_at DESC").Limit(200).Find(&attempts).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to list sync conflicts",
			Error:   err.Error(),
		})
	}
	return c.JSON(attempts)
}

// ReplaySyncConflict re-pushes the internal appointment for a conflict row,
// reasserting internal state as authoritative, and marks the row resolved.
// POST /admin/sync-conflicts/:id/replay
func ReplaySyncConflict(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid conflict ID",
			Error:   err.Error(),
		})
	}
	var attempt models.SyncAttemptLog
	if err := db.DB.First(&attempt, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Conflict not found",
			Error:   err.Error(),
		})
	}
	if attempt.Outcome != models.SyncConflict {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Attempt is not a conflict",
		})
	}
	if attempt.AppointmentID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Conflict has no internal appointment to replay",
		})
	}

	err = SyncPusher.Process(c.Context(), calsync.PushPayload{
		AppointmentID: *attempt.AppointmentID,
		Op:            calsync.OpUpsert,
	})
	if err != nil {
		return utils.FailJSON(c, "Replay failed", err)
	}

	if err := db.DB.Model(&attempt).Update("resolved", true).Error; err != nil {
		Log.Error().Err(err).Uint("attempt", attempt.ID).Msg("failed to mark conflict resolved")
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// DismissSyncConflict marks a conflict row resolved without replaying,
// accepting the external calendar's version of events.
// POST /admin/sync-conflicts/:id/dismiss
func DismissSyncConflict(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid conflict ID",
			Error:   err.Error(),
		})
	}
	res := db.DB.Model(&models.SyncAttemptLog{}).
		Where("id = ? AND outcome = ?", id, models.SyncConflict).
		Update("resolved", true)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to dismiss conflict",
			Error:   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Conflict not found",
		})
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

package utils

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/errs"
)

// ErrorResponse is a struct for error response
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// StatusForError maps the scheduling error taxonomy to HTTP status codes.
// Only validation and conflict errors are user-visible failures; everything
// else is internal.
func StatusForError(err error) int {
	switch {
	case errs.IsValidation(err):
		return fiber.StatusBadRequest
	case errs.IsConflict(err):
		return fiber.StatusConflict
	case errs.IsNoAvailableHost(err):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// FailJSON writes the standard error payload for err.
func FailJSON(c *fiber.Ctx, message string, err error) error {
	return c.Status(StatusForError(err)).JSON(ErrorResponse{
		Message: message,
		Error:   err.Error(),
	})
}

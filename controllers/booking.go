package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/booking"
	"github.com/clearbook/scheduling-engine/db"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
	"github.com/clearbook/scheduling-engine/utils"
)

// BookingRequest is the public booking payload.
type BookingRequest struct {
	Link     string               `json:"link"`
	Start    time.Time            `json:"start"`
	End      time.Time            `json:"end"`
	Name     string               `json:"name"`
	Email    string               `json:"email"`
	TimeZone string               `json:"time_zone"`
	Password string               `json:"password,omitempty"`
	Answers  models.IntakeAnswers `json:"answers,omitempty"`
}

// CreateBooking runs a slot through arbitration.
// POST /bookings
func CreateBooking(c *fiber.Ctx) error {
	var req BookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invitee email is required",
		})
	}
	tz := req.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	appt, err := BookingSvc.RequestBooking(c.Context(), booking.Request{
		LinkSlug: req.Link,
		Slot:     timeslot.Interval{Start: req.Start.UTC(), End: req.End.UTC()},
		Invitee:  booking.Invitee{Name: req.Name, Email: req.Email},
		Answers:  req.Answers,
		Password: req.Password,
		TimeZone: tz,
	})
	if err != nil {
		return utils.FailJSON(c, "Booking failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(appt)
}

// GetBooking fetches one appointment by public ID.
// GET /bookings/:id
func GetBooking(c *fiber.Ctx) error {
	var appt models.Appointment
	err := db.DB.Preload("AppointmentType").Preload("Host").Preload("AuditTrail").
		Where("public_id = ?", c.Params("id")).First(&appt).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment not found",
			Error:   err.Error(),
		})
	}
	return c.JSON(appt)
}

// CancelBooking cancels an appointment.
// POST /bookings/:id/cancel
func CancelBooking(c *fiber.Ctx) error {
	appt, err := findByPublicID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment not found",
			Error:   err.Error(),
		})
	}

	updated, err := BookingSvc.Cancel(c.Context(), appt.ID, actorFrom(c))
	if err != nil {
		return utils.FailJSON(c, "Cancel failed", err)
	}
	return c.JSON(updated)
}

// RescheduleRequest carries the replacement slot.
type RescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RescheduleBooking books a new slot and links the old appointment to it.
// POST /bookings/:id/reschedule
func RescheduleBooking(c *fiber.Ctx) error {
	var req RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}

	appt, err := findByPublicID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment not found",
			Error:   err.Error(),
		})
	}

	replacement, err := BookingSvc.Reschedule(c.Context(), appt.ID,
		timeslot.Interval{Start: req.Start.UTC(), End: req.End.UTC()}, actorFrom(c))
	if err != nil {
		return utils.FailJSON(c, "Reschedule failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(replacement)
}

// ConfirmBooking approves an awaiting_confirmation appointment. Staff only.
// POST /bookings/:id/confirm
func ConfirmBooking(c *fiber.Ctx) error {
	appt, err := findByPublicID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment not found",
			Error:   err.Error(),
		})
	}

	updated, err := BookingSvc.Confirm(c.Context(), appt.ID, actorFrom(c))
	if err != nil {
		return utils.FailJSON(c, "Confirm failed", err)
	}
	return c.JSON(updated)
}

func findByPublicID(publicID string) (*models.Appointment, error) {
	var appt models.Appointment
	err := db.DB.Where("public_id = ?", publicID).First(&appt).Error
	return &appt, err
}

func actorFrom(c *fiber.Ctx) string {
	if id, ok := c.Locals("userID").(uint); ok {
		return "host:" + strconv.FormatUint(uint64(id), 10)
	}
	return "invitee"
}

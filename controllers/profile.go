package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/db"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
	"github.com/clearbook/scheduling-engine/utils"
)

// GetProfile returns the caller's availability profile with its recurrence
// rows preloaded.
// GET /profile
func GetProfile(c *fiber.Ctx) error {
	hostID, ok := c.Locals("userID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var profile models.AvailabilityProfile
	err := db.DB.Preload("WeeklyHours").Preload("Exceptions").Preload("Holidays").
		Where("host_id = ?", hostID).First(&profile).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Availability profile not found",
			Error:   err.Error(),
		})
	}
	return c.JSON(profile)
}

// UpsertProfileRequest carries the profile settings and the full weekly
// recurrence, which replaces whatever was stored before.
type UpsertProfileRequest struct {
	TimeZone          string              `json:"time_zone"`
	MinimumNotice     models.Duration     `json:"minimum_notice"`
	MaxHorizonDays    int                 `json:"max_horizon_days"`
	SlotGranularity   models.Duration     `json:"slot_granularity"`
	BufferBefore      models.Duration     `json:"buffer_before"`
	BufferAfter       models.Duration     `json:"buffer_after"`
	TreatAllDayAsBusy *bool               `json:"treat_all_day_as_busy"`
	WeeklyHours       []models.WeeklyHour `json:"weekly_hours"`
}

// UpsertProfile creates or replaces the caller's availability profile.
// PUT /profile
func UpsertProfile(c *fiber.Ctx) error {
	hostID, ok := c.Locals("userID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var req UpsertProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}
	if _, err := time.LoadLocation(req.TimeZone); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid timezone identifier",
			Error:   err.Error(),
		})
	}
	for _, wh := range req.WeeklyHours {
		start, err := timeslot.ParseClock(wh.StartTime)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
				Message: "Invalid weekly hour start",
				Error:   err.Error(),
			})
		}
		end, err := timeslot.ParseClock(wh.EndTime)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
				Message: "Invalid weekly hour end",
				Error:   err.Error(),
			})
		}
		if end.Minutes() <= start.Minutes() {
			return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
				Message: "Weekly hour end must be after start",
			})
		}
	}

	var profile models.AvailabilityProfile
	err := db.DB.Where("host_id = ?", hostID).
		FirstOrInit(&profile, models.AvailabilityProfile{HostID: hostID}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to load profile",
			Error:   err.Error(),
		})
	}

	profile.TimeZone = req.TimeZone
	profile.MinimumNotice = req.MinimumNotice
	profile.MaxHorizonDays = req.MaxHorizonDays
	profile.SlotGranularity = req.SlotGranularity
	profile.BufferBefore = req.BufferBefore
	profile.BufferAfter = req.BufferAfter
	if req.TreatAllDayAsBusy != nil {
		profile.TreatAllDayAsBusy = *req.TreatAllDayAsBusy
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&profile).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", profile.ID).Delete(&models.WeeklyHour{}).Error; err != nil {
			return err
		}
		for i := range req.WeeklyHours {
			req.WeeklyHours[i].ID = 0
			req.WeeklyHours[i].ProfileID = profile.ID
			if err := tx.Create(&req.WeeklyHours[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to save profile",
			Error:   err.Error(),
		})
	}
	return GetProfile(c)
}

// AddException records a single-date override on the caller's profile.
// POST /profile/exceptions
func AddException(c *fiber.Ctx) error {
	hostID, ok := c.Locals("userID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var exc models.DateException
	if err := c.BodyParser(&exc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}
	var profile models.AvailabilityProfile
	if err := db.DB.Where("host_id = ?", hostID).First(&profile).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Availability profile not found",
			Error:   err.Error(),
		})
	}
	exc.ID = 0
	exc.ProfileID = profile.ID
	if err := db.DB.Create(&exc).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to save exception",
			Error:   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(exc)
}

// DeleteException removes a date override.
// DELETE /profile/exceptions/:id
func DeleteException(c *fiber.Ctx) error {
	hostID, ok := c.Locals("userID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid exception ID",
			Error:   err.Error(),
		})
	}
	res := db.DB.Where("id = ? AND profile_id IN (?)", id,
		db.DB.Model(&models.AvailabilityProfile{}).Select("id").Where("host_id = ?", hostID)).
		Delete(&models.DateException{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to delete exception",
			Error:   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Exception not found",
		})
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// CreateLinkRequest opens an appointment type to the public under a slug.
type CreateLinkRequest struct {
	AppointmentTypeID uint       `json:"appointment_type_id"`
	ExpiresAt         *time.Time `json:"expires_at"`
	Password          string     `json:"password,omitempty"`
}

// CreateBookingLink mints a public slug for an appointment type.
// POST /links
func CreateBookingLink(c *fiber.Ctx) error {
	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}

	var apptType models.AppointmentType
	err := db.DB.Where("id = ? AND firm_id = ?", req.AppointmentTypeID, firmID).
		First(&apptType).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment type not found",
			Error:   err.Error(),
		})
	}

	link := models.BookingLink{
		Slug:              utils.GenerateSlug(),
		FirmID:            firmID,
		AppointmentTypeID: apptType.ID,
		Active:            true,
		ExpiresAt:         req.ExpiresAt,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
				Message: "Failed to hash link password",
				Error:   err.Error(),
			})
		}
		link.PasswordHash = string(hash)
	}
	if err := db.DB.Create(&link).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to create booking link",
			Error:   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

// DeactivateBookingLink turns a slug off without deleting its history.
// DELETE /links/:slug
func DeactivateBookingLink(c *fiber.Ctx) error {
	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	res := db.DB.Model(&models.BookingLink{}).
		Where("slug = ? AND firm_id = ?", c.Params("slug"), firmID).
		Update("active", false)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to deactivate link",
			Error:   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Booking link not found",
		})
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
		Message: "Authentication required",
	})
}

package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/db"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/utils"
)

// ListAppointmentTypes returns the firm's bookable offerings.
// GET /appointment-types
func ListAppointmentTypes(c *fiber.Ctx) error {
	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var types []models.AppointmentType
	err := db.DB.Preload("Hosts").Where("firm_id = ?", firmID).Find(&types).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to list appointment types",
			Error:   err.Error(),
		})
	}
	return c.JSON(types)
}

// GetAppointmentType returns one offering with its host pool and weights.
// GET /appointment-types/:id
func GetAppointmentType(c *fiber.Ctx) error {
	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var apptType models.AppointmentType
	err := db.DB.Preload("Hosts").
		Where("id = ? AND firm_id = ?", c.Params("id"), firmID).
		First(&apptType).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment type not found",
			Error:   err.Error(),
		})
	}
	var weights []models.HostWeight
	db.DB.Where("appointment_type_id = ?", apptType.ID).Find(&weights)
	return c.JSON(fiber.Map{"appointment_type": apptType, "host_weights": weights})
}

// AppointmentTypeRequest is the create/update payload. HostIDs names the
// routing pool; Weights is honored only for the weighted and capacity
// policies.
type AppointmentTypeRequest struct {
	models.AppointmentType
	HostIDs []uint              `json:"host_ids"`
	Weights []models.HostWeight `json:"weights"`
}

// CreateAppointmentType creates an offering and its host pool.
// POST /appointment-types
func CreateAppointmentType(c *fiber.Ctx) error {
	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var req AppointmentTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}
	if req.Duration.Hours == 0 && req.Duration.Minutes == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Duration is required",
		})
	}
	if req.Routing == models.RoutingFixed && req.FixedHostID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Fixed routing requires a fixed host",
		})
	}

	apptType := req.AppointmentType
	apptType.ID = 0
	apptType.FirmID = firmID
	if err := db.DB.Create(&apptType).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to create appointment type",
			Error:   err.Error(),
		})
	}
	if err := replacePool(&apptType, req.HostIDs, req.Weights); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to assign host pool",
			Error:   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(apptType)
}

// UpdateAppointmentType updates the configuration and host pool.
// PUT /appointment-types/:id
func UpdateAppointmentType(c *fiber.Ctx) error {
	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	var existing models.AppointmentType
	err := db.DB.Where("id = ? AND firm_id = ?", c.Params("id"), firmID).
		First(&existing).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment type not found",
			Error:   err.Error(),
		})
	}

	var req AppointmentTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}
	apptType := req.AppointmentType
	apptType.ID = existing.ID
	apptType.FirmID = firmID
	apptType.CreatedAt = existing.CreatedAt
	if err := db.DB.Save(&apptType).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to update appointment type",
			Error:   err.Error(),
		})
	}
	if err := replacePool(&apptType, req.HostIDs, req.Weights); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to update host pool",
			Error:   err.Error(),
		})
	}
	return c.JSON(apptType)
}

// DeleteAppointmentType soft-deletes an offering. Existing appointments keep
// their foreign key and stay queryable.
// DELETE /appointment-types/:id
func DeleteAppointmentType(c *fiber.Ctx) error {
	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return unauthenticated(c)
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid appointment type ID",
			Error:   err.Error(),
		})
	}
	res := db.DB.Where("id = ? AND firm_id = ?", id, firmID).
		Delete(&models.AppointmentType{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to delete appointment type",
			Error:   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Appointment type not found",
		})
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// replacePool swaps the many2many host pool and the weight rows.
func replacePool(apptType *models.AppointmentType, hostIDs []uint, weights []models.HostWeight) error {
	if hostIDs == nil {
		return nil
	}
	var hosts []models.User
	if len(hostIDs) > 0 {
		if err := db.DB.Find(&hosts, hostIDs).Error; err != nil {
			return err
		}
	}
	if err := db.DB.Model(apptType).Association("Hosts").Replace(hosts); err != nil {
		return err
	}
	if err := db.DB.Where("appointment_type_id = ?", apptType.ID).
		Delete(&models.HostWeight{}).Error; err != nil {
		return err
	}
	for i := range weights {
		weights[i].ID = 0
		weights[i].AppointmentTypeID = apptType.ID
		if err := db.DB.Create(&weights[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

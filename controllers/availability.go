package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/availability"
	"github.com/clearbook/scheduling-engine/db"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
	"github.com/clearbook/scheduling-engine/utils"
)

// GetAvailability returns bookable slots for a booking link.
// GET /availability?link=<slug>&from=<RFC3339>&to=<RFC3339>
func GetAvailability(c *fiber.Ctx) error {
	slug := c.Query("link")
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Missing link parameter",
		})
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid from timestamp",
			Error:   err.Error(),
		})
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil || !to.After(from) {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid to timestamp",
		})
	}

	var link models.BookingLink
	if err := db.DB.Preload("AppointmentType").Preload("AppointmentType.Hosts").
		Where("slug = ?", slug).First(&link).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Booking link not found",
			Error:   err.Error(),
		})
	}
	if link.Expired(time.Now().UTC()) {
		return c.Status(fiber.StatusGone).JSON(utils.ErrorResponse{
			Message: "Booking link is expired or inactive",
		})
	}

	apptType := link.AppointmentType
	free, loc, err := freeForLink(apptType, from.UTC(), to.UTC())
	if err != nil {
		return utils.FailJSON(c, "Failed to compute availability", err)
	}

	slots := availability.Slots(free, apptType.Duration.ToDuration(), slotGranularity(apptType), loc)
	return c.JSON(fiber.Map{
		"free_intervals": free,
		"slots":          slots,
	})
}

// freeForLink resolves the host pool for the link's routing policy and
// computes free intervals: the union over routable hosts for single-host
// policies, the intersection for collective types.
func freeForLink(apptType models.AppointmentType, from, to time.Time) (timeslot.Set, *time.Location, error) {
	hostIDs := poolHostIDs(apptType)

	loc := time.UTC
	if len(hostIDs) > 0 {
		var profile models.AvailabilityProfile
		if err := db.DB.Where("host_id = ?", hostIDs[0]).First(&profile).Error; err == nil {
			if l, lerr := time.LoadLocation(profile.TimeZone); lerr == nil {
				loc = l
			}
		}
	}

	if apptType.Routing == models.RoutingCollective {
		free, err := AvailabilitySvc.FreeForHosts(hostIDs, apptType, from, to)
		return free, loc, err
	}

	var union timeslot.Set
	for _, hostID := range hostIDs {
		free, err := AvailabilitySvc.FreeForHost(hostID, apptType, from, to)
		if err != nil {
			return nil, loc, err
		}
		union = timeslot.Union(union, free)
	}
	return union, loc, nil
}

func poolHostIDs(apptType models.AppointmentType) []uint {
	if apptType.Routing == models.RoutingFixed {
		if apptType.FixedHostID == 0 {
			return nil
		}
		return []uint{apptType.FixedHostID}
	}
	ids := make([]uint, 0, len(apptType.Hosts))
	for _, h := range apptType.Hosts {
		ids = append(ids, h.ID)
	}
	return ids
}

func slotGranularity(apptType models.AppointmentType) time.Duration {
	// Granularity comes from the first routable host's profile; types without
	// a profiled host fall back to the appointment duration.
	ids := poolHostIDs(apptType)
	if len(ids) > 0 {
		var profile models.AvailabilityProfile
		if err := db.DB.Where("host_id = ?", ids[0]).First(&profile).Error; err == nil {
			if g := profile.SlotGranularity.ToDuration(); g > 0 {
				return g
			}
		}
	}
	return apptType.Duration.ToDuration()
}

// GetBookingLink resolves the public metadata of a booking link.
// GET /links/:slug
func GetBookingLink(c *fiber.Ctx) error {
	var link models.BookingLink
	if err := db.DB.Preload("AppointmentType").Where("slug = ?", c.Params("slug")).First(&link).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Booking link not found",
			Error:   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"slug":               link.Slug,
		"appointment_type":   link.AppointmentType.Name,
		"duration":           link.AppointmentType.Duration,
		"location":           link.AppointmentType.Location,
		"intake":             link.AppointmentType.Intake,
		"password_protected": link.PasswordHash != "",
		"active":             link.Active && !link.Expired(time.Now().UTC()),
	})
}

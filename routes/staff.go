package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/controllers"
	"github.com/clearbook/scheduling-engine/middleware"
)

// SetupStaffRoutes configures the staff-facing configuration surface:
// availability profiles, booking links and appointment types.
func SetupStaffRoutes(app *fiber.App) {
	profile := app.Group("/profile", middleware.Protected())
	profile.Get("/", controllers.GetProfile)
	profile.Put("/", controllers.UpsertProfile)
	profile.Post("/exceptions", controllers.AddException)
	profile.Delete("/exceptions/:id", controllers.DeleteException)

	// GET /links/:slug stays public; only management is gated.
	app.Post("/links", middleware.Protected(), controllers.CreateBookingLink)
	app.Delete("/links/:slug", middleware.Protected(), controllers.DeactivateBookingLink)

	types := app.Group("/appointment-types", middleware.Protected())
	types.Get("/", controllers.ListAppointmentTypes)
	types.Get("/:id", controllers.GetAppointmentType)
	types.Post("/", middleware.RequirePermission("appointment_types", "write"), controllers.CreateAppointmentType)
	types.Put("/:id", middleware.RequirePermission("appointment_types", "write"), controllers.UpdateAppointmentType)
	types.Delete("/:id", middleware.RequirePermission("appointment_types", "write"), controllers.DeleteAppointmentType)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/controllers"
	"github.com/clearbook/scheduling-engine/middleware"
)

// SetupBookingRoutes configures the public booking flow: link resolution,
// availability queries and the booking lifecycle.
func SetupBookingRoutes(app *fiber.App) {
	// Public, link-scoped
	app.Get("/links/:slug", controllers.GetBookingLink)
	app.Get("/availability", controllers.GetAvailability)

	bookings := app.Group("/bookings")
	bookings.Post("/", controllers.CreateBooking)
	bookings.Get("/:id", controllers.GetBooking)
	bookings.Post("/:id/cancel", controllers.CancelBooking)
	bookings.Post("/:id/reschedule", controllers.RescheduleBooking)

	// Staff only: confirmation of awaiting_confirmation bookings
	bookings.Post("/:id/confirm", middleware.Protected(), controllers.ConfirmBooking)
}

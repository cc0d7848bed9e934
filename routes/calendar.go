package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/controllers"
	"github.com/clearbook/scheduling-engine/middleware"
)

// SetupCalendarRoutes configures calendar connections and the provider
// webhook endpoint.
func SetupCalendarRoutes(app *fiber.App) {
	calendars := app.Group("/calendars", middleware.Protected())
	calendars.Post("/connect", controllers.ConnectCalendar)
	calendars.Get("/", controllers.ListCalendarConnections)
	calendars.Delete("/:id", controllers.DisconnectCalendar)

	// Signature-verified, no JWT: providers call this directly.
	app.Post("/webhooks/calendar/:provider", controllers.CalendarWebhook)
}

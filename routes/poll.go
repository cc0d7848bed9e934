package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/controllers"
	"github.com/clearbook/scheduling-engine/middleware"
)

// SetupPollRoutes configures meeting polls: staff open and resolve them,
// invitees vote anonymously.
func SetupPollRoutes(app *fiber.App) {
	polls := app.Group("/polls")

	polls.Post("/", middleware.Protected(), controllers.CreatePoll)
	polls.Get("/:id", controllers.GetPoll)
	polls.Post("/:id/votes", controllers.CastVote)
	polls.Post("/:id/resolve", middleware.Protected(), controllers.ResolvePoll)
}

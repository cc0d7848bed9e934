package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/controllers"
	"github.com/clearbook/scheduling-engine/middleware"
)

// SetupAdminRoutes configures operator surfaces: dead workflow executions
// and sync conflict review.
func SetupAdminRoutes(app *fiber.App) {
	admin := app.Group("/admin", middleware.Protected(), middleware.RequirePermission("admin", "write"))

	admin.Get("/workflow-executions/dead", controllers.ListDeadExecutions)
	admin.Post("/workflow-executions/:id/retry", controllers.RetryDeadExecution)

	admin.Get("/sync-conflicts", controllers.ListSyncConflicts)
	admin.Post("/sync-conflicts/:id/replay", controllers.ReplaySyncConflict)
	admin.Post("/sync-conflicts/:id/dismiss", controllers.DismissSyncConflict)
}

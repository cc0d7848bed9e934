package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/controllers"
	"github.com/clearbook/scheduling-engine/middleware"
)

// SetupRBACRoutes configures role and permission management
func SetupRBACRoutes(app *fiber.App) {
	rbac := app.Group("/rbac", middleware.Protected())

	// Roles
	rbac.Post("/roles", middleware.RequirePermission("roles", "write"), controllers.CreateRole)
	rbac.Get("/roles", middleware.RequirePermission("roles", "read"), controllers.GetRoles)

	// Permissions
	rbac.Post("/permissions", middleware.RequirePermission("permissions", "write"), controllers.CreatePermission)
	rbac.Get("/permissions", middleware.RequirePermission("permissions", "read"), controllers.GetPermissions)

	// Assignments
	rbac.Post("/users/role", middleware.RequirePermission("roles", "write"), controllers.AssignRoleToUser)
	rbac.Post("/roles/permission", middleware.RequirePermission("roles", "write"), controllers.AssignPermissionToRole)
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kpi-service/internal/api/http/handlers"
	"github.com/spec-kit/kpi-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Kpis           *handlers.KpisHandler
	Dashboard      *handlers.DashboardHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	kpis := api.Group("/kpis")
	kpis.Get("", cfg.Kpis.List)
	kpis.Post("/progress", cfg.Kpis.Progress)
	kpis.Get("/:id/history", cfg.Kpis.History)

	adminKpis := kpis.Group("", auth.RequireAdmin())
	adminKpis.Post("", cfg.Kpis.Create)
	adminKpis.Get("/created-by/:userId", cfg.Kpis.CreatedBy)
	adminKpis.Get("/assigned-to/:userId", cfg.Kpis.AssignedTo)
	adminKpis.Put("/:id/value", cfg.Kpis.UpdateValue)
	adminKpis.Put("/:id", cfg.Kpis.UpdateFull)
	adminKpis.Delete("/:id", cfg.Kpis.Delete)

	api.Get("/dashboard", cfg.Dashboard.Get)

	notifications := api.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)

	users := api.Group("/users", auth.RequireAdmin())
	users.Get("", cfg.Users.List)
	users.Post("", cfg.Users.Create)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)
}

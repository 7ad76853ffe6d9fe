package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assist-service/internal/api/http/handlers"
	"github.com/spec-kit/assist-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Requests       *handlers.RequestsHandler
	History        *handlers.HistoryHandler
	FollowUps      *handlers.FollowUpsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	requests := app.Group("/requests", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	requests.Post("", cfg.Requests.Create)
	requests.Get("", cfg.Requests.ListActive)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Patch("/:id/sub-status", cfg.Requests.UpdateSubStatus)
	requests.Patch("/:id/status", cfg.Requests.SetStatus)
	requests.Post("/:id/close", cfg.Requests.Close)
	requests.Post("/:id/reopen", cfg.Requests.Reopen)
	requests.Post("/:id/comments", cfg.Requests.AddComment)

	history := app.Group("/history", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	history.Get("/mine", cfg.History.MyHistory)
	history.Get("/all", auth.RequireElevated(), cfg.History.AllHistory)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireElevated())
	admin.Post("/follow-ups/scan", cfg.FollowUps.RunScan)
}

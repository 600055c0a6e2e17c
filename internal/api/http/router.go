package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/enrollment-service/internal/api/http/handlers"
	"github.com/spec-kit/enrollment-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Chat       *handlers.ChatHandler
	Sessions   *handlers.SessionsHandler
	Datadump   *handlers.DatadumpHandler
	Admin      *handlers.AdminHandler
	AdminGuard *auth.AdminGuard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	api.Post("/chat", cfg.Chat.Chat)
	api.Get("/session/:session_id", cfg.Sessions.GetSession)
	api.Get("/ticket/:session_id", cfg.Sessions.GetTicket)
	api.Get("/summary/:session_id", cfg.Sessions.GetSummary)

	api.Post("/zendesk/datadump", cfg.AdminGuard.Handle, cfg.Datadump.Import)
	api.Get("/zendesk/tickets", cfg.Datadump.ListTickets)

	authGroup := app.Group("/auth")
	authGroup.Post("/admin/login", cfg.Admin.Login)
}

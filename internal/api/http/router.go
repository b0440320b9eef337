package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-support/internal/api/http/handlers"
	"github.com/spec-kit/crm-support/internal/auth"
	"github.com/spec-kit/crm-support/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Tickets        *handlers.TicketsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Get("/tickets/:id/messages", cfg.Tickets.ListMessages)
	api.Post("/tickets/:id/messages", cfg.Tickets.AppendMessage)

	staffOnly := auth.RequireSubject(domain.SubjectTypeAgent, domain.SubjectTypeService)
	api.Patch("/tickets/:id", staffOnly, cfg.Tickets.UpdateTicket)
	api.Put("/tickets/:id/status", staffOnly, cfg.Tickets.UpdateStatus)
	api.Put("/tickets/:id/csat", cfg.Tickets.RecordCsat)
	api.Delete("/tickets/:id", staffOnly, cfg.Tickets.DeleteTicket)

	api.Get("/dashboard", staffOnly, cfg.Dashboard.GetDashboard)
}

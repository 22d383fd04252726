package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Roster         *handlers.RosterHandler
	Triage         *handlers.TriageHandler
	Approval       *handlers.ApprovalHandler
	Tickets        *handlers.TicketsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)
	app.Post("/auth/password/change",
		cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.ChangePassword)

	// Token-gated email links carry their own capability; no session.
	app.Get("/ticket/approve/:ticket_id", cfg.Approval.Approve)
	app.Get("/ticket/reject/:ticket_id", cfg.Approval.Reject)

	admin := app.Group("/roster",
		cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RosterRoleAdmin))
	admin.Post("/", cfg.Roster.Create)
	admin.Get("/", cfg.Roster.List)

	managers := app.Group("",
		cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RosterRoleManager, domain.RosterRoleAdmin))
	managers.Post("/triage/run", cfg.Triage.Run)
	managers.Post("/assignments/auto", cfg.Triage.AutoAssign)
	managers.Post("/review_ticket_action/:ticket_id", cfg.Approval.Review)
	managers.Get("/dashboard/summary", cfg.Dashboard.Summary)
	managers.Get("/dashboard/export", cfg.Dashboard.Export)

	app.Get("/tickets/mine",
		cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Tickets.Mine)
}

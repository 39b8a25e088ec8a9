package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	SLA            *handlers.SLAHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil {
		app.Get("/internal/metrics", cfg.Metrics.Snapshot)
	}

	staff := app.Group("/staff/sla", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	staff.Get("/tickets/:id", cfg.SLA.GetCompliance)
	staff.Put("/tickets/:id/policy",
		auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin),
		cfg.SLA.AssignPolicy)
	staff.Get("/breaches", cfg.SLA.ListBreaches)
	staff.Get("/warnings", cfg.SLA.ListWarnings)
	staff.Get("/notifications", cfg.SLA.Notifications)
}

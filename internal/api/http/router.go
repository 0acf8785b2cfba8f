package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-bridge/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Handoff   *handlers.HandoffHandler
	Analytics *handlers.AnalyticsHandler

	Auth        fiber.Handler
	RateLimit   fiber.Handler
	Idempotency fiber.Handler
}

// RegisterRoutes wires HTTP routes. Every /v1 route sits behind
// authentication and rate limiting; ingest routes additionally honor
// Idempotency-Key.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	v1 := app.Group("/v1", cfg.Auth, cfg.RateLimit)

	v1.Post("/handoff", cfg.Idempotency, cfg.Handoff.Handoff)
	v1.Post("/notes/render", cfg.Handoff.RenderNote)
	v1.Post("/tickets/find-or-create", cfg.Idempotency, cfg.Handoff.FindOrCreateTicket)
	v1.Post("/tickets", cfg.Idempotency, cfg.Handoff.CreateTicket)
	v1.Post("/tickets/:id/notes", cfg.Idempotency, cfg.Handoff.AppendNote)

	v1.Get("/analytics/volume", cfg.Analytics.VolumeTrend)
	v1.Get("/analytics/escalations", cfg.Analytics.EscalationMetrics)
	v1.Get("/analytics/health", cfg.Analytics.ServiceHealth)
	v1.Get("/analytics/patterns", cfg.Analytics.TimePatterns)
	v1.Get("/analytics/customers", cfg.Analytics.CustomerPatterns)
}

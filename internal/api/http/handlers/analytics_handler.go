package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-bridge/internal/analytics"
	"github.com/spec-kit/handoff-bridge/internal/service"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

// AnalyticsHandler exposes reporting over ticket and escalation history.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: analyticsService}
}

// VolumeTrend GET /v1/analytics/volume.
func (h *AnalyticsHandler) VolumeTrend(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	granularity, err := parseGranularity(c)
	if err != nil {
		return err
	}
	report, err := h.service.VolumeTrend(c.UserContext(), window, granularity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// EscalationMetrics GET /v1/analytics/escalations.
func (h *AnalyticsHandler) EscalationMetrics(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	report, err := h.service.EscalationMetrics(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// ServiceHealth GET /v1/analytics/health.
func (h *AnalyticsHandler) ServiceHealth(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	report, err := h.service.ServiceHealth(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// TimePatterns GET /v1/analytics/patterns.
func (h *AnalyticsHandler) TimePatterns(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	report, err := h.service.TimePatterns(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// CustomerPatterns GET /v1/analytics/customers.
func (h *AnalyticsHandler) CustomerPatterns(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	report, err := h.service.CustomerPatterns(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func parseWindow(c *fiber.Ctx) (service.AnalyticsWindow, error) {
	window := service.AnalyticsWindow{Service: c.Query("service")}

	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return service.AnalyticsWindow{}, apperrors.NewValidationError("invalid from timestamp", map[string]any{
				"field": "from",
				"value": raw,
			})
		}
		window.From = ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return service.AnalyticsWindow{}, apperrors.NewValidationError("invalid to timestamp", map[string]any{
				"field": "to",
				"value": raw,
			})
		}
		window.To = ts
	}
	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return service.AnalyticsWindow{}, apperrors.NewValidationError("to must not precede from", nil)
	}
	return window, nil
}

func parseGranularity(c *fiber.Ctx) (analytics.Granularity, error) {
	raw := c.Query("granularity", string(analytics.GranularityDay))
	switch granularity := analytics.Granularity(raw); granularity {
	case analytics.GranularityDay, analytics.GranularityWeek, analytics.GranularityMonth:
		return granularity, nil
	default:
		return "", apperrors.NewValidationError("invalid granularity", map[string]any{
			"field": "granularity",
			"value": raw,
		})
	}
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-bridge/internal/api/dto"
	"github.com/spec-kit/handoff-bridge/internal/domain"
	"github.com/spec-kit/handoff-bridge/internal/service"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

// HandoffHandler exposes the ingest surface: handoff, note rendering and
// ticket operations.
type HandoffHandler struct {
	service *service.HandoffService
}

// NewHandoffHandler constructs handler.
func NewHandoffHandler(handoffService *service.HandoffService) *HandoffHandler {
	return &HandoffHandler{service: handoffService}
}

// Handoff POST /v1/handoff. Renders the note, finds or creates the
// ticket and appends the note in one call.
func (h *HandoffHandler) Handoff(c *fiber.Ctx) error {
	var req dto.HandoffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.Handoff(c.UserContext(), req.ToPayload())
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.FromResult(result)})
}

// RenderNote POST /v1/notes/render.
func (h *HandoffHandler) RenderNote(c *fiber.Ctx) error {
	var req dto.HandoffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rendered, components, err := h.service.RenderNote(req.ToPayload())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RenderNoteResponse{
		Note:       rendered,
		Category:   string(components.Category),
		Reason:     string(components.Reason),
		Summary:    components.Summary,
		Confidence: components.Confidence,
	}})
}

// FindOrCreateTicket POST /v1/tickets/find-or-create.
func (h *HandoffHandler) FindOrCreateTicket(c *fiber.Ctx) error {
	var req dto.HandoffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.FindOrCreateTicket(c.UserContext(), req.ToPayload())
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.FromResult(result)})
}

// CreateTicket POST /v1/tickets. Always opens a new ticket.
func (h *HandoffHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.HandoffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.CreateTicket(c.UserContext(), req.ToPayload())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromResult(result)})
}

// AppendNote POST /v1/tickets/:id/notes.
func (h *HandoffHandler) AppendNote(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	var req dto.AppendNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Text == "" {
		return apperrors.NewValidationError("text is required", map[string]any{"field": "text"})
	}
	if err := h.service.AppendNote(c.UserContext(), ticketID, "", req.Text, domain.Source(req.Source)); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AppendNoteResponse{
		Success:  true,
		TicketID: ticketID,
	}})
}

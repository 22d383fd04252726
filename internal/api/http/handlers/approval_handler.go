package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/service"
)

// ApprovalHandler serves the manager decision flow: the token-gated
// email links and the authenticated review-queue action.
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler constructs handler.
func NewApprovalHandler(approvalService *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvalService}
}

// Approve handles GET /ticket/approve/:ticket_id.
func (h *ApprovalHandler) Approve(c *fiber.Ctx) error {
	message, err := h.approvals.Approve(c.UserContext(), c.Params("ticket_id"), c.Query("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": message}})
}

// Reject handles GET /ticket/reject/:ticket_id.
func (h *ApprovalHandler) Reject(c *fiber.Ctx) error {
	message, err := h.approvals.Reject(c.UserContext(), c.Params("ticket_id"), c.Query("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": message}})
}

// Review handles POST /review_ticket_action/:ticket_id.
func (h *ApprovalHandler) Review(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	var req dto.ReviewActionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	message, err := h.approvals.Review(c.UserContext(), principal.Member.Name, c.Params("ticket_id"), req.Action)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": message}})
}

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/service"
)

// TriageHandler triggers batch passes and bulk assignment.
type TriageHandler struct {
	triage      *service.TriageService
	assignments *service.AssignmentService
}

// NewTriageHandler constructs handler.
func NewTriageHandler(triageService *service.TriageService, assignmentService *service.AssignmentService) *TriageHandler {
	return &TriageHandler{triage: triageService, assignments: assignmentService}
}

// Run handles POST /triage/run. The pass is detached; callers poll the
// dashboard for results.
func (h *TriageHandler) Run(c *fiber.Ctx) error {
	h.triage.RunAsync()
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"status": "triage pass started"},
	})
}

// AutoAssign handles POST /assignments/auto.
func (h *TriageHandler) AutoAssign(c *fiber.Ctx) error {
	var req dto.AutoAssignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	assignments, err := h.assignments.AssignOpenUnassigned(c.UserContext(), req.Team)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"assigned":    len(assignments),
			"assignments": assignments,
		},
	})
}

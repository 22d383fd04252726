package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// TicketsHandler exposes per-member ticket views.
type TicketsHandler struct {
	tickets repository.TicketRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets repository.TicketRepository) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// Mine handles GET /tickets/mine: the caller's non-closed tickets.
func (h *TicketsHandler) Mine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	all, err := h.tickets.ListByAssignee(c.UserContext(), principal.Member.Name)
	if err != nil {
		return err
	}

	active := make([]domain.Ticket, 0, len(all))
	for _, ticket := range all {
		if !ticket.IsClosed() {
			active = append(active, ticket)
		}
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(active)})
}

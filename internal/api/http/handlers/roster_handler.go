package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
)

// RosterHandler exposes the admin directory surface.
type RosterHandler struct {
	roster *service.RosterService
}

// NewRosterHandler constructs handler.
func NewRosterHandler(rosterService *service.RosterService) *RosterHandler {
	return &RosterHandler{roster: rosterService}
}

// Create handles POST /roster.
func (h *RosterHandler) Create(c *fiber.Ctx) error {
	var req dto.RosterCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	member, err := h.roster.CreateMember(c.UserContext(), service.RosterCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.RosterRole(strings.ToUpper(strings.TrimSpace(req.Role))),
		Teams:    req.Teams,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.NewRosterMemberResponse(member),
	})
}

// List handles GET /roster.
func (h *RosterHandler) List(c *fiber.Ctx) error {
	filter := repository.RosterFilter{
		Limit:  c.QueryInt("limit", 100),
		Offset: c.QueryInt("offset", 0),
	}
	if role := strings.ToUpper(strings.TrimSpace(c.Query("role"))); role != "" {
		r := domain.RosterRole(role)
		filter.Role = &r
	}
	if team := strings.TrimSpace(c.Query("team")); team != "" {
		filter.Team = &team
	}

	members, err := h.roster.ListMembers(c.UserContext(), filter)
	if err != nil {
		return err
	}

	out := make([]dto.RosterMemberResponse, 0, len(members))
	for i := range members {
		out = append(out, dto.NewRosterMemberResponse(&members[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

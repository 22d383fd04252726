package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// ReviewActionRequest payload for manager review decisions.
type ReviewActionRequest struct {
	Action string `json:"action"`
}

// AutoAssignRequest payload for bulk assignment.
type AutoAssignRequest struct {
	Team string `json:"team"`
}

// TicketResponse serializes a ticket for API consumers.
type TicketResponse struct {
	ID                string     `json:"id"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	AssignedTeam      string     `json:"assigned_team"`
	AssigneeName      *string    `json:"assignee_name,omitempty"`
	RequesterName     *string    `json:"requester_name,omitempty"`
	Type              string     `json:"ticket_type"`
	AutoMarker        string     `json:"auto_marker"`
	AIResponse        string     `json:"ai_response,omitempty"`
	AdminReviewNeeded bool       `json:"admin_review_needed"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                ticket.ID,
		Description:       ticket.Description,
		Status:            string(ticket.Status),
		AssignedTeam:      ticket.AssignedTeam,
		AssigneeName:      ticket.AssigneeName,
		RequesterName:     ticket.RequesterName,
		Type:              string(ticket.Type),
		AutoMarker:        string(ticket.AutoMarker),
		AIResponse:        ticket.AIResponse,
		AdminReviewNeeded: ticket.AdminReviewNeeded,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
		ClosedAt:          ticket.ClosedAt,
	}
}

// NewTicketResponses maps a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

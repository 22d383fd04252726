package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// RosterCreateRequest payload for adding a roster member.
type RosterCreateRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
	Teams    []string `json:"teams"`
}

// RosterMemberResponse serializes a roster member without credentials.
type RosterMemberResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Teams     []string  `json:"teams"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRosterMemberResponse maps a domain member.
func NewRosterMemberResponse(member *domain.RosterMember) RosterMemberResponse {
	return RosterMemberResponse{
		ID:        member.ID,
		Name:      member.Name,
		Email:     member.Email,
		Role:      string(member.Role),
		Teams:     member.Teams,
		Active:    member.Active,
		CreatedAt: member.CreatedAt,
	}
}

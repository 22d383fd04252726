package domain

import (
	"strings"
	"time"
)

// RosterRole enumerates roster member roles.
type RosterRole string

const (
	RosterRoleAdmin    RosterRole = "ADMIN"
	RosterRoleManager  RosterRole = "MANAGER"
	RosterRoleEmployee RosterRole = "EMPLOYEE"
)

// RosterMember models a person in the helpdesk directory. Team
// affiliation is only meaningful for managers and admins.
type RosterMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         RosterRole
	Teams        []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CoversTeam reports whether the member's team affiliation matches the
// given team label. Matching is case-insensitive and tolerant of
// partial labels in either direction ("AP" matches "AP Team").
func (m *RosterMember) CoversTeam(team string) bool {
	query := strings.ToLower(strings.TrimSpace(team))
	if query == "" {
		return false
	}
	for _, t := range m.Teams {
		label := strings.ToLower(strings.TrimSpace(t))
		if label == "" {
			continue
		}
		if strings.Contains(label, query) || strings.Contains(query, label) {
			return true
		}
	}
	return false
}

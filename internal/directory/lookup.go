// Package directory resolves people and managers against the roster.
// It is injected wherever the engine or the approval flow needs to turn
// a name or team label into an email address.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// Contact is a resolved roster identity.
type Contact struct {
	Name  string
	Email string
}

// Lookup answers name and team queries over the roster.
type Lookup struct {
	roster repository.RosterRepository
}

// NewLookup constructs the service.
func NewLookup(roster repository.RosterRepository) *Lookup {
	return &Lookup{roster: roster}
}

// EmailForName resolves a display name to an email address. Returns
// ("", nil) when no roster member carries the name; absence is a
// sentinel, not an error.
func (l *Lookup) EmailForName(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	member, err := l.roster.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return member.Email, nil
}

// ManagerForTeam finds an active manager whose team affiliation covers
// the given team label. Returns (nil, nil) when the roster has no
// matching manager; the caller treats that as a silent dataset gap.
func (l *Lookup) ManagerForTeam(ctx context.Context, team string) (*Contact, error) {
	if strings.TrimSpace(team) == "" {
		return nil, nil
	}
	role := domain.RosterRoleManager
	active := true
	managers, err := l.roster.List(ctx, repository.RosterFilter{Role: &role, Active: &active, Limit: 500})
	if err != nil {
		return nil, err
	}
	for i := range managers {
		if managers[i].CoversTeam(team) {
			return &Contact{Name: managers[i].Name, Email: managers[i].Email}, nil
		}
	}
	return nil, nil
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// RosterService owns the administrative surface over the people
// directory. The triage core only ever reads the roster.
type RosterService struct {
	roster     repository.RosterRepository
	bcryptCost int
}

// RosterDependencies bundles collaborators.
type RosterDependencies struct {
	RosterRepo repository.RosterRepository
	BcryptCost int
}

// NewRosterService creates the service.
func NewRosterService(deps RosterDependencies) *RosterService {
	return &RosterService{roster: deps.RosterRepo, bcryptCost: deps.BcryptCost}
}

// RosterCreateInput describes a new roster member.
type RosterCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.RosterRole
	Teams    []string
}

var validRoles = map[domain.RosterRole]struct{}{
	domain.RosterRoleAdmin:    {},
	domain.RosterRoleManager:  {},
	domain.RosterRoleEmployee: {},
}

// CreateMember adds a person to the roster.
func (s *RosterService) CreateMember(ctx context.Context, input RosterCreateInput) (*domain.RosterMember, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	if input.Name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if !strings.Contains(input.Email, "@") {
		return nil, apperrors.NewValidationError("a valid email is required", nil)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if _, ok := validRoles[input.Role]; !ok {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}

	if _, err := s.roster.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hashed, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	member := &domain.RosterMember{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hashed,
		Role:         input.Role,
		Teams:        input.Teams,
		Active:       true,
	}
	if err := s.roster.Create(ctx, member); err != nil {
		return nil, apperrors.MapError(err)
	}
	return member, nil
}

// ListMembers returns roster members matching the filter.
func (s *RosterService) ListMembers(ctx context.Context, filter repository.RosterFilter) ([]domain.RosterMember, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	members, err := s.roster.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return members, nil
}

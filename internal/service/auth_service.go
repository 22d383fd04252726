package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// AuthService handles login and password management for roster members.
type AuthService struct {
	roster     repository.RosterRepository
	tokens     *auth.TokenManager
	bcryptCost int
}

// AuthDependencies bundles collaborators.
type AuthDependencies struct {
	RosterRepo repository.RosterRepository
	Tokens     *auth.TokenManager
	BcryptCost int
}

// NewAuthService creates the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		roster:     deps.RosterRepo,
		tokens:     deps.Tokens,
		bcryptCost: deps.BcryptCost,
	}
}

// LoginResult carries the issued token and its owner.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Member    *domain.RosterMember
}

// Login verifies credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	member, err := s.roster.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !member.Active {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(member.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(member.ID, member.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Member: member}, nil
}

// ChangePassword rotates the caller's password after verifying the
// current one.
func (s *AuthService) ChangePassword(ctx context.Context, memberID, current, next string) error {
	if len(next) < 8 {
		return apperrors.NewValidationError("new password must be at least 8 characters", nil)
	}

	member, err := s.roster.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("member", map[string]any{"member_id": memberID})
		}
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(member.PasswordHash, current); err != nil {
		return apperrors.NewUnauthorized("current password is incorrect")
	}

	hashed, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	member.PasswordHash = hashed
	if err := s.roster.Update(ctx, member); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

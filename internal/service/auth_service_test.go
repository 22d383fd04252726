package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
)

func newAuthFixture(t *testing.T, members ...domain.RosterMember) (*AuthService, *memRosterRepo) {
	t.Helper()
	roster := &memRosterRepo{members: members}
	svc := NewAuthService(AuthDependencies{
		RosterRepo: roster,
		Tokens:     auth.NewTokenManager("test-jwt-secret", 60),
		BcryptCost: bcrypt.MinCost,
	})
	return svc, roster
}

func rosterMember(t *testing.T, id, email, password string) domain.RosterMember {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return domain.RosterMember{
		ID:           id,
		Name:         "Riley",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RosterRoleEmployee,
		Active:       true,
	}
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newAuthFixture(t, rosterMember(t, "m1", "riley@example.com", "hunter2hunter2"))

	result, err := svc.Login(context.Background(), "Riley@Example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "m1", result.Member.ID)
	assert.False(t, result.ExpiresAt.IsZero())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, rosterMember(t, "m1", "riley@example.com", "hunter2hunter2"))

	_, err := svc.Login(context.Background(), "riley@example.com", "wrong-password")
	assert.Error(t, err)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2")
	assert.Error(t, err)
}

func TestLoginRejectsDeactivatedMember(t *testing.T) {
	member := rosterMember(t, "m1", "riley@example.com", "hunter2hunter2")
	member.Active = false
	svc, _ := newAuthFixture(t, member)

	_, err := svc.Login(context.Background(), "riley@example.com", "hunter2hunter2")
	assert.Error(t, err)
}

func TestChangePasswordRotatesHash(t *testing.T) {
	svc, roster := newAuthFixture(t, rosterMember(t, "m1", "riley@example.com", "hunter2hunter2"))

	err := svc.ChangePassword(context.Background(), "m1", "hunter2hunter2", "new-password-9")
	require.NoError(t, err)

	updated, err := roster.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(updated.PasswordHash, "new-password-9"))
	assert.Error(t, auth.ComparePassword(updated.PasswordHash, "hunter2hunter2"))
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	svc, _ := newAuthFixture(t, rosterMember(t, "m1", "riley@example.com", "hunter2hunter2"))

	err := svc.ChangePassword(context.Background(), "m1", "not-the-password", "new-password-9")
	assert.Error(t, err)
}

func TestChangePasswordEnforcesMinimumLength(t *testing.T) {
	svc, _ := newAuthFixture(t, rosterMember(t, "m1", "riley@example.com", "hunter2hunter2"))

	err := svc.ChangePassword(context.Background(), "m1", "hunter2hunter2", "short")
	assert.Error(t, err)
}

package directory

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

type stubRoster struct {
	members []domain.RosterMember
}

func (s *stubRoster) Create(_ context.Context, member *domain.RosterMember) error {
	s.members = append(s.members, *member)
	return nil
}

func (s *stubRoster) Update(context.Context, *domain.RosterMember) error { return nil }

func (s *stubRoster) GetByID(context.Context, string) (*domain.RosterMember, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubRoster) GetByEmail(context.Context, string) (*domain.RosterMember, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubRoster) GetByName(_ context.Context, name string) (*domain.RosterMember, error) {
	for i := range s.members {
		if strings.EqualFold(s.members[i].Name, strings.TrimSpace(name)) {
			copied := s.members[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubRoster) List(_ context.Context, filter repository.RosterFilter) ([]domain.RosterMember, error) {
	var out []domain.RosterMember
	for _, m := range s.members {
		if filter.Role != nil && m.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && m.Active != *filter.Active {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func testRoster() *stubRoster {
	return &stubRoster{members: []domain.RosterMember{
		{ID: "m1", Name: "Riley", Email: "riley@example.com", Role: domain.RosterRoleEmployee, Active: true},
		{ID: "m2", Name: "Morgan", Email: "morgan@example.com", Role: domain.RosterRoleManager, Teams: []string{"AP Team"}, Active: true},
		{ID: "m3", Name: "Jordan", Email: "jordan@example.com", Role: domain.RosterRoleManager, Teams: []string{"AR"}, Active: false},
	}}
}

func TestEmailForName(t *testing.T) {
	lookup := NewLookup(testRoster())

	email, err := lookup.EmailForName(context.Background(), "riley")
	require.NoError(t, err)
	assert.Equal(t, "riley@example.com", email)
}

func TestEmailForNameAbsenceIsNotAnError(t *testing.T) {
	lookup := NewLookup(testRoster())

	email, err := lookup.EmailForName(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Empty(t, email)

	email, err = lookup.EmailForName(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestManagerForTeamMatchesPartialLabels(t *testing.T) {
	lookup := NewLookup(testRoster())

	contact, err := lookup.ManagerForTeam(context.Background(), "AP")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "Morgan", contact.Name)
	assert.Equal(t, "morgan@example.com", contact.Email)
}

func TestManagerForTeamSkipsInactive(t *testing.T) {
	lookup := NewLookup(testRoster())

	contact, err := lookup.ManagerForTeam(context.Background(), "AR Team")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestManagerForTeamEmptyLabel(t *testing.T) {
	lookup := NewLookup(testRoster())

	contact, err := lookup.ManagerForTeam(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

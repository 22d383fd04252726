package service

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/notify"
	"github.com/spec-kit/triage-service/internal/repository"
)

// memTicketRepo is an in-memory TicketRepository for service tests. It
// mirrors the SQL predicates of the real implementation closely enough
// to exercise eligibility and assignment logic.
type memTicketRepo struct {
	tickets map[string]*domain.Ticket
	counts  map[string]int
	updates map[string][]map[string]any
}

func newMemTicketRepo(tickets ...*domain.Ticket) *memTicketRepo {
	repo := &memTicketRepo{
		tickets: make(map[string]*domain.Ticket),
		counts:  make(map[string]int),
		updates: make(map[string][]map[string]any),
	}
	for _, t := range tickets {
		repo.tickets[t.ID] = t
	}
	return repo
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) ListEligibleForTriage(_ context.Context) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range r.sortedIDs() {
		t := r.tickets[id]
		if !t.IsClosed() && t.AutoMarker == domain.AutoMarkerNone {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTicketRepo) ListReviewQueue(_ context.Context) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range r.sortedIDs() {
		if r.tickets[id].InReviewQueue() {
			out = append(out, *r.tickets[id])
		}
	}
	return out, nil
}

func (r *memTicketRepo) ListOpenUnassigned(_ context.Context, team string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range r.sortedIDs() {
		t := r.tickets[id]
		if t.Status != domain.TicketStatusOpen {
			continue
		}
		if t.AssigneeName != nil && strings.TrimSpace(*t.AssigneeName) != "" {
			continue
		}
		if team != "" && !strings.Contains(strings.ToLower(t.AssignedTeam), strings.ToLower(team)) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *memTicketRepo) ListByAssignee(_ context.Context, name string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range r.sortedIDs() {
		t := r.tickets[id]
		if t.AssigneeName != nil && strings.EqualFold(strings.TrimSpace(*t.AssigneeName), strings.TrimSpace(name)) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTicketRepo) ListAll(_ context.Context) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range r.sortedIDs() {
		out = append(out, *r.tickets[id])
	}
	return out, nil
}

func (r *memTicketRepo) OpenCountsByAssignee(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(r.counts))
	for name, n := range r.counts {
		counts[name] = n
	}
	return counts, nil
}

func (r *memTicketRepo) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	r.updates[id] = append(r.updates[id], fields)
	for field, value := range fields {
		switch field {
		case repository.FieldStatus:
			ticket.Status = domain.TicketStatus(value.(string))
		case repository.FieldAutoMarker:
			ticket.AutoMarker = domain.AutoMarker(value.(string))
		case repository.FieldAssigneeName:
			name := value.(string)
			ticket.AssigneeName = &name
		case repository.FieldAssignedTeam:
			ticket.AssignedTeam = value.(string)
		case repository.FieldAdminReviewNeeded:
			ticket.AdminReviewNeeded = value.(bool)
		}
	}
	return nil
}

func (r *memTicketRepo) sortedIDs() []string {
	ids := make([]string, 0, len(r.tickets))
	for id := range r.tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// memRosterRepo backs the directory lookup in approval tests.
type memRosterRepo struct {
	members []domain.RosterMember
}

func (r *memRosterRepo) Create(_ context.Context, member *domain.RosterMember) error {
	r.members = append(r.members, *member)
	return nil
}

func (r *memRosterRepo) Update(_ context.Context, member *domain.RosterMember) error {
	for i := range r.members {
		if r.members[i].ID == member.ID {
			r.members[i] = *member
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memRosterRepo) GetByID(_ context.Context, id string) (*domain.RosterMember, error) {
	for i := range r.members {
		if r.members[i].ID == id {
			copied := r.members[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memRosterRepo) GetByEmail(_ context.Context, email string) (*domain.RosterMember, error) {
	for i := range r.members {
		if strings.EqualFold(r.members[i].Email, email) {
			copied := r.members[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memRosterRepo) GetByName(_ context.Context, name string) (*domain.RosterMember, error) {
	for i := range r.members {
		if strings.EqualFold(strings.TrimSpace(r.members[i].Name), strings.TrimSpace(name)) {
			copied := r.members[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memRosterRepo) List(_ context.Context, filter repository.RosterFilter) ([]domain.RosterMember, error) {
	var out []domain.RosterMember
	for _, m := range r.members {
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

// recordingNotifier captures outbound messages.
type recordingNotifier struct {
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// AssignmentService spreads open tickets across the people already
// working the queue. The candidate pool is whoever holds tickets in the
// store, not the roster; placeholder names are filtered out upstream.
type AssignmentService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// AssignTicket gives one ticket to the least-loaded assignee and
// returns the chosen name.
func (s *AssignmentService) AssignTicket(ctx context.Context, ticketID string) (string, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return "", apperrors.MapError(err)
	}

	counts, err := s.tickets.OpenCountsByAssignee(ctx)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if len(counts) == 0 {
		return "", apperrors.NewConflict("no eligible assignees", nil)
	}

	assignee := leastLoaded(counts)
	if err := s.tickets.UpdateFields(ctx, ticketID, map[string]any{
		repository.FieldAssigneeName: assignee,
	}); err != nil {
		return "", apperrors.MapError(err)
	}

	s.publishAssigned(ctx, ticket.ID, ticket.AssignedTeam, assignee)
	return assignee, nil
}

// AssignOpenUnassigned distributes every open unassigned ticket,
// optionally scoped to one team. In-memory counts are advanced between
// picks so one call converges toward balance.
func (s *AssignmentService) AssignOpenUnassigned(ctx context.Context, team string) (map[string]string, error) {
	tickets, err := s.tickets.ListOpenUnassigned(ctx, team)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(tickets) == 0 {
		return map[string]string{}, nil
	}

	counts, err := s.tickets.OpenCountsByAssignee(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(counts) == 0 {
		return nil, apperrors.NewConflict("no eligible assignees", nil)
	}

	assignments := make(map[string]string, len(tickets))
	for _, ticket := range tickets {
		assignee := leastLoaded(counts)
		if err := s.tickets.UpdateFields(ctx, ticket.ID, map[string]any{
			repository.FieldAssigneeName: assignee,
		}); err != nil {
			s.logger.Error("bulk assignment update failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		counts[assignee]++
		assignments[ticket.ID] = assignee
		s.publishAssigned(ctx, ticket.ID, ticket.AssignedTeam, assignee)
	}
	return assignments, nil
}

// leastLoaded picks the name with the fewest open tickets; ties break
// lexicographically so repeated runs are deterministic.
func leastLoaded(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if counts[name] < counts[best] {
			best = name
		}
	}
	return best
}

func (s *AssignmentService) publishAssigned(ctx context.Context, ticketID, team, assignee string) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketAssigned,
		TicketID:  ticketID,
		Actor:     events.Actor{Automated: true},
		Timestamp: time.Now().UTC(),
		Payload:   events.TicketAssignedPayload{Team: team, Assignee: assignee},
	})
}

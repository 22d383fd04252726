package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/approval"
	"github.com/spec-kit/triage-service/internal/directory"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/notify"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// Review actions accepted from the dashboard.
const (
	ReviewActionConfirmClosed = "confirm_closed"
	ReviewActionReopen        = "reopen"
)

// ApprovalService services the manager decision flow: token-gated
// approve/reject links from email, and authenticated review-queue
// actions from the dashboard.
type ApprovalService struct {
	tickets    repository.TicketRepository
	tokens     *approval.Codec
	notifier   notify.Notifier
	directory  *directory.Lookup
	balancer   *AssignmentService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ApprovalDependencies bundles collaborators.
type ApprovalDependencies struct {
	TicketRepo repository.TicketRepository
	Tokens     *approval.Codec
	Notifier   notify.Notifier
	Directory  *directory.Lookup
	Balancer   *AssignmentService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewApprovalService creates the service.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	return &ApprovalService{
		tickets:    deps.TicketRepo,
		tokens:     deps.Tokens,
		notifier:   deps.Notifier,
		directory:  deps.Directory,
		balancer:   deps.Balancer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Approve closes a pending ticket after manager sign-off and notifies
// the requester with the stored resolution. A ticket that is no longer
// pending is reported as already handled with zero side effects.
func (s *ApprovalService) Approve(ctx context.Context, ticketID, token string) (string, error) {
	ticket, err := s.verifiedTicket(ctx, ticketID, token)
	if err != nil {
		return "", err
	}
	if ticket.Status != domain.TicketStatusPendingApproval {
		return fmt.Sprintf("Ticket %s was already handled.", ticketID), nil
	}

	now := time.Now().UTC()
	if err := s.tickets.UpdateFields(ctx, ticketID, map[string]any{
		repository.FieldStatus:            string(domain.TicketStatusClosed),
		repository.FieldAutoMarker:        string(domain.AutoMarkerManagerReviewed),
		repository.FieldAdminReviewNeeded: false,
		repository.FieldClosedAt:          now,
	}); err != nil {
		return "", apperrors.MapError(err)
	}

	notified := s.notifyRequester(ctx, ticket)
	s.publish(ctx, events.EventTicketApproved, ticketID, nil,
		events.TicketApprovedPayload{NotifiedRequester: notified})

	return fmt.Sprintf("Ticket %s approved and closed.", ticketID), nil
}

// Reject reopens a pending ticket and hands it back to the queue via
// one balancer call.
func (s *ApprovalService) Reject(ctx context.Context, ticketID, token string) (string, error) {
	ticket, err := s.verifiedTicket(ctx, ticketID, token)
	if err != nil {
		return "", err
	}
	if ticket.Status != domain.TicketStatusPendingApproval {
		return fmt.Sprintf("Ticket %s was already handled.", ticketID), nil
	}

	if err := s.tickets.UpdateFields(ctx, ticketID, map[string]any{
		repository.FieldStatus:            string(domain.TicketStatusOpen),
		repository.FieldAutoMarker:        string(domain.AutoMarkerManagerReviewed),
		repository.FieldAdminReviewNeeded: false,
	}); err != nil {
		return "", apperrors.MapError(err)
	}

	message := fmt.Sprintf("Ticket %s rejected and reopened.", ticketID)
	if assignee, err := s.balancer.AssignTicket(ctx, ticketID); err != nil {
		s.logger.Warn("reassignment after reject failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	} else {
		message += fmt.Sprintf(" Assigned to %s.", assignee)
	}

	s.publish(ctx, events.EventTicketRejected, ticketID, nil, events.TicketRejectedPayload{})
	return message, nil
}

// Review applies a manager's decision on an auto-resolved ticket from
// the review queue.
func (s *ApprovalService) Review(ctx context.Context, reviewer, ticketID, action string) (string, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return "", apperrors.MapError(err)
	}

	switch action {
	case ReviewActionConfirmClosed:
		if !ticket.InReviewQueue() {
			return "", apperrors.NewConflict("ticket is not pending review", map[string]any{"ticket_id": ticketID})
		}
		if err := s.tickets.UpdateFields(ctx, ticketID, map[string]any{
			repository.FieldAutoMarker:        string(domain.AutoMarkerNone),
			repository.FieldAdminReviewNeeded: false,
		}); err != nil {
			return "", apperrors.MapError(err)
		}
		return fmt.Sprintf("Ticket %s confirmed closed.", ticketID), nil

	case ReviewActionReopen:
		if err := s.tickets.UpdateFields(ctx, ticketID, map[string]any{
			repository.FieldStatus:            string(domain.TicketStatusOpen),
			repository.FieldAutoMarker:        string(domain.AutoMarkerNone),
			repository.FieldAdminReviewNeeded: false,
		}); err != nil {
			return "", apperrors.MapError(err)
		}
		message := fmt.Sprintf("Ticket %s has been reopened.", ticketID)
		if assignee, err := s.balancer.AssignTicket(ctx, ticketID); err != nil {
			s.logger.Warn("reassignment after reopen failed",
				zap.String("ticket_id", ticketID), zap.Error(err))
			message += " Could not auto-assign at this time."
		} else {
			message += fmt.Sprintf(" Auto-assigned to %s.", assignee)
		}
		s.publish(ctx, events.EventTicketReopened, ticketID, &reviewer,
			events.TicketReopenedPayload{Reviewer: reviewer})
		return message, nil

	default:
		return "", apperrors.NewValidationError("unknown review action", map[string]any{"action": action})
	}
}

// verifiedTicket checks the approval token before any read or write.
func (s *ApprovalService) verifiedTicket(ctx context.Context, ticketID, token string) (*domain.Ticket, error) {
	if !s.tokens.Verify(ticketID, token) {
		return nil, apperrors.NewUnauthorized("invalid approval token")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *ApprovalService) notifyRequester(ctx context.Context, ticket *domain.Ticket) bool {
	recipient := ""
	if ticket.RequesterEmail != nil && strings.Contains(*ticket.RequesterEmail, "@") {
		recipient = strings.TrimSpace(*ticket.RequesterEmail)
	} else {
		for _, name := range []*string{ticket.RequesterName, ticket.AssigneeName} {
			if name == nil {
				continue
			}
			if email, err := s.directory.EmailForName(ctx, *name); err == nil && email != "" {
				recipient = email
				break
			}
		}
	}
	if recipient == "" {
		s.logger.Warn("no requester email resolvable after approval",
			zap.String("ticket_id", ticket.ID))
		return false
	}

	body := ticket.AIResponse
	if strings.TrimSpace(body) == "" {
		body = "Your ticket has been resolved and approved by a manager."
	}
	err := s.notifier.Send(ctx, notify.Message{
		To:      recipient,
		Subject: fmt.Sprintf("Ticket %s resolved", ticket.ID),
		Body:    body,
	})
	if err != nil {
		s.logger.Error("approval notification failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *ApprovalService) publish(ctx context.Context, eventType events.EventType, ticketID string, actorName *string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{Automated: actorName == nil, Name: actorName},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

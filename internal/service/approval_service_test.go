package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/approval"
	"github.com/spec-kit/triage-service/internal/directory"
	"github.com/spec-kit/triage-service/internal/domain"
)

func pendingTicket(id string) *domain.Ticket {
	email := "requester@example.com"
	return &domain.Ticket{
		ID:                id,
		Status:            domain.TicketStatusPendingApproval,
		AssignedTeam:      "AP",
		Type:              domain.TicketTypeAccountsPayable,
		AutoMarker:        domain.AutoMarkerAutoResolved,
		AIResponse:        "Early payment request validated.",
		RequesterEmail:    &email,
		AdminReviewNeeded: true,
	}
}

type approvalFixture struct {
	service  *ApprovalService
	repo     *memTicketRepo
	notifier *recordingNotifier
	codec    *approval.Codec
}

func newApprovalFixture(tickets ...*domain.Ticket) *approvalFixture {
	repo := newMemTicketRepo(tickets...)
	repo.counts = map[string]int{"amy": 1}
	notifier := &recordingNotifier{}
	codec := approval.NewCodec("test-secret")

	balancer := NewAssignmentService(AssignmentDependencies{
		TicketRepo: repo,
		Logger:     zap.NewNop(),
	})
	svc := NewApprovalService(ApprovalDependencies{
		TicketRepo: repo,
		Tokens:     codec,
		Notifier:   notifier,
		Directory:  directory.NewLookup(&memRosterRepo{}),
		Balancer:   balancer,
		Dispatcher: nil,
		Logger:     zap.NewNop(),
	})
	return &approvalFixture{service: svc, repo: repo, notifier: notifier, codec: codec}
}

func TestApproveClosesAndNotifiesRequester(t *testing.T) {
	f := newApprovalFixture(pendingTicket("T102"))

	message, err := f.service.Approve(context.Background(), "T102", f.codec.Mint("T102"))
	require.NoError(t, err)
	assert.Contains(t, message, "approved")

	ticket := f.repo.tickets["T102"]
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	assert.Equal(t, domain.AutoMarkerManagerReviewed, ticket.AutoMarker)
	assert.False(t, ticket.AdminReviewNeeded)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "requester@example.com", f.notifier.sent[0].To)
	assert.Contains(t, f.notifier.sent[0].Body, "Early payment request validated.")
}

func TestApproveWithTamperedTokenMutatesNothing(t *testing.T) {
	f := newApprovalFixture(pendingTicket("T102"))

	_, err := f.service.Approve(context.Background(), "T102", "deadbeef")
	assert.Error(t, err)

	assert.Equal(t, domain.TicketStatusPendingApproval, f.repo.tickets["T102"].Status)
	assert.Empty(t, f.repo.updates["T102"])
	assert.Empty(t, f.notifier.sent)
}

func TestApproveAlreadyHandledIsNoOp(t *testing.T) {
	done := pendingTicket("T102")
	done.Status = domain.TicketStatusClosed
	done.AutoMarker = domain.AutoMarkerManagerReviewed
	f := newApprovalFixture(done)

	message, err := f.service.Approve(context.Background(), "T102", f.codec.Mint("T102"))
	require.NoError(t, err)
	assert.Contains(t, message, "already handled")
	assert.Empty(t, f.repo.updates["T102"])
	assert.Empty(t, f.notifier.sent)
}

func TestRejectReopensAndReassignsOnce(t *testing.T) {
	f := newApprovalFixture(pendingTicket("T102"))

	message, err := f.service.Reject(context.Background(), "T102", f.codec.Mint("T102"))
	require.NoError(t, err)
	assert.Contains(t, message, "reopened")
	assert.Contains(t, message, "amy")

	ticket := f.repo.tickets["T102"]
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.AutoMarkerManagerReviewed, ticket.AutoMarker)
	require.NotNil(t, ticket.AssigneeName)
	assert.Equal(t, "amy", *ticket.AssigneeName)

	// one status update plus one assignment update, nothing else
	assert.Len(t, f.repo.updates["T102"], 2)
}

func TestRejectUnknownTicket(t *testing.T) {
	f := newApprovalFixture()

	_, err := f.service.Reject(context.Background(), "missing", f.codec.Mint("missing"))
	assert.Error(t, err)
}

func TestReviewConfirmClosed(t *testing.T) {
	reviewed := pendingTicket("T7")
	reviewed.Status = domain.TicketStatusClosed
	f := newApprovalFixture(reviewed)

	message, err := f.service.Review(context.Background(), "Morgan", "T7", ReviewActionConfirmClosed)
	require.NoError(t, err)
	assert.Contains(t, message, "confirmed closed")

	ticket := f.repo.tickets["T7"]
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	assert.Equal(t, domain.AutoMarkerNone, ticket.AutoMarker)
	assert.False(t, ticket.InReviewQueue())
}

func TestReviewConfirmClosedRequiresReviewQueue(t *testing.T) {
	f := newApprovalFixture(pendingTicket("T7"))

	_, err := f.service.Review(context.Background(), "Morgan", "T7", ReviewActionConfirmClosed)
	assert.Error(t, err)
}

func TestReviewReopenTriggersBalancer(t *testing.T) {
	reviewed := pendingTicket("T7")
	reviewed.Status = domain.TicketStatusClosed
	f := newApprovalFixture(reviewed)

	message, err := f.service.Review(context.Background(), "Morgan", "T7", ReviewActionReopen)
	require.NoError(t, err)
	assert.Contains(t, message, "reopened")

	ticket := f.repo.tickets["T7"]
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.AutoMarkerNone, ticket.AutoMarker)
	require.NotNil(t, ticket.AssigneeName)
	assert.Equal(t, "amy", *ticket.AssigneeName)
}

func TestReviewUnknownAction(t *testing.T) {
	f := newApprovalFixture(pendingTicket("T7"))

	_, err := f.service.Review(context.Background(), "Morgan", "T7", "escalate")
	assert.Error(t, err)
}

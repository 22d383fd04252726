package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/approval"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/directory"
	"github.com/spec-kit/triage-service/internal/document"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/engine"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/internal/persistence"
)

// textOnlyProvider always answers in plain text, so every engine
// conversation ends without a terminal tool call.
type textOnlyProvider struct {
	calls int
}

func (p *textOnlyProvider) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	p.calls++
	return &llm.Response{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: "I need more information."},
		FinishReason: "stop",
	}, nil
}

type emptyInvoiceIndex struct{}

func (emptyInvoiceIndex) Search(context.Context, domain.InvoiceFilter) ([]domain.Invoice, error) {
	return nil, nil
}

func (emptyInvoiceIndex) GetByNumber(context.Context, string) (*domain.Invoice, error) {
	return nil, pgx.ErrNoRows
}

type emptyDirectory struct{}

func (emptyDirectory) EmailForName(context.Context, string) (string, error) {
	return "", nil
}

func (emptyDirectory) ManagerForTeam(context.Context, string) (*directory.Contact, error) {
	return nil, nil
}

type noopRenderer struct{}

func (noopRenderer) Render(document.Kind, string, *domain.Invoice) (string, error) {
	return "", nil
}

func newTriageFixture(tickets ...*domain.Ticket) (*TriageService, *textOnlyProvider) {
	repo := newMemTicketRepo(tickets...)
	provider := &textOnlyProvider{}
	eng := engine.New(engine.Dependencies{
		Tickets:   repo,
		Invoices:  emptyInvoiceIndex{},
		Directory: emptyDirectory{},
		Notifier:  &recordingNotifier{},
		Renderer:  noopRenderer{},
		Provider:  provider,
		Tokens:    approval.NewCodec("test-secret"),
		Logger:    zap.NewNop(),
		LLM:       config.LLMConfig{},
		BaseURL:   "http://localhost:8080",
	})
	svc := NewTriageService(TriageDependencies{
		TicketRepo: repo,
		Engine:     eng,
		Redis:      &persistence.Redis{},
		Logger:     zap.NewNop(),
	})
	return svc, provider
}

func triageCandidate(id string) *domain.Ticket {
	return &domain.Ticket{
		ID:           id,
		Description:  "Where is my payment?",
		Status:       domain.TicketStatusOpen,
		AssignedTeam: "AP",
		Type:         domain.TicketTypeAccountsPayable,
	}
}

func TestTriageRunSkipsIneligibleTickets(t *testing.T) {
	closed := triageCandidate("T2")
	closed.Status = domain.TicketStatusClosed
	marked := triageCandidate("T3")
	marked.AutoMarker = domain.AutoMarkerAutoResolved
	pending := triageCandidate("T4")
	pending.Status = domain.TicketStatusPendingApproval
	pending.AutoMarker = domain.AutoMarkerAutoResolved

	svc, provider := newTriageFixture(triageCandidate("T1"), closed, marked, pending)

	outcomes, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Contains(t, outcomes[0], "T1")
	assert.Contains(t, outcomes[0], "unresolved")
	assert.Equal(t, 1, provider.calls)
}

func TestTriageRunProcessesSequentially(t *testing.T) {
	svc, provider := newTriageFixture(
		triageCandidate("T1"), triageCandidate("T2"), triageCandidate("T3"))

	outcomes, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Contains(t, outcomes[0], "T1")
	assert.Contains(t, outcomes[1], "T2")
	assert.Contains(t, outcomes[2], "T3")
	assert.Equal(t, 3, provider.calls)
}

func TestTriageRunWithEmptyQueue(t *testing.T) {
	svc, provider := newTriageFixture()

	outcomes, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, 0, provider.calls)
}

func TestOutcomeKindBuckets(t *testing.T) {
	assert.Equal(t, "error", outcomeKind("Ticket T1 processed with error: boom"))
	assert.Equal(t, "skipped", outcomeKind("Ticket T1 skipped: already closed"))
	assert.Equal(t, "unresolved", outcomeKind("Ticket T1 unresolved: need info"))
	assert.Equal(t, "processed", outcomeKind("Ticket T1 processed: done | sent"))
}

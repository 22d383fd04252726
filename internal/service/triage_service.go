package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/engine"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

const triageLockKey = "triage:batch:lock"

// TriageService runs the batch pass: every eligible ticket, strictly
// sequential, one engine conversation each. A Redis lock keeps
// concurrent passes from interleaving writes; there is no retry within
// a run.
type TriageService struct {
	tickets repository.TicketRepository
	engine  *engine.Engine
	redis   *persistence.Redis
	metrics *observability.Metrics
	logger  *zap.Logger
	lockTTL time.Duration
}

// TriageDependencies bundles collaborators.
type TriageDependencies struct {
	TicketRepo repository.TicketRepository
	Engine     *engine.Engine
	Redis      *persistence.Redis
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	LockTTL    time.Duration
}

// NewTriageService creates the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 10 * time.Minute
	}
	return &TriageService{
		tickets: deps.TicketRepo,
		engine:  deps.Engine,
		redis:   deps.Redis,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		lockTTL: deps.LockTTL,
	}
}

// Run executes one synchronous batch pass and returns the per-ticket
// outcome strings in processing order.
func (s *TriageService) Run(ctx context.Context) ([]string, error) {
	acquired, err := s.redis.AcquireLock(ctx, triageLockKey, s.lockTTL)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !acquired {
		return nil, apperrors.NewConflict("triage pass already running", nil)
	}
	defer func() {
		if err := s.redis.ReleaseLock(ctx, triageLockKey); err != nil {
			s.logger.Warn("triage lock release failed", zap.Error(err))
		}
	}()

	tickets, err := s.tickets.ListEligibleForTriage(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("triage pass starting", zap.Int("eligible", len(tickets)))

	outcomes := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		outcome := s.engine.ProcessTicket(ctx, ticket)
		outcomes = append(outcomes, outcome)
		if s.metrics != nil {
			s.metrics.RecordTriageOutcome(outcomeKind(outcome))
		}
	}

	s.logger.Info("triage pass finished", zap.Int("processed", len(outcomes)))
	return outcomes, nil
}

// RunAsync detaches a pass in the background; errors are logged only.
func (s *TriageService) RunAsync() {
	go func() {
		if _, err := s.Run(context.Background()); err != nil {
			s.logger.Warn("background triage pass did not run", zap.Error(err))
		}
	}()
}

// outcomeKind buckets an outcome string for the counters.
func outcomeKind(outcome string) string {
	switch {
	case strings.Contains(outcome, "processed with error"):
		return "error"
	case strings.Contains(outcome, "skipped"):
		return "skipped"
	case strings.Contains(outcome, "unresolved"):
		return "unresolved"
	default:
		return "processed"
	}
}

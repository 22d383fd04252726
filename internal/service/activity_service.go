package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
)

// ActivityService is the audit trail over triage lifecycle events: it
// logs each one and feeds the outcome counters.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	return &ActivityService{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketResolved,
		events.EventTicketPendingApproval,
		events.EventTicketReassigned,
		events.EventTicketApproved,
		events.EventTicketRejected,
		events.EventTicketReopened,
		events.EventTicketAssigned,
	} {
		a.dispatcher.Subscribe(eventType, a.handle)
	}
}

func (a *ActivityService) handle(ctx context.Context, event events.Event) error {
	a.logger.Info("triage activity",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Bool("automated", event.Actor.Automated),
		zap.Any("payload", event.Payload))
	if a.metrics != nil {
		a.metrics.RecordTriageOutcome(string(event.Type))
	}
	return nil
}

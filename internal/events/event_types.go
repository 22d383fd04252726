package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketResolved        EventType = "ticket_resolved"
	EventTicketPendingApproval EventType = "ticket_pending_approval"
	EventTicketReassigned      EventType = "ticket_reassigned"
	EventTicketApproved        EventType = "ticket_approved"
	EventTicketRejected        EventType = "ticket_rejected"
	EventTicketReopened        EventType = "ticket_reopened"
	EventTicketAssigned        EventType = "ticket_assigned"
)

// Actor identifies who or what caused an event. Automated runs carry
// the agent name; interactive actions carry the roster member name.
type Actor struct {
	Automated bool    `json:"automated"`
	Name      *string `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	ClosureType   string  `json:"closure_type"`
	InvoiceNumber *string `json:"invoice_number,omitempty"`
	DocumentPath  *string `json:"document_path,omitempty"`
	Recipient     *string `json:"recipient,omitempty"`
}

// TicketPendingApprovalPayload payload.
type TicketPendingApprovalPayload struct {
	ManagerName  *string `json:"manager_name,omitempty"`
	ManagerEmail *string `json:"manager_email,omitempty"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	OldTeam string `json:"old_team"`
	NewTeam string `json:"new_team"`
	Reason  string `json:"reason,omitempty"`
}

// TicketApprovedPayload payload.
type TicketApprovedPayload struct {
	NotifiedRequester bool `json:"notified_requester"`
}

// TicketRejectedPayload payload.
type TicketRejectedPayload struct{}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	Reviewer string `json:"reviewer,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Team     string `json:"team"`
	Assignee string `json:"assignee"`
}

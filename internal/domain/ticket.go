package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "Open"
	TicketStatusPendingApproval TicketStatus = "Pending Manager Approval"
	TicketStatusClosed          TicketStatus = "Closed"
)

// AutoMarker records how a ticket reached its current closed or pending
// state. An empty marker means the triage pass has never touched the
// ticket; AUTO_RESOLVED means it was closed automatically and still
// awaits manager confirmation; MANAGER_REVIEWED means a human made the
// final call.
type AutoMarker string

const (
	AutoMarkerNone            AutoMarker = ""
	AutoMarkerAutoResolved    AutoMarker = "AUTO_RESOLVED"
	AutoMarkerManagerReviewed AutoMarker = "MANAGER_REVIEWED"
)

// TicketType distinguishes the finance workstreams tickets belong to.
type TicketType string

const (
	TicketTypeAccountsPayable    TicketType = "Accounts Payable"
	TicketTypeAccountsReceivable TicketType = "Accounts Receivable"
)

// Ticket is the aggregate for support requests flowing through triage.
type Ticket struct {
	ID                string
	Description       string
	Status            TicketStatus
	AssignedTeam      string
	AssigneeName      *string
	RequesterName     *string
	RequesterEmail    *string
	Type              TicketType
	AutoMarker        AutoMarker
	AIResponse        string
	AdminReviewNeeded bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
}

// IsClosed matches the store's case-insensitive notion of closed.
func (t *Ticket) IsClosed() bool {
	return strings.EqualFold(string(t.Status), string(TicketStatusClosed))
}

// InReviewQueue reports whether the ticket is closed but still pending
// manager confirmation.
func (t *Ticket) InReviewQueue() bool {
	return t.IsClosed() && t.AutoMarker == AutoMarkerAutoResolved
}

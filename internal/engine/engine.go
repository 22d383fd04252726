// Package engine drives one tool-calling conversation per ticket and
// executes the terminal outcome the model selects. It never raises past
// its boundary: every failure is folded into the per-ticket outcome
// string so one bad ticket cannot abort a batch pass.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/approval"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/directory"
	"github.com/spec-kit/triage-service/internal/document"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/internal/notify"
	"github.com/spec-kit/triage-service/internal/repository"
)

// TicketStore is the slice of ticket persistence the engine needs.
type TicketStore interface {
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

// InvoiceIndex is the read-only ledger view offered to the model.
type InvoiceIndex interface {
	Search(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
}

// Directory resolves people and managers from the roster.
type Directory interface {
	EmailForName(ctx context.Context, name string) (string, error)
	ManagerForTeam(ctx context.Context, team string) (*directory.Contact, error)
}

// Dependencies bundles engine collaborators.
type Dependencies struct {
	Tickets    TicketStore
	Invoices   InvoiceIndex
	Directory  Directory
	Notifier   notify.Notifier
	Renderer   document.Renderer
	Provider   llm.Provider
	Tokens     *approval.Codec
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	LLM        config.LLMConfig
	BaseURL    string
}

// Engine resolves tickets one at a time.
type Engine struct {
	deps Dependencies
}

// New creates the engine.
func New(deps Dependencies) *Engine {
	if deps.LLM.MaxTurns <= 0 {
		deps.LLM.MaxTurns = 6
	}
	return &Engine{deps: deps}
}

const systemPrompt = `You are a finance helpdesk triage agent. Your goal is to analyze tickets and resolve them when possible.
If a ticket involves an invoice (status check, payment query, PO info, copy request), use the 'search_invoices' tool first.

Available invoice data: Invoice Number, Invoice Date, Invoice Amount, Vendor ID, Vendor Name, PO Number, PO Status, Payment Status, Payment Term, Due Date, Clearing Date, Customer ID, Customer Name, Country.

When you have enough information, ALWAYS call 'resolve_ticket' with the correct closure_type:

1. "without_document"
   Use for simple status checks or information requests.
   Examples: "What is the payment status?", "When was the invoice cleared?"
   Result: answer emailed to the requester, ticket closed immediately.

2. "with_document"
   Use ONLY when the user explicitly asks for a document, copy, or proof.
   Examples: "Send me an invoice copy", "Please provide proof of payment".
   Set document_kind to invoice_copy, payment_confirmation, or invoice_details.
   Result: document generated and attached, ticket closed.

3. "needs_approval"
   Use for actions requiring manager sign-off.
   AP examples: validate vendor details, early payment request, put invoice on hold.
   AR examples: raise refund, investigate customer details, block invoice.
   Result: ticket moves to Pending Manager Approval; the manager receives approve/reject links.

If the ticket clearly belongs to the other team (AP vs AR), call 'reassign_ticket' instead.

Always explain your choice briefly in ai_response, in clear professional language suitable for direct email.`

var engineTools = []llm.ToolDefinition{
	{
		Name:        "search_invoices",
		Description: "Search the invoice ledger for matching records.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"Invoice Number": {"type": "string"},
				"Customer Name": {"type": "string"},
				"Vendor Name": {"type": "string"},
				"Payment Status": {"type": "string"},
				"PO Number": {"type": "string"},
				"Vendor ID": {"type": "string"},
				"Customer ID": {"type": "string"},
				"Invoice Amount": {"type": "number"}
			}
		}`),
	},
	{
		Name:        "resolve_ticket",
		Description: "Resolve the ticket using the correct closure type.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ticket_id": {"type": "string"},
				"ai_response": {"type": "string"},
				"auto_solved": {"type": "boolean"},
				"closure_type": {
					"type": "string",
					"enum": ["without_document", "with_document", "needs_approval"]
				},
				"document_kind": {
					"type": "string",
					"enum": ["invoice_copy", "payment_confirmation", "invoice_details"],
					"description": "Only for with_document."
				}
			},
			"required": ["ticket_id", "ai_response", "auto_solved", "closure_type"]
		}`),
	},
	{
		Name:        "reassign_ticket",
		Description: "Move the ticket to the other specialist team when it was routed wrong.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ticket_id": {"type": "string"},
				"target_team": {"type": "string", "enum": ["AP", "AR"]},
				"reason": {"type": "string"}
			},
			"required": ["ticket_id", "target_team", "reason"]
		}`),
	},
}

// ProcessTicket runs one bounded conversation for the ticket and
// returns a short human-readable outcome.
func (e *Engine) ProcessTicket(ctx context.Context, ticket domain.Ticket) string {
	logger := e.deps.Logger.With(zap.String("ticket_id", ticket.ID))

	if ticket.IsClosed() {
		logger.Info("skipping ticket: already closed")
		return fmt.Sprintf("Ticket %s skipped: already closed", ticket.ID)
	}

	logger.Info("processing ticket",
		zap.String("team", ticket.AssignedTeam),
		zap.String("type", string(ticket.Type)))

	conversation := []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(ticketContext(ticket)),
	}
	var lastSearchResults []domain.Invoice

	for turn := 0; turn < e.deps.LLM.MaxTurns; turn++ {
		response, err := e.deps.Provider.Complete(ctx, llm.Request{
			Model:     e.deps.LLM.Model,
			Messages:  conversation,
			Tools:     engineTools,
			MaxTokens: e.deps.LLM.MaxTokens,
		})
		if err != nil {
			logger.Error("model call failed", zap.Error(err))
			return fmt.Sprintf("Ticket %s processed with error: model call failed", ticket.ID)
		}
		conversation = append(conversation, response.Message)

		if !response.HasToolCalls() {
			content := strings.TrimSpace(response.Message.Content)
			if content == "" {
				content = "no resolution reached"
			}
			logger.Info("model finished without terminal action")
			return fmt.Sprintf("Ticket %s unresolved: %s", ticket.ID, content)
		}

		for _, call := range response.Message.ToolCalls {
			switch call.Name {
			case "search_invoices":
				result := e.searchInvoices(ctx, logger, call.Arguments, &lastSearchResults)
				conversation = append(conversation, llm.ToolResultMessage(call.ID, call.Name, result))
			case "resolve_ticket":
				return e.resolveTicket(ctx, logger, &ticket, call.Arguments, lastSearchResults)
			case "reassign_ticket":
				return e.reassignTicket(ctx, logger, &ticket, call.Arguments)
			default:
				logger.Warn("model requested unknown tool", zap.String("tool", call.Name))
				conversation = append(conversation, llm.ToolResultMessage(call.ID, call.Name,
					`{"error":"unknown tool"}`))
			}
		}
	}

	logger.Warn("turn limit reached without terminal action")
	return fmt.Sprintf("Ticket %s unresolved: turn limit reached", ticket.ID)
}

func ticketContext(ticket domain.Ticket) string {
	return fmt.Sprintf("Ticket ID: %s\nAssigned Team: %s\nTicket Type: %s\nDescription: %s",
		ticket.ID, ticket.AssignedTeam, ticket.Type, ticket.Description)
}

type searchArgs struct {
	InvoiceNumber *string  `json:"Invoice Number"`
	CustomerName  *string  `json:"Customer Name"`
	VendorName    *string  `json:"Vendor Name"`
	PaymentStatus *string  `json:"Payment Status"`
	PONumber      *string  `json:"PO Number"`
	VendorID      *string  `json:"Vendor ID"`
	CustomerID    *string  `json:"Customer ID"`
	Amount        *float64 `json:"Invoice Amount"`
}

func (e *Engine) searchInvoices(ctx context.Context, logger *zap.Logger, raw json.RawMessage, lastResults *[]domain.Invoice) string {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		logger.Warn("malformed search arguments", zap.Error(err))
		return `{"error":"malformed search arguments"}`
	}

	filter := domain.InvoiceFilter{
		VendorID:      args.VendorID,
		VendorName:    args.VendorName,
		CustomerID:    args.CustomerID,
		CustomerName:  args.CustomerName,
		PONumber:      args.PONumber,
		PaymentStatus: args.PaymentStatus,
		Amount:        args.Amount,
	}
	if args.InvoiceNumber != nil {
		if normalized := NormalizeInvoiceNumber(*args.InvoiceNumber); normalized != "" {
			filter.Number = &normalized
		} else {
			filter.Number = args.InvoiceNumber
		}
	}

	results, err := e.deps.Invoices.Search(ctx, filter)
	if err != nil {
		logger.Error("invoice search failed", zap.Error(err))
		return `{"error":"invoice search failed"}`
	}
	*lastResults = results
	logger.Info("invoice search", zap.Int("hits", len(results)))

	payload, err := json.Marshal(invoiceRows(results))
	if err != nil {
		return `{"error":"serialization failed"}`
	}
	return string(payload)
}

// invoiceRows shapes ledger rows for the model: ISO dates, explicit
// nulls for missing values, spreadsheet-era column names it was
// prompted with.
func invoiceRows(invoices []domain.Invoice) []map[string]any {
	rows := make([]map[string]any, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, map[string]any{
			"Invoice Number": inv.Number,
			"Invoice Date":   isoDate(inv.Date),
			"Invoice Amount": floatOrNil(inv.Amount),
			"Vendor ID":      strOrNil(inv.VendorID),
			"Vendor Name":    strOrNil(inv.VendorName),
			"Customer ID":    strOrNil(inv.CustomerID),
			"Customer Name":  strOrNil(inv.CustomerName),
			"PO Number":      strOrNil(inv.PONumber),
			"PO Status":      strOrNil(inv.POStatus),
			"Payment Status": strOrNil(inv.PaymentStatus),
			"Payment Term":   strOrNil(inv.PaymentTerm),
			"Due Date":       isoDate(inv.DueDate),
			"Clearing Date":  isoDate(inv.ClearingDate),
			"Country":        strOrNil(inv.Country),
		})
	}
	return rows
}

func isoDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

type resolveArgs struct {
	TicketID     string `json:"ticket_id"`
	AIResponse   string `json:"ai_response"`
	AutoSolved   bool   `json:"auto_solved"`
	ClosureType  string `json:"closure_type"`
	DocumentKind string `json:"document_kind"`
}

func (e *Engine) resolveTicket(ctx context.Context, logger *zap.Logger, ticket *domain.Ticket, raw json.RawMessage, lastResults []domain.Invoice) string {
	var args resolveArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		logger.Error("malformed resolve arguments", zap.Error(err))
		return fmt.Sprintf("Ticket %s processed with error: malformed resolve arguments", ticket.ID)
	}
	if strings.TrimSpace(args.AIResponse) == "" {
		args.AIResponse = "Ticket processed automatically."
	}
	// auto_solved is advisory metadata from the model; routing is
	// decided by closure_type alone.
	logger.Info("resolve requested",
		zap.String("closure_type", args.ClosureType),
		zap.Bool("auto_solved", args.AutoSolved))

	switch args.ClosureType {
	case "without_document":
		return e.closeTicket(ctx, logger, ticket, args, nil)
	case "with_document":
		invoice := e.resolveInvoiceRecord(ctx, logger, ticket, lastResults)
		return e.closeTicket(ctx, logger, ticket, args, invoice)
	case "needs_approval":
		return e.routeForApproval(ctx, logger, ticket, args)
	default:
		logger.Error("unknown closure type", zap.String("closure_type", args.ClosureType))
		return fmt.Sprintf("Ticket %s processed with error: unknown closure type %q", ticket.ID, args.ClosureType)
	}
}

// resolveInvoiceRecord picks the invoice a with_document closure should
// render: the first hit of the most recent search in this conversation,
// else reference tokens mined from the ticket text checked against the
// ledger one by one.
func (e *Engine) resolveInvoiceRecord(ctx context.Context, logger *zap.Logger, ticket *domain.Ticket, lastResults []domain.Invoice) *domain.Invoice {
	if len(lastResults) > 0 {
		return &lastResults[0]
	}
	for _, ref := range ExtractInvoiceRefs(ticket.Description, ticket.AIResponse) {
		invoice, err := e.deps.Invoices.GetByNumber(ctx, ref)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				logger.Warn("invoice lookup failed", zap.String("invoice", ref), zap.Error(err))
			}
			continue
		}
		return invoice
	}
	return nil
}

func (e *Engine) closeTicket(ctx context.Context, logger *zap.Logger, ticket *domain.Ticket, args resolveArgs, invoice *domain.Invoice) string {
	now := time.Now().UTC()
	fields := map[string]any{
		repository.FieldStatus:            string(domain.TicketStatusClosed),
		repository.FieldAutoMarker:        string(domain.AutoMarkerAutoResolved),
		repository.FieldAIResponse:        args.AIResponse,
		repository.FieldAdminReviewNeeded: false,
		repository.FieldClosedAt:          now,
	}
	if err := e.deps.Tickets.UpdateFields(ctx, ticket.ID, fields); err != nil {
		logger.Error("ticket update failed", zap.Error(err))
		return fmt.Sprintf("Ticket %s processed with error: store update failed", ticket.ID)
	}

	body := args.AIResponse
	attachmentPath := ""
	var documentPath *string

	if args.ClosureType == "with_document" {
		switch {
		case invoice == nil:
			body += "\n\nNo matching invoice record was found, so no document is attached."
		default:
			path, err := e.deps.Renderer.Render(document.ParseKind(args.DocumentKind), ticket.ID, invoice)
			if err != nil {
				logger.Warn("document rendering failed", zap.Error(err))
				body += "\n\nDocument generation failed; the ledger details above stand as the record."
			} else {
				attachmentPath = path
				documentPath = &path
			}
		}
	}

	recipient := e.requesterEmail(ctx, logger, ticket)
	if recipient == "" {
		logger.Warn("no requester email resolvable; skipping notification")
	} else {
		err := e.deps.Notifier.Send(ctx, notify.Message{
			To:             recipient,
			Subject:        fmt.Sprintf("Update on Ticket %s", ticket.ID),
			Body:           body,
			AttachmentPath: attachmentPath,
		})
		if err != nil {
			logger.Error("resolution notification failed", zap.Error(err))
		}
	}
	if attachmentPath != "" {
		if err := os.Remove(attachmentPath); err != nil {
			logger.Warn("temp document cleanup failed", zap.Error(err))
		}
	}

	e.publish(ctx, events.EventTicketResolved, ticket.ID, events.TicketResolvedPayload{
		ClosureType:   args.ClosureType,
		InvoiceNumber: invoiceNumber(invoice),
		DocumentPath:  documentPath,
		Recipient:     optional(recipient),
	})

	return fmt.Sprintf("Ticket %s processed: %s | %s", ticket.ID, args.ClosureType, args.AIResponse)
}

func (e *Engine) routeForApproval(ctx context.Context, logger *zap.Logger, ticket *domain.Ticket, args resolveArgs) string {
	fields := map[string]any{
		repository.FieldStatus:            string(domain.TicketStatusPendingApproval),
		repository.FieldAutoMarker:        string(domain.AutoMarkerAutoResolved),
		repository.FieldAIResponse:        args.AIResponse,
		repository.FieldAdminReviewNeeded: true,
	}
	if err := e.deps.Tickets.UpdateFields(ctx, ticket.ID, fields); err != nil {
		logger.Error("ticket update failed", zap.Error(err))
		return fmt.Sprintf("Ticket %s processed with error: store update failed", ticket.ID)
	}

	manager, err := e.deps.Directory.ManagerForTeam(ctx, ticket.AssignedTeam)
	if err != nil {
		logger.Error("manager lookup failed", zap.Error(err))
	}
	if manager == nil {
		// Missing manager is a roster gap, not an engine failure. The
		// ticket stays pending until a human notices.
		logger.Warn("no manager found for team; approval email not sent",
			zap.String("team", ticket.AssignedTeam))
		e.publish(ctx, events.EventTicketPendingApproval, ticket.ID, events.TicketPendingApprovalPayload{})
		return fmt.Sprintf("Ticket %s processed: needs_approval | no manager found for team %s", ticket.ID, ticket.AssignedTeam)
	}

	links := e.deps.Tokens.BuildLinks(e.deps.BaseURL, ticket.ID)
	body := fmt.Sprintf(`Hello %s,

The triage agent has resolved Ticket %s.

Team: %s

Proposed resolution:
%s

Please review:
APPROVE: %s
REJECT & REOPEN: %s

Regards,
Query Management System`,
		manager.Name, ticket.ID, ticket.AssignedTeam, args.AIResponse, links.Approve, links.Reject)

	err = e.deps.Notifier.Send(ctx, notify.Message{
		To:      manager.Email,
		Subject: fmt.Sprintf("Approval Required: Ticket %s", ticket.ID),
		Body:    body,
	})
	if err != nil {
		logger.Error("approval notification failed", zap.Error(err))
	}

	e.publish(ctx, events.EventTicketPendingApproval, ticket.ID, events.TicketPendingApprovalPayload{
		ManagerName:  &manager.Name,
		ManagerEmail: &manager.Email,
	})
	return fmt.Sprintf("Ticket %s processed: needs_approval | %s", ticket.ID, args.AIResponse)
}

type reassignArgs struct {
	TicketID   string `json:"ticket_id"`
	TargetTeam string `json:"target_team"`
	Reason     string `json:"reason"`
}

func (e *Engine) reassignTicket(ctx context.Context, logger *zap.Logger, ticket *domain.Ticket, raw json.RawMessage) string {
	var args reassignArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		logger.Error("malformed reassign arguments", zap.Error(err))
		return fmt.Sprintf("Ticket %s processed with error: malformed reassign arguments", ticket.ID)
	}
	target := strings.ToUpper(strings.TrimSpace(args.TargetTeam))
	if target != "AP" && target != "AR" {
		logger.Error("invalid reassign target", zap.String("target_team", args.TargetTeam))
		return fmt.Sprintf("Ticket %s processed with error: invalid reassign target %q", ticket.ID, args.TargetTeam)
	}

	fields := map[string]any{
		repository.FieldAssignedTeam: target,
		repository.FieldStatus:       string(domain.TicketStatusOpen),
		repository.FieldAutoMarker:   string(domain.AutoMarkerNone),
	}
	if err := e.deps.Tickets.UpdateFields(ctx, ticket.ID, fields); err != nil {
		logger.Error("ticket update failed", zap.Error(err))
		return fmt.Sprintf("Ticket %s processed with error: store update failed", ticket.ID)
	}

	if recipient := e.requesterEmail(ctx, logger, ticket); recipient != "" {
		err := e.deps.Notifier.Send(ctx, notify.Message{
			To:      recipient,
			Subject: fmt.Sprintf("Ticket %s reassigned", ticket.ID),
			Body: fmt.Sprintf("Your ticket %s has been reassigned to the %s team.\n\nReason: %s",
				ticket.ID, target, args.Reason),
		})
		if err != nil {
			logger.Error("requester reassign notification failed", zap.Error(err))
		}
	}
	if ticket.AssigneeName != nil {
		if email, err := e.deps.Directory.EmailForName(ctx, *ticket.AssigneeName); err == nil && email != "" {
			err := e.deps.Notifier.Send(ctx, notify.Message{
				To:      email,
				Subject: fmt.Sprintf("Ticket %s handed off", ticket.ID),
				Body: fmt.Sprintf("Ticket %s previously assigned to you has moved to the %s team.\n\nReason: %s",
					ticket.ID, target, args.Reason),
			})
			if err != nil {
				logger.Error("assignee reassign notification failed", zap.Error(err))
			}
		}
	}

	e.publish(ctx, events.EventTicketReassigned, ticket.ID, events.TicketReassignedPayload{
		OldTeam: ticket.AssignedTeam,
		NewTeam: target,
		Reason:  args.Reason,
	})
	return fmt.Sprintf("Ticket %s processed: reassign | moved to team %s", ticket.ID, target)
}

// requesterEmail resolves who should receive resolution mail: an
// explicit requester email on the ticket, then the requester's roster
// entry by name, then the assignee's.
func (e *Engine) requesterEmail(ctx context.Context, logger *zap.Logger, ticket *domain.Ticket) string {
	if ticket.RequesterEmail != nil && strings.Contains(*ticket.RequesterEmail, "@") {
		return strings.TrimSpace(*ticket.RequesterEmail)
	}
	for _, name := range []*string{ticket.RequesterName, ticket.AssigneeName} {
		if name == nil || strings.TrimSpace(*name) == "" {
			continue
		}
		email, err := e.deps.Directory.EmailForName(ctx, *name)
		if err != nil {
			logger.Warn("email lookup failed", zap.String("name", *name), zap.Error(err))
			continue
		}
		if email != "" {
			return email
		}
	}
	return ""
}

func (e *Engine) publish(ctx context.Context, eventType events.EventType, ticketID string, payload interface{}) {
	if e.deps.Dispatcher == nil {
		return
	}
	_ = e.deps.Dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{Automated: true},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func invoiceNumber(invoice *domain.Invoice) *string {
	if invoice == nil {
		return nil
	}
	return &invoice.Number
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

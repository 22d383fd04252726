package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// ReportService builds the aggregate read-only views consumed by the
// dashboard: a KPI summary and a two-sheet workbook export.
type ReportService struct {
	tickets  repository.TicketRepository
	invoices repository.InvoiceRepository
}

// ReportDependencies bundles collaborators.
type ReportDependencies struct {
	TicketRepo  repository.TicketRepository
	InvoiceRepo repository.InvoiceRepository
}

// NewReportService creates the service.
func NewReportService(deps ReportDependencies) *ReportService {
	return &ReportService{tickets: deps.TicketRepo, invoices: deps.InvoiceRepo}
}

// Summary is the dashboard KPI payload.
type Summary struct {
	TotalTickets    int     `json:"total_tickets"`
	OpenTickets     int     `json:"open_tickets"`
	ClosedTickets   int     `json:"closed_tickets"`
	PendingApproval int     `json:"pending_approval"`
	AutoResolved    int     `json:"auto_resolved"`
	ReviewQueue     int     `json:"review_queue"`
	APTickets       int     `json:"ap_tickets"`
	ARTickets       int     `json:"ar_tickets"`
	ClosureRate     float64 `json:"closure_rate"`
	AutoResolveRate float64 `json:"auto_resolve_rate"`
	TotalInvoices   int     `json:"total_invoices"`
	PaidInvoices    int     `json:"paid_invoices"`
	UnpaidInvoices  int     `json:"unpaid_invoices"`
	OverdueInvoices int     `json:"overdue_invoices"`
}

// BuildSummary computes the KPI snapshot.
func (s *ReportService) BuildSummary(ctx context.Context) (*Summary, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	invoices, err := s.invoices.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	summary := &Summary{TotalTickets: len(tickets), TotalInvoices: len(invoices)}
	for i := range tickets {
		t := &tickets[i]
		switch {
		case t.IsClosed():
			summary.ClosedTickets++
		case t.Status == domain.TicketStatusPendingApproval:
			summary.PendingApproval++
		default:
			summary.OpenTickets++
		}
		if t.AutoMarker == domain.AutoMarkerAutoResolved {
			summary.AutoResolved++
		}
		if t.InReviewQueue() {
			summary.ReviewQueue++
		}
		switch t.Type {
		case domain.TicketTypeAccountsPayable:
			summary.APTickets++
		case domain.TicketTypeAccountsReceivable:
			summary.ARTickets++
		}
	}
	if summary.TotalTickets > 0 {
		summary.ClosureRate = float64(summary.ClosedTickets) / float64(summary.TotalTickets)
		summary.AutoResolveRate = float64(summary.AutoResolved) / float64(summary.TotalTickets)
	}

	now := time.Now().UTC()
	for i := range invoices {
		inv := &invoices[i]
		if isPaid(inv) {
			summary.PaidInvoices++
			continue
		}
		summary.UnpaidInvoices++
		if inv.DueDate != nil && inv.DueDate.Before(now) {
			summary.OverdueInvoices++
		}
	}
	return summary, nil
}

// ExportWorkbook renders every ticket and invoice into an xlsx
// workbook with one sheet per table.
func (s *ReportService) ExportWorkbook(ctx context.Context) (*excelize.File, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	invoices, err := s.invoices.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	f := excelize.NewFile()
	const ticketSheet = "Tickets"
	const invoiceSheet = "Invoices"

	f.SetSheetName(f.GetSheetName(0), ticketSheet)
	if _, err := f.NewSheet(invoiceSheet); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	ticketHeaders := []any{"Ticket ID", "Description", "Status", "Assigned Team",
		"Assignee", "Requester", "Ticket Type", "Auto Marker", "AI Response",
		"Review Needed", "Created", "Closed"}
	if err := f.SetSheetRow(ticketSheet, "A1", &ticketHeaders); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range tickets {
		t := &tickets[i]
		row := []any{
			t.ID, t.Description, string(t.Status), t.AssignedTeam,
			deref(t.AssigneeName), deref(t.RequesterName), string(t.Type),
			string(t.AutoMarker), t.AIResponse, t.AdminReviewNeeded,
			t.CreatedAt.Format("2006-01-02"), formatDate(t.ClosedAt),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(ticketSheet, cell, &row); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}

	invoiceHeaders := []any{"Invoice Number", "Invoice Date", "Amount", "Vendor",
		"Customer", "PO Number", "PO Status", "Payment Status", "Payment Term",
		"Due Date", "Clearing Date", "Country"}
	if err := f.SetSheetRow(invoiceSheet, "A1", &invoiceHeaders); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range invoices {
		inv := &invoices[i]
		row := []any{
			inv.Number, formatDate(inv.Date), derefFloat(inv.Amount),
			deref(inv.VendorName), deref(inv.CustomerName), deref(inv.PONumber),
			deref(inv.POStatus), deref(inv.PaymentStatus), deref(inv.PaymentTerm),
			formatDate(inv.DueDate), formatDate(inv.ClearingDate), deref(inv.Country),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(invoiceSheet, cell, &row); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}

	return f, nil
}

func isPaid(inv *domain.Invoice) bool {
	return inv.PaymentStatus != nil &&
		strings.EqualFold(strings.TrimSpace(*inv.PaymentStatus), string(domain.PaymentStatusPaid))
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefFloat(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

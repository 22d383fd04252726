// Package document renders PDF artifacts that accompany resolution
// emails. Files land in a configured output directory; callers decide
// their lifetime after the send.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Kind selects the document template.
type Kind string

const (
	KindInvoiceCopy         Kind = "invoice_copy"
	KindPaymentConfirmation Kind = "payment_confirmation"
	KindInvoiceDetails      Kind = "invoice_details"
)

// ParseKind maps a free-form document type to a known Kind. Unknown
// values fall back to the generic details document.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindInvoiceCopy):
		return KindInvoiceCopy
	case string(KindPaymentConfirmation):
		return KindPaymentConfirmation
	default:
		return KindInvoiceDetails
	}
}

// Renderer writes ticket attachments to disk and returns the path.
type Renderer interface {
	Render(kind Kind, ticketID string, inv *domain.Invoice) (string, error)
}

// PDFRenderer builds single-page PDF documents with fpdf.
type PDFRenderer struct {
	outputDir string
}

// NewPDFRenderer ensures the output directory exists.
func NewPDFRenderer(outputDir string) (*PDFRenderer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("document: creating output dir %s: %w", outputDir, err)
	}
	return &PDFRenderer{outputDir: outputDir}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename strips anything that could escape the output
// directory or upset a filesystem.
func sanitizeFilename(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		s = "document"
	}
	return s
}

// Render writes the requested document and returns its absolute path.
func (r *PDFRenderer) Render(kind Kind, ticketID string, inv *domain.Invoice) (string, error) {
	name := sanitizeFilename(fmt.Sprintf("%s_%s.pdf", kind, ticketID))
	path := filepath.Join(r.outputDir, name)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title(kind), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 12, title(kind), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated "+time.Now().UTC().Format("2006-01-02 15:04 UTC"), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Reference ticket "+ticketID, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	for _, row := range rows(kind, inv) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(60, 8, row.label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, row.value, "1", 1, "L", false, 0, "")
	}

	if kind == KindPaymentConfirmation {
		pdf.Ln(10)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, "This document confirms that the payment above has been processed. Retain it for your records.", "", "L", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("document: writing %s: %w", path, err)
	}
	return path, nil
}

type docRow struct {
	label string
	value string
}

func title(kind Kind) string {
	switch kind {
	case KindInvoiceCopy:
		return "Invoice Copy"
	case KindPaymentConfirmation:
		return "Payment Confirmation"
	default:
		return "Invoice Details"
	}
}

func rows(kind Kind, inv *domain.Invoice) []docRow {
	base := []docRow{
		{"Invoice Number", inv.Number},
		{"Invoice Date", dateValue(inv.Date)},
		{"Amount", amountValue(inv.Amount)},
		{"Vendor", strValue(inv.VendorName)},
		{"Customer", strValue(inv.CustomerName)},
	}
	switch kind {
	case KindInvoiceCopy:
		return append(base,
			docRow{"PO Number", strValue(inv.PONumber)},
			docRow{"Payment Term", strValue(inv.PaymentTerm)},
			docRow{"Country", strValue(inv.Country)},
		)
	case KindPaymentConfirmation:
		return append(base,
			docRow{"Payment Status", strValue(inv.PaymentStatus)},
			docRow{"Clearing Date", dateValue(inv.ClearingDate)},
		)
	default:
		return append(base,
			docRow{"PO Number", strValue(inv.PONumber)},
			docRow{"PO Status", strValue(inv.POStatus)},
			docRow{"Payment Status", strValue(inv.PaymentStatus)},
			docRow{"Payment Term", strValue(inv.PaymentTerm)},
			docRow{"Due Date", dateValue(inv.DueDate)},
			docRow{"Clearing Date", dateValue(inv.ClearingDate)},
			docRow{"Country", strValue(inv.Country)},
		)
	}
}

func strValue(p *string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return "N/A"
	}
	return *p
}

func dateValue(p *time.Time) string {
	if p == nil {
		return "N/A"
	}
	return p.Format("2006-01-02")
}

func amountValue(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *p)
}

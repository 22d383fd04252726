package domain

import "time"

// PaymentStatus enumerates ledger payment states.
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "Paid"
	PaymentStatusUnpaid PaymentStatus = "Unpaid"
)

// Invoice is a read-only ledger row used for lookups and document
// population. Numbers are stored in the canonical "INV-<n>" form.
type Invoice struct {
	Number        string
	Date          *time.Time
	Amount        *float64
	VendorID      *string
	VendorName    *string
	CustomerID    *string
	CustomerName  *string
	PONumber      *string
	POStatus      *string
	PaymentStatus *string
	PaymentTerm   *string
	DueDate       *time.Time
	ClearingDate  *time.Time
	Country       *string
}

// InvoiceFilter is a sparse filter over invoice fields. Text fields
// match case-insensitive substrings; Amount matches exactly.
type InvoiceFilter struct {
	Number        *string
	VendorID      *string
	VendorName    *string
	CustomerID    *string
	CustomerName  *string
	PONumber      *string
	PaymentStatus *string
	Amount        *float64
}

// IsEmpty reports whether no filter field is set.
func (f InvoiceFilter) IsEmpty() bool {
	return f.Number == nil && f.VendorID == nil && f.VendorName == nil &&
		f.CustomerID == nil && f.CustomerName == nil && f.PONumber == nil &&
		f.PaymentStatus == nil && f.Amount == nil
}

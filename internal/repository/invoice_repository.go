package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// InvoiceRepository provides read-only access to the invoice ledger.
type InvoiceRepository interface {
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	Search(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	ListAll(ctx context.Context) ([]domain.Invoice, error)
}

type invoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository instantiates the repository.
func NewInvoiceRepository(pool *pgxpool.Pool) InvoiceRepository {
	return &invoiceRepository{pool: pool}
}

const invoiceColumns = `invoice_number, invoice_date, amount, vendor_id, vendor_name,
               customer_id, customer_name, po_number, po_status, payment_status,
               payment_term, due_date, clearing_date, country`

func (r *invoiceRepository) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE LOWER(invoice_number)=LOWER($1)`, invoiceColumns)
	row := r.pool.QueryRow(ctx, query, strings.TrimSpace(number))
	invoice, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Search applies a sparse filter: case-insensitive substring matching
// for text fields, exact matching for the numeric amount.
func (r *invoiceRepository) Search(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	clauses := []string{"1=1"}
	args := []any{}

	appendLike := func(column string, value *string) {
		if value == nil || strings.TrimSpace(*value) == "" {
			return
		}
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*value))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE $%d", column, len(args)))
	}

	appendLike("invoice_number", filter.Number)
	appendLike("vendor_id", filter.VendorID)
	appendLike("vendor_name", filter.VendorName)
	appendLike("customer_id", filter.CustomerID)
	appendLike("customer_name", filter.CustomerName)
	appendLike("po_number", filter.PONumber)
	appendLike("payment_status", filter.PaymentStatus)

	if filter.Amount != nil {
		args = append(args, *filter.Amount)
		clauses = append(clauses, fmt.Sprintf("amount = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY invoice_number`,
		invoiceColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

func (r *invoiceRepository) ListAll(ctx context.Context) ([]domain.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices ORDER BY invoice_number`, invoiceColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := row.Scan(
		&inv.Number,
		&inv.Date,
		&inv.Amount,
		&inv.VendorID,
		&inv.VendorName,
		&inv.CustomerID,
		&inv.CustomerName,
		&inv.PONumber,
		&inv.POStatus,
		&inv.PaymentStatus,
		&inv.PaymentTerm,
		&inv.DueDate,
		&inv.ClearingDate,
		&inv.Country,
	); err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanInvoices(rows pgx.Rows) ([]domain.Invoice, error) {
	var result []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}
	return result, rows.Err()
}

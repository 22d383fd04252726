package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Canonical field keys accepted by UpdateFields. Legacy spreadsheet-era
// aliases are tolerated for backward compatibility with older callers.
const (
	FieldStatus            = "status"
	FieldAssignedTeam      = "assigned_team"
	FieldAssigneeName      = "assignee_name"
	FieldAutoMarker        = "auto_marker"
	FieldAIResponse        = "ai_response"
	FieldAdminReviewNeeded = "admin_review_needed"
	FieldClosedAt          = "closed_at"
)

var fieldAliases = map[string]string{
	"Ticket Status":       FieldStatus,
	"Assigned Team":       FieldAssignedTeam,
	"Team Name":           FieldAssignedTeam,
	"User Name":           FieldAssigneeName,
	"Person Name":         FieldAssigneeName,
	"Auto Solved":         FieldAutoMarker,
	"AI Response":         FieldAIResponse,
	"Admin Review Needed": FieldAdminReviewNeeded,
	"Ticket Closed Date":  FieldClosedAt,
}

var updatableColumns = map[string]struct{}{
	FieldStatus:            {},
	FieldAssignedTeam:      {},
	FieldAssigneeName:      {},
	FieldAutoMarker:        {},
	FieldAIResponse:        {},
	FieldAdminReviewNeeded: {},
	FieldClosedAt:          {},
}

// Placeholder assignee values inherited from the spreadsheet era; rows
// carrying one of these count as unassigned.
var unassignedSentinels = []string{"", "nan", "none", "unknown", "unassigned", "default"}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListEligibleForTriage(ctx context.Context) ([]domain.Ticket, error)
	ListReviewQueue(ctx context.Context) ([]domain.Ticket, error)
	ListOpenUnassigned(ctx context.Context, team string) ([]domain.Ticket, error)
	ListByAssignee(ctx context.Context, name string) ([]domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	OpenCountsByAssignee(ctx context.Context) (map[string]int, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, description, status, assigned_team, assignee_name, requester_name,
               requester_email, ticket_type, auto_marker, ai_response, admin_review_needed,
               created_at, updated_at, closed_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, strings.TrimSpace(id)).Scan(
		&ticket.ID,
		&ticket.Description,
		&ticket.Status,
		&ticket.AssignedTeam,
		&ticket.AssigneeName,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.Type,
		&ticket.AutoMarker,
		&ticket.AIResponse,
		&ticket.AdminReviewNeeded,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListEligibleForTriage returns tickets the batch pass may process:
// not closed, and never touched by a previous automated attempt.
func (r *ticketRepository) ListEligibleForTriage(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE LOWER(status) <> LOWER($1) AND auto_marker = ''
        ORDER BY created_at`, ticketColumns)
	return r.list(ctx, query, string(domain.TicketStatusClosed))
}

func (r *ticketRepository) ListReviewQueue(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE LOWER(status) = LOWER($1) AND auto_marker = $2
        ORDER BY updated_at DESC`, ticketColumns)
	return r.list(ctx, query, string(domain.TicketStatusClosed), string(domain.AutoMarkerAutoResolved))
}

func (r *ticketRepository) ListOpenUnassigned(ctx context.Context, team string) ([]domain.Ticket, error) {
	clauses := []string{
		"LOWER(status) = LOWER($1)",
		"(assignee_name IS NULL OR LOWER(TRIM(assignee_name)) = ANY($2))",
	}
	args := []any{string(domain.TicketStatusOpen), unassignedSentinels}
	if strings.TrimSpace(team) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(team))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(assigned_team) LIKE $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at`,
		ticketColumns, strings.Join(clauses, " AND "))
	return r.list(ctx, query, args...)
}

func (r *ticketRepository) ListByAssignee(ctx context.Context, name string) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE LOWER(TRIM(assignee_name)) = LOWER(TRIM($1))
        ORDER BY created_at`, ticketColumns)
	return r.list(ctx, query, name)
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets ORDER BY created_at`, ticketColumns)
	return r.list(ctx, query)
}

// OpenCountsByAssignee maps every distinct assignee name that has ever
// held a ticket to their count of currently open tickets.
func (r *ticketRepository) OpenCountsByAssignee(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT TRIM(assignee_name),
               COUNT(*) FILTER (WHERE LOWER(status) = LOWER($1))
        FROM tickets
        WHERE assignee_name IS NOT NULL AND NOT (LOWER(TRIM(assignee_name)) = ANY($2))
        GROUP BY TRIM(assignee_name)`
	rows, err := r.pool.Query(ctx, query, string(domain.TicketStatusOpen), unassignedSentinels)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var open int
		if err := rows.Scan(&name, &open); err != nil {
			return nil, err
		}
		counts[name] = open
	}
	return counts, rows.Err()
}

// UpdateFields applies a point update to the named fields of one ticket.
// Unknown field names are rejected; legacy aliases are resolved first.
// updated_at is stamped on every successful update.
func (r *ticketRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}

	sets := make([]string, 0, len(fields)+1)
	args := []any{}
	for field, value := range fields {
		column := field
		if canonical, ok := fieldAliases[field]; ok {
			column = canonical
		}
		if _, ok := updatableColumns[column]; !ok {
			return fmt.Errorf("unknown ticket field %q", field)
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	sets = append(sets, "updated_at=NOW()")

	args = append(args, strings.TrimSpace(id))
	query := fmt.Sprintf("UPDATE tickets SET %s WHERE id=$%d", strings.Join(sets, ", "), len(args))

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Description,
			&ticket.Status,
			&ticket.AssignedTeam,
			&ticket.AssigneeName,
			&ticket.RequesterName,
			&ticket.RequesterEmail,
			&ticket.Type,
			&ticket.AutoMarker,
			&ticket.AIResponse,
			&ticket.AdminReviewNeeded,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

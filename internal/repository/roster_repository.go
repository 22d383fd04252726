package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// RosterFilter defines query params for roster listing.
type RosterFilter struct {
	Role   *domain.RosterRole
	Team   *string
	Active *bool
	Limit  int
	Offset int
}

// RosterRepository handles persistence for roster members.
type RosterRepository interface {
	Create(ctx context.Context, member *domain.RosterMember) error
	Update(ctx context.Context, member *domain.RosterMember) error
	GetByID(ctx context.Context, id string) (*domain.RosterMember, error)
	GetByEmail(ctx context.Context, email string) (*domain.RosterMember, error)
	GetByName(ctx context.Context, name string) (*domain.RosterMember, error)
	List(ctx context.Context, filter RosterFilter) ([]domain.RosterMember, error)
}

type rosterRepository struct {
	pool *pgxpool.Pool
}

// NewRosterRepository instantiates the repository.
func NewRosterRepository(pool *pgxpool.Pool) RosterRepository {
	return &rosterRepository{pool: pool}
}

const rosterColumns = `id, name, email, password_hash, role, teams, active_flag, created_at, updated_at`

func (r *rosterRepository) Create(ctx context.Context, member *domain.RosterMember) error {
	const query = `
        INSERT INTO roster_members (name, email, password_hash, role, teams, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		member.Name,
		member.Email,
		member.PasswordHash,
		member.Role,
		member.Teams,
		member.Active,
	).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
}

func (r *rosterRepository) Update(ctx context.Context, member *domain.RosterMember) error {
	const query = `
        UPDATE roster_members SET name=$1, email=$2, password_hash=$3, role=$4, teams=$5,
            active_flag=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		member.Name,
		member.Email,
		member.PasswordHash,
		member.Role,
		member.Teams,
		member.Active,
		member.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *rosterRepository) GetByID(ctx context.Context, id string) (*domain.RosterMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM roster_members WHERE id=$1`, rosterColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *rosterRepository) GetByEmail(ctx context.Context, email string) (*domain.RosterMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM roster_members WHERE LOWER(email)=LOWER($1)`, rosterColumns)
	return r.fetchSingle(ctx, query, strings.TrimSpace(email))
}

func (r *rosterRepository) GetByName(ctx context.Context, name string) (*domain.RosterMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM roster_members WHERE LOWER(TRIM(name))=LOWER(TRIM($1))`, rosterColumns)
	return r.fetchSingle(ctx, query, name)
}

func (r *rosterRepository) List(ctx context.Context, filter RosterFilter) ([]domain.RosterMember, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if filter.Team != nil && strings.TrimSpace(*filter.Team) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.Team))+"%")
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(teams) AS t WHERE LOWER(t) LIKE $%d)", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM roster_members WHERE %s ORDER BY name LIMIT %d OFFSET %d`,
		rosterColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RosterMember
	for rows.Next() {
		var member domain.RosterMember
		if err := rows.Scan(
			&member.ID,
			&member.Name,
			&member.Email,
			&member.PasswordHash,
			&member.Role,
			&member.Teams,
			&member.Active,
			&member.CreatedAt,
			&member.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, member)
	}
	return result, rows.Err()
}

func (r *rosterRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.RosterMember, error) {
	var member domain.RosterMember
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.PasswordHash,
		&member.Role,
		&member.Teams,
		&member.Active,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &member, nil
}

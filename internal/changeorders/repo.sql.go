package changeorders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formwork-pm/formwork/internal/shared"
)

const changeOrderColumns = `id, project_id, number, description, amount, status, requested_by, approved_by, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByProject returns change orders for one project, newest first.
func (r *Repository) ListByProject(ctx context.Context, projectID string) ([]ChangeOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+changeOrderColumns+` FROM change_orders WHERE project_id = $1 ORDER BY number DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChangeOrder
	for rows.Next() {
		co, err := scanChangeOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

// Get returns one change order.
func (r *Repository) Get(ctx context.Context, id string) (ChangeOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+changeOrderColumns+` FROM change_orders WHERE id = $1`, id)
	co, err := scanChangeOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeOrder{}, shared.ErrNotFound
		}
		return ChangeOrder{}, err
	}
	return co, nil
}

// Create inserts a change order, numbering it per project.
func (r *Repository) Create(ctx context.Context, co ChangeOrder) (ChangeOrder, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO change_orders (id, project_id, number, description, amount, status, requested_by)
		VALUES ($1, $2, (SELECT COALESCE(MAX(number), 0) + 1 FROM change_orders WHERE project_id = $2), $3, $4, $5, $6)
		RETURNING `+changeOrderColumns,
		co.ID, co.ProjectID, co.Description, co.Amount, co.Status, co.RequestedBy)
	return scanChangeOrder(row)
}

// SetDecision moves a pending change order to approved or rejected. The
// WHERE clause keeps decisions single-shot.
func (r *Repository) SetDecision(ctx context.Context, id, status, approverID string) (ChangeOrder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE change_orders
		SET status = $2, approved_by = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING `+changeOrderColumns,
		id, status, approverID, StatusPending)
	co, err := scanChangeOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeOrder{}, shared.ErrNotFound
		}
		return ChangeOrder{}, err
	}
	return co, nil
}

func scanChangeOrder(row pgx.Row) (ChangeOrder, error) {
	var co ChangeOrder
	var approvedBy *string
	err := row.Scan(&co.ID, &co.ProjectID, &co.Number, &co.Description, &co.Amount,
		&co.Status, &co.RequestedBy, &approvedBy, &co.CreatedAt, &co.UpdatedAt)
	if approvedBy != nil {
		co.ApprovedBy = *approvedBy
	}
	return co, err
}

package principals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/db"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

const principalColumns = `id, email, name, role_key, is_active, assigned_projects, permissions, can_view_costs, can_edit_costs, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for principals. It is
// also the trusted store behind the authorization guard: PrincipalByID runs
// its own scoped query and never routes through policy-gated code.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PrincipalByID implements authz.TrustedStore. Deactivated accounts are
// reported as missing so they resolve to zero privilege.
func (r *Repository) PrincipalByID(ctx context.Context, id string) (authz.Principal, error) {
	p, err := r.get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authz.Principal{}, authz.ErrPrincipalNotFound
		}
		return authz.Principal{}, err
	}
	if !p.IsActive {
		return authz.Principal{}, authz.ErrPrincipalNotFound
	}
	return p.AuthzRecord(), nil
}

// Get returns one principal by id.
func (r *Repository) Get(ctx context.Context, id string) (Principal, error) {
	return r.get(ctx, id)
}

func (r *Repository) get(ctx context.Context, id string) (Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	p, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, shared.ErrNotFound
		}
		return Principal{}, err
	}
	return p, nil
}

// List returns all principals ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Principal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+principalColumns+` FROM principals ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a principal with a bcrypt password hash.
func (r *Repository) Create(ctx context.Context, p Principal, passwordHash string) (Principal, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO principals (id, email, name, password_hash, role_key, is_active, assigned_projects, permissions, can_view_costs, can_edit_costs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+principalColumns,
		p.ID, p.Email, p.Name, passwordHash, p.RoleKey, p.IsActive,
		textArray(p.AssignedProjects), textArray(p.Permissions), p.CanViewCosts, p.CanEditCosts)
	created, err := scanPrincipal(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Principal{}, fmt.Errorf("%w: email", httpx.ErrDuplicate)
		}
		return Principal{}, err
	}
	return created, nil
}

// SetRole updates a principal's role.
func (r *Repository) SetRole(ctx context.Context, id, roleKey string) error {
	return r.exec(ctx, `UPDATE principals SET role_key = $2, updated_at = NOW() WHERE id = $1`, id, roleKey)
}

// SetActive activates or deactivates the account.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, `UPDATE principals SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// SetCostOverrides replaces the per-user cost visibility overrides. Nil
// clears an override back to the role default.
func (r *Repository) SetCostOverrides(ctx context.Context, id string, view, edit *bool) error {
	return r.exec(ctx, `UPDATE principals SET can_view_costs = $2, can_edit_costs = $3, updated_at = NOW() WHERE id = $1`, id, view, edit)
}

// ReplaceAccess atomically replaces the assigned project list and the
// additive permission list.
func (r *Repository) ReplaceAccess(ctx context.Context, id string, assignedProjects, permissions []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE principals SET assigned_projects = $2, permissions = $3, updated_at = NOW() WHERE id = $1`,
			id, textArray(assignedProjects), textArray(permissions))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.RoleKey, &p.IsActive,
		&p.AssignedProjects, &p.Permissions, &p.CanViewCosts, &p.CanEditCosts,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// textArray keeps empty slices stored as empty arrays instead of NULL.
func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

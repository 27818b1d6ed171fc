package projects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/shared"
)

const projectColumns = `id, code, name, status, budget, actual_cost, created_by, manager_id, created_at, updated_at`

// Repository provides PostgreSQL backed persistence. Its ProjectFacts
// method is the membership source behind the authorization guard and is
// scoped to a single project per call.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProjectFacts implements authz.MembershipSource. Unknown projects return
// empty facts, which the membership rule denies.
func (r *Repository) ProjectFacts(ctx context.Context, projectID string) (authz.ProjectFacts, error) {
	row := r.pool.QueryRow(ctx, `SELECT created_by, manager_id FROM projects WHERE id = $1`, projectID)
	var facts authz.ProjectFacts
	if err := row.Scan(&facts.CreatorID, &facts.ManagerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.ProjectFacts{}, nil
		}
		return authz.ProjectFacts{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT principal_id FROM project_members WHERE project_id = $1`, projectID)
	if err != nil {
		return authz.ProjectFacts{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return authz.ProjectFacts{}, err
		}
		facts.Members = append(facts.Members, id)
	}
	return facts, rows.Err()
}

// Get returns one project by id.
func (r *Repository) Get(ctx context.Context, id string) (Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, err
	}
	return p, nil
}

// ListAll returns every project.
func (r *Repository) ListAll(ctx context.Context) ([]Project, error) {
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
}

// ListByIDs returns projects restricted to the given id set.
func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ANY($1) ORDER BY created_at DESC`, ids)
}

// ListInvolving returns projects the principal created, manages or belongs
// to.
func (r *Repository) ListInvolving(ctx context.Context, principalID string) ([]Project, error) {
	return r.list(ctx, `
		SELECT DISTINCT `+prefixedProjectColumns("p")+`
		FROM projects p
		LEFT JOIN project_members m ON m.project_id = p.id
		WHERE p.created_by = $1 OR p.manager_id = $1 OR m.principal_id = $1
		ORDER BY p.created_at DESC`, principalID)
}

// Create inserts a new project.
func (r *Repository) Create(ctx context.Context, p Project) (Project, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO projects (id, code, name, status, budget, actual_cost, created_by, manager_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING `+projectColumns,
		p.ID, p.Code, p.Name, p.Status, p.Budget, p.ActualCost, p.CreatedBy, p.ManagerID)
	return scanProject(row)
}

// AddMember attaches a principal to the project membership list.
func (r *Repository) AddMember(ctx context.Context, projectID, principalID, role string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO project_members (project_id, principal_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, principal_id) DO UPDATE SET role = EXCLUDED.role`,
		projectID, principalID, role)
	return err
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]Project, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var managerID *string
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Status, &p.Budget, &p.ActualCost,
		&p.CreatedBy, &managerID, &p.CreatedAt, &p.UpdatedAt)
	if managerID != nil {
		p.ManagerID = *managerID
	}
	return p, err
}

func prefixedProjectColumns(alias string) string {
	return alias + `.id, ` + alias + `.code, ` + alias + `.name, ` + alias + `.status, ` +
		alias + `.budget, ` + alias + `.actual_cost, ` + alias + `.created_by, ` +
		alias + `.manager_id, ` + alias + `.created_at, ` + alias + `.updated_at`
}

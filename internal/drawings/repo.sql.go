package drawings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByProject returns drawings for one project, newest revision first.
func (r *Repository) ListByProject(ctx context.Context, projectID string) ([]ShopDrawing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, title, discipline, revision, status, submitted_by, created_at
		FROM shop_drawings WHERE project_id = $1
		ORDER BY title, revision DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShopDrawing
	for rows.Next() {
		var d ShopDrawing
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Title, &d.Discipline, &d.Revision, &d.Status, &d.SubmittedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Submit inserts a new drawing revision.
func (r *Repository) Submit(ctx context.Context, d ShopDrawing) (ShopDrawing, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO shop_drawings (id, project_id, title, discipline, revision, status, submitted_by)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(revision), 0) + 1 FROM shop_drawings WHERE project_id = $2 AND title = $3),
			$5, $6)
		RETURNING id, project_id, title, discipline, revision, status, submitted_by, created_at`,
		d.ID, d.ProjectID, d.Title, d.Discipline, d.Status, d.SubmittedBy)
	var created ShopDrawing
	err := row.Scan(&created.ID, &created.ProjectID, &created.Title, &created.Discipline,
		&created.Revision, &created.Status, &created.SubmittedBy, &created.CreatedAt)
	return created, err
}

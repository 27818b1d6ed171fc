package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formwork-pm/formwork/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	CreateSession(ctx context.Context, id, principalID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	SessionsByPrincipal(ctx context.Context, principalID string) ([]SessionRecord, error)
	DeleteSessionsByPrincipal(ctx context.Context, principalID string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches login credentials by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, is_active FROM principals WHERE email = $1`, email)
	var cred Credential
	if err := row.Scan(&cred.ID, &cred.Email, &cred.PasswordHash, &cred.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// CreateSession persists a new login session for auditing and revocation.
func (r *PGRepository) CreateSession(ctx context.Context, id, principalID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, principal_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, principalID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// SessionsByPrincipal lists registered sessions for one principal.
func (r *PGRepository) SessionsByPrincipal(ctx context.Context, principalID string) ([]SessionRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, principal_id, created_at, expires_at FROM sessions WHERE principal_id = $1`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.PrincipalID, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteSessionsByPrincipal removes every session registry row for one
// principal.
func (r *PGRepository) DeleteSessionsByPrincipal(ctx context.Context, principalID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE principal_id = $1`, principalID)
	return err
}

var _ Repository = (*PGRepository)(nil)

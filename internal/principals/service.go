package principals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// RepositoryPort defines data access methods for principals.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Principal, error)
	List(ctx context.Context) ([]Principal, error)
	Create(ctx context.Context, p Principal, passwordHash string) (Principal, error)
	SetRole(ctx context.Context, id, roleKey string) error
	SetActive(ctx context.Context, id string, active bool) error
	SetCostOverrides(ctx context.Context, id string, view, edit *bool) error
	ReplaceAccess(ctx context.Context, id string, assignedProjects, permissions []string) error
}

// SessionRevoker schedules revocation of a principal's live sessions after
// a privilege change, so demotions cannot linger in stale sessions.
type SessionRevoker interface {
	EnqueueSessionRevoke(ctx context.Context, principalID string) error
}

// Service handles the administrative principal surface.
type Service struct {
	repo    RepositoryPort
	catalog *authz.Catalog
	audit   *shared.AuditLogger
	revoker SessionRevoker
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, catalog *authz.Catalog, audit *shared.AuditLogger, revoker SessionRevoker, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, audit: audit, revoker: revoker, logger: logger}
}

// Get returns one principal.
func (s *Service) Get(ctx context.Context, id string) (Principal, error) {
	return s.repo.Get(ctx, id)
}

// List returns all principals.
func (s *Service) List(ctx context.Context) ([]Principal, error) {
	return s.repo.List(ctx)
}

// Create provisions a new principal with the given role and password.
func (s *Service) Create(ctx context.Context, actorID string, p Principal, password string) (Principal, error) {
	if _, ok := s.catalog.Lookup(p.RoleKey); !ok {
		return Principal{}, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, p.RoleKey)
	}
	if err := validateGrants(p.Permissions); err != nil {
		return Principal{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Principal{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.IsActive = true
	created, err := s.repo.Create(ctx, p, string(hash))
	if err != nil {
		return Principal{}, err
	}
	s.recordAudit(ctx, actorID, "principal.create", created.ID, map[string]any{"role": created.RoleKey})
	return created, nil
}

// ChangeRole moves a principal onto a different catalog role and revokes
// live sessions.
func (s *Service) ChangeRole(ctx context.Context, actorID, id, roleKey string) error {
	role, ok := s.catalog.Lookup(roleKey)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, roleKey)
	}
	if err := s.repo.SetRole(ctx, id, role.Key); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "principal.role_change", id, map[string]any{"role": role.Key})
	s.revokeSessions(ctx, id)
	return nil
}

// SetActive toggles account activation and revokes sessions on deactivation.
func (s *Service) SetActive(ctx context.Context, actorID, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "principal.set_active", id, map[string]any{"active": active})
	if !active {
		s.revokeSessions(ctx, id)
	}
	return nil
}

// SetCostOverrides replaces the per-user cost visibility overrides.
func (s *Service) SetCostOverrides(ctx context.Context, actorID, id string, view, edit *bool) error {
	if err := s.repo.SetCostOverrides(ctx, id, view, edit); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "principal.cost_overrides", id, map[string]any{"view": view, "edit": edit})
	s.revokeSessions(ctx, id)
	return nil
}

// ReplaceAccess replaces the assigned project list and additive grants.
// Grants must name registered capability flags.
func (s *Service) ReplaceAccess(ctx context.Context, actorID, id string, assignedProjects, permissions []string) error {
	if err := validateGrants(permissions); err != nil {
		return err
	}
	if err := s.repo.ReplaceAccess(ctx, id, assignedProjects, permissions); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "principal.replace_access", id, map[string]any{
		"assigned_projects": len(assignedProjects),
		"permissions":       permissions,
	})
	s.revokeSessions(ctx, id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "principal",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit principal mutation", slog.Any("error", err))
	}
}

func (s *Service) revokeSessions(ctx context.Context, principalID string) {
	if s.revoker == nil {
		return
	}
	if err := s.revoker.EnqueueSessionRevoke(ctx, principalID); err != nil && s.logger != nil {
		s.logger.Error("enqueue session revoke", slog.String("principal_id", principalID), slog.Any("error", err))
	}
}

func validateGrants(permissions []string) error {
	registered := make(map[authz.Flag]struct{})
	for _, f := range authz.Flags() {
		registered[f] = struct{}{}
	}
	for _, raw := range permissions {
		key := authz.Flag(strings.ToLower(strings.TrimSpace(raw)))
		if _, ok := registered[key]; !ok {
			return fmt.Errorf("%w: unknown permission %q", httpx.ErrValidation, raw)
		}
	}
	return nil
}

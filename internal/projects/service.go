package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
)

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Project, error)
	ListAll(ctx context.Context) ([]Project, error)
	ListByIDs(ctx context.Context, ids []string) ([]Project, error)
	ListInvolving(ctx context.Context, principalID string) ([]Project, error)
	Create(ctx context.Context, p Project) (Project, error)
	AddMember(ctx context.Context, projectID, principalID, role string) error
}

// Service handles project business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListVisible returns the projects the resolved principal may see,
// narrowed by the project access scope before any row leaves the store.
func (s *Service) ListVisible(ctx context.Context, set authz.PermissionSet) ([]Project, error) {
	if set.Has(authz.FlagAdminAccess) || set.ProjectAccess == authz.AccessAll {
		return s.repo.ListAll(ctx)
	}
	if set.ProjectAccess == authz.AccessAssignedOnly {
		return s.repo.ListByIDs(ctx, set.AssignedProjectIDs())
	}
	return s.repo.ListInvolving(ctx, set.PrincipalID)
}

// Get returns one project. Access has already been decided by the guard.
func (s *Service) Get(ctx context.Context, id string) (Project, error) {
	return s.repo.Get(ctx, id)
}

// Create provisions a new project owned by the acting principal.
func (s *Service) Create(ctx context.Context, actorID string, p Project) (Project, error) {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	p.Name = strings.TrimSpace(p.Name)
	if p.Code == "" || p.Name == "" {
		return Project{}, fmt.Errorf("%w: code and name required", httpx.ErrValidation)
	}
	if p.Status == "" {
		p.Status = StatusPlanning
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedBy = actorID
	if p.ManagerID == "" {
		p.ManagerID = actorID
	}
	return s.repo.Create(ctx, p)
}

// AddMember attaches a principal to a project.
func (s *Service) AddMember(ctx context.Context, projectID, principalID, role string) error {
	if role == "" {
		role = "member"
	}
	return s.repo.AddMember(ctx, projectID, principalID, role)
}

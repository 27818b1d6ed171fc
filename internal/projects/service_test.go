package projects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
)

type memoryRepo struct {
	projects map[string]Project
	members  map[string][]Member
}

func newMemoryRepo(projects ...Project) *memoryRepo {
	repo := &memoryRepo{projects: make(map[string]Project), members: make(map[string][]Member)}
	for _, p := range projects {
		repo.projects[p.ID] = p
	}
	return repo
}

func (r *memoryRepo) Get(_ context.Context, id string) (Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return Project{}, httpx.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListAll(_ context.Context) ([]Project, error) {
	out := make([]Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) ListByIDs(_ context.Context, ids []string) ([]Project, error) {
	var out []Project
	for _, id := range ids {
		if p, ok := r.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListInvolving(_ context.Context, principalID string) ([]Project, error) {
	var out []Project
	for id, p := range r.projects {
		if p.CreatedBy == principalID || p.ManagerID == principalID {
			out = append(out, p)
			continue
		}
		for _, m := range r.members[id] {
			if m.PrincipalID == principalID {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) Create(_ context.Context, p Project) (Project, error) {
	r.projects[p.ID] = p
	return p, nil
}

func (r *memoryRepo) AddMember(_ context.Context, projectID, principalID, role string) error {
	r.members[projectID] = append(r.members[projectID], Member{ProjectID: projectID, PrincipalID: principalID, Role: role})
	return nil
}

func resolveAs(t *testing.T, p authz.Principal) authz.PermissionSet {
	t.Helper()
	return authz.DefaultCatalog().Resolve(p)
}

func TestListVisibleScopes(t *testing.T) {
	repo := newMemoryRepo(
		Project{ID: "P1", Code: "TWR-A", Name: "Tower A", CreatedBy: "t1"},
		Project{ID: "P2", Code: "TWR-B", Name: "Tower B", ManagerID: "t1"},
		Project{ID: "P3", Code: "TWR-C", Name: "Tower C", CreatedBy: "other"},
	)
	require.NoError(t, repo.AddMember(context.Background(), "P3", "t2", "member"))
	svc := NewService(repo)

	// access-all roles see every project.
	got, err := svc.ListVisible(context.Background(), resolveAs(t, authz.Principal{ID: "pm", RoleKey: authz.RoleProjectManager}))
	require.NoError(t, err)
	require.Len(t, got, 3)

	// assigned_only sees exactly the assignment list.
	got, err = svc.ListVisible(context.Background(), resolveAs(t, authz.Principal{
		ID: "cli", RoleKey: authz.RoleClient, AssignedProjects: []string{"P2"},
	}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "P2", got[0].ID)

	// none scope falls back to involvement.
	got, err = svc.ListVisible(context.Background(), resolveAs(t, authz.Principal{ID: "t1", RoleKey: authz.RoleTeamMember}))
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = svc.ListVisible(context.Background(), resolveAs(t, authz.Principal{ID: "t2", RoleKey: authz.RoleTeamMember}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "P3", got[0].ID)
}

func TestCreateNormalizesAndDefaults(t *testing.T) {
	svc := NewService(newMemoryRepo())

	p, err := svc.Create(context.Background(), "pm1", Project{Code: " twr-a ", Name: " Tower A "})
	require.NoError(t, err)
	require.Equal(t, "TWR-A", p.Code)
	require.Equal(t, "Tower A", p.Name)
	require.Equal(t, StatusPlanning, p.Status)
	require.Equal(t, "pm1", p.CreatedBy)
	require.Equal(t, "pm1", p.ManagerID)
	require.NotEmpty(t, p.ID)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), "pm1", Project{Code: "", Name: "Tower"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), "pm1", Project{Code: "TWR", Name: "  "})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAddMemberDefaultsRole(t *testing.T) {
	repo := newMemoryRepo(Project{ID: "P1"})
	svc := NewService(repo)

	require.NoError(t, svc.AddMember(context.Background(), "P1", "t1", ""))
	require.Equal(t, "member", repo.members["P1"][0].Role)
}

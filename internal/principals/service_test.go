package principals

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/require"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
)

type memoryRepo struct {
	byID   map[string]Principal
	hashes map[string]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[string]Principal), hashes: make(map[string]string)}
}

func (r *memoryRepo) Get(_ context.Context, id string) (Principal, error) {
	p, ok := r.byID[id]
	if !ok {
		return Principal{}, httpx.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(_ context.Context) ([]Principal, error) {
	out := make([]Principal, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Create(_ context.Context, p Principal, passwordHash string) (Principal, error) {
	r.byID[p.ID] = p
	r.hashes[p.ID] = passwordHash
	return p, nil
}

func (r *memoryRepo) SetRole(_ context.Context, id, roleKey string) error {
	p, ok := r.byID[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.RoleKey = roleKey
	r.byID[id] = p
	return nil
}

func (r *memoryRepo) SetActive(_ context.Context, id string, active bool) error {
	p, ok := r.byID[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.IsActive = active
	r.byID[id] = p
	return nil
}

func (r *memoryRepo) SetCostOverrides(_ context.Context, id string, view, edit *bool) error {
	p, ok := r.byID[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.CanViewCosts = view
	p.CanEditCosts = edit
	r.byID[id] = p
	return nil
}

func (r *memoryRepo) ReplaceAccess(_ context.Context, id string, assignedProjects, permissions []string) error {
	p, ok := r.byID[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.AssignedProjects = assignedProjects
	p.Permissions = permissions
	r.byID[id] = p
	return nil
}

type stubRevoker struct {
	revoked []string
}

func (s *stubRevoker) EnqueueSessionRevoke(_ context.Context, principalID string) error {
	s.revoked = append(s.revoked, principalID)
	return nil
}

func newTestService(repo RepositoryPort, revoker SessionRevoker) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, authz.DefaultCatalog(), nil, revoker, logger)
}

func TestCreatePrincipal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &stubRevoker{})

	created, err := svc.Create(context.Background(), "admin1", Principal{
		Email:   " Site.Lead@Example.COM ",
		Name:    "Site Lead",
		RoleKey: authz.RoleTeamMember,
	}, "hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "site.lead@example.com", created.Email)
	require.True(t, created.IsActive)

	hash := repo.hashes[created.ID]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2hunter2")))
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &stubRevoker{})

	_, err := svc.Create(context.Background(), "admin1", Principal{
		Email:   "x@example.com",
		RoleKey: "superuser",
	}, "password123")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateRejectsUnknownGrant(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &stubRevoker{})

	_, err := svc.Create(context.Background(), "admin1", Principal{
		Email:       "x@example.com",
		RoleKey:     authz.RoleTeamMember,
		Permissions: []string{"launch_rockets"},
	}, "password123")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestChangeRoleRevokesSessions(t *testing.T) {
	repo := newMemoryRepo()
	revoker := &stubRevoker{}
	svc := newTestService(repo, revoker)

	created, err := svc.Create(context.Background(), "admin1", Principal{
		Email:   "x@example.com",
		RoleKey: authz.RoleProjectManager,
	}, "password123")
	require.NoError(t, err)

	require.NoError(t, svc.ChangeRole(context.Background(), "admin1", created.ID, authz.RoleClient))
	require.Equal(t, authz.RoleClient, repo.byID[created.ID].RoleKey)
	require.Equal(t, []string{created.ID}, revoker.revoked)
}

func TestChangeRoleUnknownRole(t *testing.T) {
	revoker := &stubRevoker{}
	svc := newTestService(newMemoryRepo(), revoker)

	err := svc.ChangeRole(context.Background(), "admin1", "p1", "warlord")
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, revoker.revoked)
}

func TestSetActiveRevokesOnlyOnDeactivation(t *testing.T) {
	repo := newMemoryRepo()
	revoker := &stubRevoker{}
	svc := newTestService(repo, revoker)

	created, err := svc.Create(context.Background(), "admin1", Principal{
		Email:   "x@example.com",
		RoleKey: authz.RoleTeamMember,
	}, "password123")
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(context.Background(), "admin1", created.ID, true))
	require.Empty(t, revoker.revoked)

	require.NoError(t, svc.SetActive(context.Background(), "admin1", created.ID, false))
	require.Equal(t, []string{created.ID}, revoker.revoked)
	require.False(t, repo.byID[created.ID].IsActive)
}

func TestReplaceAccessValidatesGrants(t *testing.T) {
	repo := newMemoryRepo()
	revoker := &stubRevoker{}
	svc := newTestService(repo, revoker)

	created, err := svc.Create(context.Background(), "admin1", Principal{
		Email:   "x@example.com",
		RoleKey: authz.RoleClient,
	}, "password123")
	require.NoError(t, err)

	err = svc.ReplaceAccess(context.Background(), "admin1", created.ID, []string{"P1"}, []string{"not_a_flag"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	err = svc.ReplaceAccess(context.Background(), "admin1", created.ID, []string{"P1"}, []string{"export_reports"})
	require.NoError(t, err)
	require.Equal(t, []string{"P1"}, repo.byID[created.ID].AssignedProjects)
	require.Equal(t, []string{created.ID}, revoker.revoked)
}

package projects

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/shared"
)

type trustedStoreStub struct {
	principals map[string]authz.Principal
}

func (s *trustedStoreStub) PrincipalByID(_ context.Context, id string) (authz.Principal, error) {
	p, ok := s.principals[id]
	if !ok {
		return authz.Principal{}, authz.ErrPrincipalNotFound
	}
	return p, nil
}

type membershipStub struct {
	facts map[string]authz.ProjectFacts
}

func (s *membershipStub) ProjectFacts(_ context.Context, projectID string) (authz.ProjectFacts, error) {
	return s.facts[projectID], nil
}

func newProjectsRouter(t *testing.T, repo RepositoryPort, principals map[string]authz.Principal) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := authz.NewGuard(authz.DefaultCatalog(), &trustedStoreStub{principals: principals}, &membershipStub{}, logger)
	mw := authz.Middleware{Guard: guard, Logger: logger}
	handler := NewHandler(logger, NewService(repo), guard, mw)

	r := chi.NewRouter()
	r.Route("/projects", func(sr chi.Router) {
		handler.MountRoutes(sr)
		sr.Route("/{projectID}", func(pr chi.Router) {
			pr.Use(mw.RequireProject("projectID"))
			handler.MountProjectRoutes(pr)
		})
	})
	return r
}

func projectRequest(method, path, principalID, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if principalID != "" {
		sess := &shared.Session{}
		sess.SetUser(principalID)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	return req
}

func TestListRedactsCostsForClients(t *testing.T) {
	repo := newMemoryRepo(Project{ID: "P1", Code: "TWR-A", Name: "Tower A", Budget: 125000, ActualCost: 90000})
	router := newProjectsRouter(t, repo, map[string]authz.Principal{
		"cli": {ID: "cli", RoleKey: authz.RoleClient, AssignedProjects: []string{"P1"}},
		"pm":  {ID: "pm", RoleKey: authz.RoleProjectManager},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, projectRequest(http.MethodGet, "/projects", "cli", ""))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Projects []map[string]any `json:"projects"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Projects, 1)
	require.Equal(t, "Tower A", body.Projects[0]["name"])
	require.Nil(t, body.Projects[0]["budget"])
	require.Nil(t, body.Projects[0]["actual_cost"])
	require.Nil(t, body.Projects[0]["budget_display"])

	// A cost-visible role sees the same row unredacted.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, projectRequest(http.MethodGet, "/projects", "pm", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, 125000.0, body.Projects[0]["budget"])
	require.Equal(t, "125,000.00", body.Projects[0]["budget_display"])
}

func TestGetProjectGatedByScope(t *testing.T) {
	repo := newMemoryRepo(Project{ID: "P1", Code: "TWR-A", Name: "Tower A"})
	router := newProjectsRouter(t, repo, map[string]authz.Principal{
		"cli": {ID: "cli", RoleKey: authz.RoleClient, AssignedProjects: []string{"P2"}},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, projectRequest(http.MethodGet, "/projects/P1", "cli", ""))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateRequiresFlag(t *testing.T) {
	repo := newMemoryRepo()
	router := newProjectsRouter(t, repo, map[string]authz.Principal{
		"tm": {ID: "tm", RoleKey: authz.RoleTeamMember},
		"pm": {ID: "pm", RoleKey: authz.RoleProjectManager},
	})

	payload := `{"code":"TWR-A","name":"Tower A"}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, projectRequest(http.MethodPost, "/projects", "tm", payload))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, projectRequest(http.MethodPost, "/projects", "pm", payload))
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestCreateBudgetNeedsCostEdit(t *testing.T) {
	repo := newMemoryRepo()
	router := newProjectsRouter(t, repo, map[string]authz.Principal{
		// Project managers hold create_projects but not cost editing.
		"pm":   {ID: "pm", RoleKey: authz.RoleProjectManager},
		"tmgr": {ID: "tmgr", RoleKey: authz.RoleTechnicalManager},
	})

	payload := `{"code":"TWR-A","name":"Tower A","budget":50000}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, projectRequest(http.MethodPost, "/projects", "pm", payload))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, projectRequest(http.MethodPost, "/projects", "tmgr", payload))
	require.Equal(t, http.StatusCreated, rr.Code)

	var created map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	require.Equal(t, 50000.0, created["budget"])
}

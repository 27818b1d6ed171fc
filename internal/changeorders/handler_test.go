package changeorders

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

type membershipStub struct{}

func (membershipStub) ProjectFacts(context.Context, string) (authz.ProjectFacts, error) {
	return authz.ProjectFacts{}, nil
}

func newChangeOrderRouter(t *testing.T, repo RepositoryPort, principals map[string]authz.Principal) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := authz.NewGuard(authz.DefaultCatalog(), &trustedStoreStub{principals: principals}, membershipStub{}, logger)
	mw := authz.Middleware{Guard: guard, Logger: logger}
	handler := NewHandler(logger, NewService(repo), guard, mw)

	r := chi.NewRouter()
	r.Route("/projects/{projectID}/change-orders", func(sr chi.Router) {
		handler.MountRoutes(sr)
	})
	return r
}

func doRequest(router http.Handler, method, path, principalID, body string) *httptest.ResponseRecorder {
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
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRaiseRequiresEditFlag(t *testing.T) {
	router := newChangeOrderRouter(t, newMemoryRepo(), map[string]authz.Principal{
		"tm": {ID: "tm", RoleKey: authz.RoleTeamMember},
		"pm": {ID: "pm", RoleKey: authz.RoleProjectManager},
	})

	payload := `{"description":"extra rebar on level 3"}`

	rr := doRequest(router, http.MethodPost, "/projects/P1/change-orders", "tm", payload)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(router, http.MethodPost, "/projects/P1/change-orders", "pm", payload)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestRaiseWithAmountNeedsCostEdit(t *testing.T) {
	router := newChangeOrderRouter(t, newMemoryRepo(), map[string]authz.Principal{
		"pm":   {ID: "pm", RoleKey: authz.RoleProjectManager},
		"tmgr": {ID: "tmgr", RoleKey: authz.RoleTechnicalManager},
	})

	payload := `{"description":"extra rebar on level 3","amount":1500}`

	// edit_change_orders alone is not enough to price the change.
	rr := doRequest(router, http.MethodPost, "/projects/P1/change-orders", "pm", payload)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(router, http.MethodPost, "/projects/P1/change-orders", "tmgr", payload)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestDecideRequiresApproveFlag(t *testing.T) {
	repo := newMemoryRepo()
	router := newChangeOrderRouter(t, repo, map[string]authz.Principal{
		"pm":   {ID: "pm", RoleKey: authz.RoleProjectManager},
		"tmgr": {ID: "tmgr", RoleKey: authz.RoleTechnicalManager},
	})

	co, err := NewService(repo).Raise(context.Background(), "pm", "P1", "extra rebar", 0)
	require.NoError(t, err)

	// Editing does not imply approving.
	rr := doRequest(router, http.MethodPost, "/projects/P1/change-orders/"+co.ID+"/decision", "pm", `{"approve":true}`)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(router, http.MethodPost, "/projects/P1/change-orders/"+co.ID+"/decision", "tmgr", `{"approve":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var decided map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&decided))
	require.Equal(t, StatusApproved, decided["status"])
	require.Equal(t, "tmgr", decided["approved_by"])
}

func TestDecideTwiceIsConflict(t *testing.T) {
	repo := newMemoryRepo()
	router := newChangeOrderRouter(t, repo, map[string]authz.Principal{
		"tmgr": {ID: "tmgr", RoleKey: authz.RoleTechnicalManager},
	})

	co, err := NewService(repo).Raise(context.Background(), "tmgr", "P1", "extra rebar", 0)
	require.NoError(t, err)

	rr := doRequest(router, http.MethodPost, "/projects/P1/change-orders/"+co.ID+"/decision", "tmgr", `{"approve":false}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, http.MethodPost, "/projects/P1/change-orders/"+co.ID+"/decision", "tmgr", `{"approve":true}`)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestListRedactsAmountWithoutCostView(t *testing.T) {
	repo := newMemoryRepo()
	router := newChangeOrderRouter(t, repo, map[string]authz.Principal{
		"cli": {ID: "cli", RoleKey: authz.RoleClient, AssignedProjects: []string{"P1"}},
	})

	_, err := NewService(repo).Raise(context.Background(), "pm", "P1", "extra rebar", 1500)
	require.NoError(t, err)

	rr := doRequest(router, http.MethodGet, "/projects/P1/change-orders", "cli", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		ChangeOrders []map[string]any `json:"change_orders"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.ChangeOrders, 1)
	require.Nil(t, body.ChangeOrders[0]["amount"])
	require.Equal(t, "extra rebar", body.ChangeOrders[0]["description"])
}

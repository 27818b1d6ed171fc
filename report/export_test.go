package report

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/changeorders"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/projects"
	"github.com/formwork-pm/formwork/internal/shared"
)

type projectRepoStub struct {
	project projects.Project
}

func (s *projectRepoStub) Get(_ context.Context, id string) (projects.Project, error) {
	if s.project.ID != id {
		return projects.Project{}, httpx.ErrNotFound
	}
	return s.project, nil
}

func (s *projectRepoStub) ListAll(context.Context) ([]projects.Project, error) {
	return []projects.Project{s.project}, nil
}

func (s *projectRepoStub) ListByIDs(context.Context, []string) ([]projects.Project, error) {
	return nil, nil
}

func (s *projectRepoStub) ListInvolving(context.Context, string) ([]projects.Project, error) {
	return nil, nil
}

func (s *projectRepoStub) Create(_ context.Context, p projects.Project) (projects.Project, error) {
	return p, nil
}

func (s *projectRepoStub) AddMember(context.Context, string, string, string) error {
	return nil
}

type orderRepoStub struct {
	orders []changeorders.ChangeOrder
}

func (s *orderRepoStub) ListByProject(context.Context, string) ([]changeorders.ChangeOrder, error) {
	return s.orders, nil
}

func (s *orderRepoStub) Get(context.Context, string) (changeorders.ChangeOrder, error) {
	return changeorders.ChangeOrder{}, shared.ErrNotFound
}

func (s *orderRepoStub) Create(_ context.Context, co changeorders.ChangeOrder) (changeorders.ChangeOrder, error) {
	return co, nil
}

func (s *orderRepoStub) SetDecision(context.Context, string, string, string) (changeorders.ChangeOrder, error) {
	return changeorders.ChangeOrder{}, shared.ErrNotFound
}

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

func newExportRouter(t *testing.T, gotenbergURL string, principals map[string]authz.Principal) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := authz.NewGuard(authz.DefaultCatalog(), &trustedStoreStub{principals: principals}, membershipStub{}, logger)

	projectSvc := projects.NewService(&projectRepoStub{project: projects.Project{
		ID: "P1", Code: "TWR-A", Name: "Tower A", Status: "active", Budget: 125000, ActualCost: 90000,
	}})
	orderSvc := changeorders.NewService(&orderRepoStub{orders: []changeorders.ChangeOrder{
		{ID: "co1", ProjectID: "P1", Number: 1, Description: "extra rebar", Amount: 1500, Status: "approved"},
	}})

	handler := NewHandler(logger, NewClient(gotenbergURL), projectSvc, orderSvc, guard)
	r := chi.NewRouter()
	r.Route("/projects/{projectID}", func(sr chi.Router) {
		handler.MountRoutes(sr)
	})
	return r
}

func exportRequest(principalID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/projects/P1/export", nil)
	sess := &shared.Session{}
	sess.SetUser(principalID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestExportRendersPDF(t *testing.T) {
	var received atomic.Value
	gotenberg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received.Store(string(body))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 2048))
	}))
	t.Cleanup(gotenberg.Close)

	router := newExportRouter(t, gotenberg.URL, map[string]authz.Principal{
		"pm": {ID: "pm", RoleKey: authz.RoleProjectManager},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, exportRequest("pm"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "TWR-A-summary.pdf")
	require.Len(t, rr.Body.Bytes(), 2048)

	// The multipart body carried cost figures for a cost-visible caller.
	require.Contains(t, received.Load().(string), "125,000.00")
}

func TestExportOmitsCostsWithoutVisibility(t *testing.T) {
	var received atomic.Value
	gotenberg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received.Store(string(body))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 2048))
	}))
	t.Cleanup(gotenberg.Close)

	router := newExportRouter(t, gotenberg.URL, map[string]authz.Principal{
		"cli": {ID: "cli", RoleKey: authz.RoleClient, AssignedProjects: []string{"P1"}, Permissions: []string{"export_reports"}},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, exportRequest("cli"))
	require.Equal(t, http.StatusOK, rr.Code)

	body := received.Load().(string)
	require.NotContains(t, body, "125,000.00")
	require.NotContains(t, body, "1,500.00")
	require.Contains(t, body, "extra rebar")
}

func TestExportRendererDown(t *testing.T) {
	gotenberg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(gotenberg.Close)

	router := newExportRouter(t, gotenberg.URL, map[string]authz.Principal{
		"pm": {ID: "pm", RoleKey: authz.RoleProjectManager},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, exportRequest("pm"))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRenderHTMLRetriesOnce(t *testing.T) {
	var calls int32
	gotenberg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_, _ = io.Copy(io.Discard, r.Body)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 2048))
	}))
	t.Cleanup(gotenberg.Close)

	client := NewClient(gotenberg.URL)
	pdf, err := client.RenderHTML(context.Background(), "<html></html>")
	require.NoError(t, err)
	require.Len(t, pdf, 2048)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRenderHTMLRejectsTinyPDF(t *testing.T) {
	gotenberg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("%PDF"))
	}))
	t.Cleanup(gotenberg.Close)

	client := NewClient(gotenberg.URL)
	_, err := client.RenderHTML(context.Background(), "<html></html>")
	require.ErrorIs(t, err, ErrPDFTooSmall)
}

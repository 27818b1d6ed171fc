package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/formwork-pm/formwork/internal/auth"
	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/changeorders"
	"github.com/formwork-pm/formwork/internal/drawings"
	"github.com/formwork-pm/formwork/internal/observability"
	"github.com/formwork-pm/formwork/internal/principals"
	"github.com/formwork-pm/formwork/internal/projects"
	"github.com/formwork-pm/formwork/internal/shared"
	"github.com/formwork-pm/formwork/jobs"
	"github.com/formwork-pm/formwork/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	SessionManager      *shared.SessionManager
	CSRFManager         *shared.CSRFManager
	AuthHandler         *auth.Handler
	CatalogHandler      *authz.CatalogHandler
	PrincipalsHandler   *principals.Handler
	ProjectsHandler     *projects.Handler
	ChangeOrdersHandler *changeorders.Handler
	DrawingsHandler     *drawings.Handler
	ReportHandler       *report.Handler
	JobHandler          *jobs.Handler
	AuthzMiddleware     authz.Middleware
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Formwork defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Tighter limit on credential guessing.
			r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			params.AuthHandler.MountRoutes(r)
		})

		r.Route("/authz", params.CatalogHandler.MountRoutes)
		r.Route("/principals", params.PrincipalsHandler.MountRoutes)

		r.Route("/projects", func(r chi.Router) {
			params.ProjectsHandler.MountRoutes(r)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Use(params.AuthzMiddleware.RequireProject("projectID"))
				params.ProjectsHandler.MountProjectRoutes(r)
				r.Route("/change-orders", params.ChangeOrdersHandler.MountRoutes)
				r.Route("/drawings", params.DrawingsHandler.MountRoutes)
				if params.ReportHandler != nil {
					r.Group(func(r chi.Router) {
						r.Use(params.AuthzMiddleware.Require(authz.FlagExportReports))
						params.ReportHandler.MountRoutes(r)
					})
				}
			})
		})

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.AuthzMiddleware.Require(authz.FlagAdminAccess))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}

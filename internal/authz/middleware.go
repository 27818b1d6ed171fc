package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// DecisionRecorder counts allow/deny outcomes, typically backed by the
// Prometheus metrics registry.
type DecisionRecorder interface {
	AuthzDecision(allowed bool, reason string)
}

// Middleware wires guard decisions into chi routes.
type Middleware struct {
	Guard   *Guard
	Logger  *slog.Logger
	Metrics DecisionRecorder
}

// Require allows the request through when the principal carries at least
// one of the given flags.
func (m Middleware) Require(flags ...Flag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(flags) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			set, ok := m.resolve(w, r)
			if !ok {
				return
			}
			for _, f := range flags {
				if set.Has(f) {
					m.record(true, string(f))
					next.ServeHTTP(w, r)
					return
				}
			}
			m.record(false, string(flags[0]))
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

// RequireLevel allows the request through when the resolved role level
// meets the given ordinal. Used for coarse "at least project manager"
// gating; fine-grained checks use flags.
func (m Middleware) RequireLevel(level int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set, ok := m.resolve(w, r)
			if !ok {
				return
			}
			if !set.AtLeast(level) {
				m.record(false, "level")
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			m.record(true, "level")
			next.ServeHTTP(w, r)
		})
	}
}

// RequireProject gates a route on project access, reading the project id
// from the named chi URL parameter.
func (m Middleware) RequireProject(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID, ok := m.principalID(r)
			if !ok {
				m.record(false, "project")
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			projectID := strings.TrimSpace(chi.URLParam(r, param))
			allowed, err := m.Guard.CanAccessProject(r.Context(), principalID, projectID)
			if err != nil {
				m.fail(w, err)
				return
			}
			if !allowed {
				m.record(false, "project")
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			m.record(true, "project")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) resolve(w http.ResponseWriter, r *http.Request) (PermissionSet, bool) {
	principalID, ok := m.principalID(r)
	if !ok {
		m.record(false, "anonymous")
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return PermissionSet{}, false
	}
	set, err := m.Guard.Resolve(r.Context(), principalID)
	if err != nil {
		m.fail(w, err)
		return PermissionSet{}, false
	}
	return set, true
}

func (m Middleware) principalID(r *http.Request) (string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return "", false
	}
	id := strings.TrimSpace(sess.User())
	return id, id != ""
}

func (m Middleware) fail(w http.ResponseWriter, err error) {
	if m.Logger != nil {
		m.Logger.Error("authz guard", slog.Any("error", err))
	}
	m.record(false, "store")
	if errors.Is(err, ErrStoreUnavailable) {
		httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", "authorization store unreachable, retry")
		return
	}
	httpx.RespondError(w, err)
}

func (m Middleware) record(allowed bool, reason string) {
	if m.Metrics != nil {
		m.Metrics.AuthzDecision(allowed, reason)
	}
}

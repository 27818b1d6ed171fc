package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestAuthzDecisionCounter(t *testing.T) {
	m := NewMetrics()

	m.AuthzDecision(true, "create_projects")
	m.AuthzDecision(true, "create_projects")
	m.AuthzDecision(false, "manage_users")

	require.Equal(t, 2.0, testutil.ToFloat64(m.authzDecisions.WithLabelValues("allow", "create_projects")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.authzDecisions.WithLabelValues("deny", "manage_users")))
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewMetrics()

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/brew", nil))

	require.Equal(t, http.StatusTeapot, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/brew", "418")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	m.AuthzDecision(true, "x")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/shepherd/pkg/health"
)

// fakeChecker is a canned health checker for handler tests
type fakeChecker struct {
	name    string
	healthy bool
}

func (f *fakeChecker) Name() string { return f.name }

func (f *fakeChecker) Check(_ context.Context) health.Result {
	return health.Result{
		Healthy:   f.healthy,
		Message:   "fake",
		CheckedAt: time.Now(),
	}
}

func newTestServer(state *health.State) *Server {
	return NewServer(state, Options{
		Version:     "test",
		CORSOrigins: []string{"*"},
	})
}

func doRequest(t *testing.T, s *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHandleLive_AlwaysOK(t *testing.T) {
	state := health.NewState()
	s := newTestServer(state)

	// Liveness does not care about readiness
	rr := doRequest(t, s, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "test", resp.Version)

	// Still alive while draining
	state.MarkReady()
	state.MarkNotReady()
	rr = doRequest(t, s, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleReady_GateClosed(t *testing.T) {
	s := newTestServer(health.NewState())

	rr := doRequest(t, s, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "not ready", resp.Status)
}

func TestHandleReady_GateOpen(t *testing.T) {
	state := health.NewState()
	s := newTestServer(state)

	state.MarkReady()

	rr := doRequest(t, s, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
}

func TestHandleReady_ClosesAgainOnDrain(t *testing.T) {
	state := health.NewState()
	s := newTestServer(state)

	state.MarkReady()
	state.MarkNotReady()

	rr := doRequest(t, s, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleReady_UsesLastKnownChecks(t *testing.T) {
	state := health.NewState(&fakeChecker{name: "dependency", healthy: false})
	s := newTestServer(state)
	state.MarkReady()

	// No check has run yet, so readiness sees only the open gate
	rr := doRequest(t, s, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)

	// Once the failing check has run, readiness reflects it
	state.RunChecks(context.Background())
	rr = doRequest(t, s, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Checks["dependency"].Status)
}

func TestHandleHealth_RunsChecks(t *testing.T) {
	state := health.NewState(
		&fakeChecker{name: "memory", healthy: true},
		&fakeChecker{name: "dependency", healthy: false},
	)
	s := newTestServer(state)

	rr := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, "healthy", resp.Checks["memory"].Status)
	assert.Equal(t, "unhealthy", resp.Checks["dependency"].Status)
}

func TestHandleHealth_AllPassing(t *testing.T) {
	state := health.NewState(
		&fakeChecker{name: "memory", healthy: true},
		&fakeChecker{name: "sched_lag", healthy: true},
	)
	s := newTestServer(state)

	rr := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Uptime)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(health.NewState())

	rr := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "shepherd_")
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/shepherd/pkg/health"
)

func TestRequestID_HonorsClientHeader(t *testing.T) {
	s := newTestServer(health.NewState())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "client-supplied-id", rr.Header().Get("X-Request-ID"))
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	s := newTestServer(health.NewState())

	rr := doRequest(t, s, http.MethodGet, "/health/live", "")

	id := rr.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "generated request id should be a UUID")
}

func TestRateLimit_AppliesToAPIRoutes(t *testing.T) {
	s := NewServer(health.NewState(), Options{
		Version:     "test",
		CORSOrigins: []string{"*"},
		RateLimit:   2,
	})

	// httptest requests share a RemoteAddr, so they share a limit key
	for i := 0; i < 2; i++ {
		rr := doRequest(t, s, http.MethodGet, "/api/v1/users", "")
		require.Equal(t, http.StatusOK, rr.Code, "request %d should pass", i+1)
	}

	rr := doRequest(t, s, http.MethodGet, "/api/v1/users", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Probe endpoints stay reachable regardless
	rr = doRequest(t, s, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_PreflightAllowed(t *testing.T) {
	s := newTestServer(health.NewState())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Less(t, rr.Code, 300)
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

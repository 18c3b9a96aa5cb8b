package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthz", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","workers":4,"shutting_down":false}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, int64(4), status.Workers)
	assert.False(t, status.ShuttingDown)
}

func TestClientStatusRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"broken"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	_, err := c.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClientReadyDecodes503Body(t *testing.T) {
	// A draining worker answers 503 with full check details; that is
	// a valid probe result, not a transport failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health/ready", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{
			"status": "not ready",
			"timestamp": "2025-01-01T00:00:00Z",
			"checks": {
				"memory": {"status": "healthy", "message": "heap at 1.2% of reserved (limit 90%)", "last_check_time": "2025-01-01T00:00:00Z"}
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	probe, err := c.Ready(context.Background())
	require.NoError(t, err)
	assert.False(t, probe.OK())
	assert.Equal(t, http.StatusServiceUnavailable, probe.Code)
	assert.Equal(t, "not ready", probe.Status)
	require.Contains(t, probe.Checks, "memory")
	assert.Equal(t, "healthy", probe.Checks["memory"].Status)
}

func TestClientLiveOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health/live", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"alive","timestamp":"2025-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	probe, err := c.Live(context.Background())
	require.NoError(t, err)
	assert.True(t, probe.OK())
	assert.Equal(t, "alive", probe.Status)
}

func TestClientMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/metrics", r.URL.Path)
		_, _ = w.Write([]byte("shepherd_workers_live 4\n"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	text, err := c.Metrics(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "shepherd_workers_live")
}

func TestClientUnreachableHost(t *testing.T) {
	c := New("http://127.0.0.1:1").WithTimeout(500 * time.Millisecond)
	defer c.Close()

	_, err := c.Live(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach")
}

func TestClientTrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthz", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","workers":1,"shutting_down":false}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	defer c.Close()

	_, err := c.Status(context.Background())
	require.NoError(t, err)
}

package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDependencyChecker_HealthyEndpoint(t *testing.T) {
	// Create test HTTP server that returns 200 OK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	}))
	defer server.Close()

	checker := NewDependencyChecker(server.URL)

	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Duration <= 0 {
		t.Error("Expected positive duration")
	}
}

func TestDependencyChecker_UnhealthyEndpoint(t *testing.T) {
	// Create test HTTP server that returns 500 Internal Server Error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("error"))
	}))
	defer server.Close()

	checker := NewDependencyChecker(server.URL)

	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestDependencyChecker_NotConfigured(t *testing.T) {
	checker := NewDependencyChecker("")

	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy without a configured URL, got: %s", result.Message)
	}
	if result.Message != "no dependency configured" {
		t.Errorf("Unexpected message: %s", result.Message)
	}
}

func TestDependencyChecker_CustomStatusRange(t *testing.T) {
	// Create test HTTP server that returns 201 Created
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	// Accept only 200-299
	checker := NewDependencyChecker(server.URL).WithStatusRange(200, 299)

	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy for 201 status, got unhealthy: %s", result.Message)
	}
}

func TestDependencyChecker_CustomHeaders(t *testing.T) {
	// Create test HTTP server that checks for custom header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom-Header") != "test-value" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewDependencyChecker(server.URL).WithHeader("X-Custom-Header", "test-value")

	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy with custom header, got unhealthy: %s", result.Message)
	}
}

func TestDependencyChecker_Timeout(t *testing.T) {
	// Create test HTTP server that sleeps longer than timeout
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewDependencyChecker(server.URL).WithTimeout(50 * time.Millisecond)

	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy due to timeout, got healthy: %s", result.Message)
	}
}

func TestDependencyChecker_TCPEndpoint(t *testing.T) {
	// Listen on a real socket for the probe to connect to
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer listener.Close()

	checker := NewDependencyChecker("tcp://" + listener.Addr().String())

	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy TCP probe, got unhealthy: %s", result.Message)
	}
}

func TestDependencyChecker_TCPRefused(t *testing.T) {
	// Grab a port and release it so the connect is refused
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	checker := NewDependencyChecker("tcp://" + addr).WithTimeout(200 * time.Millisecond)

	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy TCP probe, got healthy: %s", result.Message)
	}
}

func TestDependencyChecker_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	// Create test HTTP server that always fails
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	checker := NewDependencyChecker(server.URL)

	// Three consecutive failures trip the breaker
	for i := 0; i < 3; i++ {
		result := checker.Check(context.Background())
		if result.Healthy {
			t.Fatalf("Expected unhealthy on attempt %d", i+1)
		}
		if !strings.Contains(result.Message, "probe failed") {
			t.Fatalf("Expected a probe failure while circuit closed, got: %s", result.Message)
		}
	}

	// The fourth probe must be rejected without touching the server
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Error("Expected unhealthy while circuit open")
	}
	if result.Message != "circuit open, probes suspended" {
		t.Errorf("Expected circuit-open message, got: %s", result.Message)
	}
}

func TestDependencyChecker_Name(t *testing.T) {
	checker := NewDependencyChecker("http://example.com")
	if checker.Name() != "dependency" {
		t.Errorf("Expected name dependency, got %s", checker.Name())
	}
}

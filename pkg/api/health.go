package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/cuemby/shepherd/pkg/health"
)

// HealthResponse represents the liveness check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckDetail `json:"checks"`
}

// CheckDetail is one named check in a probe response
type CheckDetail struct {
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	LastCheckTime time.Time `json:"last_check_time"`
}

// handleLive implements GET /health/live.
// Returns 200 whenever the process can respond at all.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// handleReady implements GET /health/ready.
// Returns 200 only when the readiness gate is open and every known
// check passes. Uses the last known check results rather than probing,
// since load balancers hit this endpoint constantly.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := s.health.Ready() && s.health.Healthy()

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checkDetails(s.health.Checks()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// handleHealth implements GET /health.
// Runs every checker synchronously and reports the aggregate.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.health.RunChecks(r.Context())

	healthy := true
	for _, result := range results {
		if !result.Healthy {
			healthy = false
			break
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Checks:    checkDetails(results),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func checkDetails(results map[string]health.Result) map[string]CheckDetail {
	details := make(map[string]CheckDetail, len(results))
	for name, result := range results {
		status := "healthy"
		if !result.Healthy {
			status = "unhealthy"
		}
		details[name] = CheckDetail{
			Status:        status,
			Message:       result.Message,
			LastCheckTime: result.CheckedAt,
		}
	}
	return details
}

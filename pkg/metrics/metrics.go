package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Supervisor metrics
	WorkersConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shepherd_workers_configured",
			Help: "Number of worker slots the supervisor was started with",
		},
	)

	WorkersLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shepherd_workers_live",
			Help: "Number of currently live worker processes",
		},
	)

	WorkerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_worker_restarts_total",
			Help: "Total number of worker respawns by slot and reason",
		},
		[]string{"slot", "reason"},
	)

	WorkerRestartsDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_worker_restarts_denied_total",
			Help: "Total number of respawns denied by the restart-rate governor",
		},
		[]string{"slot"},
	)

	WorkerHeartbeatAge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shepherd_worker_heartbeat_age_seconds",
			Help: "Seconds since the last heartbeat was received per slot",
		},
		[]string{"slot"},
	)

	LifecycleEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_lifecycle_events_total",
			Help: "Total number of lifecycle events by type",
		},
		[]string{"type"},
	)

	// Worker HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shepherd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Drain metrics
	OpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shepherd_open_connections",
			Help: "Number of tracked open connections on this worker",
		},
	)

	DrainState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shepherd_drain_state",
			Help: "Drain state (0=running, 1=draining, 2=closing, 3=terminated)",
		},
	)

	// Health metrics
	HealthCheckStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shepherd_health_check_status",
			Help: "Result of the last run per health check (1=healthy, 0=unhealthy)",
		},
		[]string{"check"},
	)

	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shepherd_health_check_duration_seconds",
			Help:    "Health check evaluation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"check"},
	)

	// Runtime metrics sampled by the collector
	SchedLagSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shepherd_sched_lag_seconds",
			Help: "Most recent cooperative scheduling lag sample",
		},
	)

	MemoryPressurePct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shepherd_memory_pressure_pct",
			Help: "Heap in use as a percentage of heap reserved",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(WorkersConfigured)
	prometheus.MustRegister(WorkersLive)
	prometheus.MustRegister(WorkerRestartsTotal)
	prometheus.MustRegister(WorkerRestartsDenied)
	prometheus.MustRegister(WorkerHeartbeatAge)
	prometheus.MustRegister(LifecycleEventsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(OpenConnections)
	prometheus.MustRegister(DrainState)
	prometheus.MustRegister(HealthCheckStatus)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(SchedLagSeconds)
	prometheus.MustRegister(MemoryPressurePct)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

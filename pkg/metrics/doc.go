/*
Package metrics provides Prometheus metrics collection and exposition
for Shepherd.

The metrics package defines all collectors as package-level variables
registered at init, a Timer helper for histogram observations, a
runtime sampler for scheduling lag and memory pressure, and the HTTP
handler serving the standard exposition format. Both processes expose
it: workers at GET /metrics on the serving port, the supervisor at
GET /metrics on its admin port.

# Architecture

	┌──────────────────── METRICS SYSTEM ────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐         │
	│  │       Package-Level Collectors              │         │
	│  │  - Registered once via init()               │         │
	│  │  - Gauges, counters, histograms             │         │
	│  │  - Safe for concurrent updates              │         │
	│  └──────────────────┬─────────────────────────┘         │
	│                     │                                    │
	│       supervisor ───┤               worker ──────┐      │
	│  control loop sets  │        middleware observes │      │
	│  worker gauges and  │        requests; drain and │      │
	│  restart counters   │        health set gauges   │      │
	│                     │                            │      │
	│  ┌──────────────────▼────────────────────────────▼──┐   │
	│  │              Prometheus Registry                  │   │
	│  └──────────────────┬───────────────────────────────┘   │
	│                     │                                    │
	│            GET /metrics (promhttp)                       │
	└──────────────────────────────────────────────────────────┘

# Metric Reference

Supervisor:

	shepherd_workers_configured          gauge    slots at startup
	shepherd_workers_live                gauge    live worker processes
	shepherd_worker_restarts_total       counter  by slot and reason (crash, watchdog, rolling)
	shepherd_worker_restarts_denied_total counter governor refusals by slot
	shepherd_worker_heartbeat_age_seconds gauge   per-slot heartbeat staleness
	shepherd_lifecycle_events_total      counter  broker events by type

Worker HTTP:

	shepherd_http_requests_total         counter  by method, route, status
	shepherd_http_request_duration_seconds histogram by method, route

Drain:

	shepherd_open_connections            gauge    tracked connection count
	shepherd_drain_state                 gauge    0 running to 3 terminated

Health:

	shepherd_health_check_status         gauge    1 healthy / 0 unhealthy per check
	shepherd_health_check_duration_seconds histogram per check

Runtime (sampled by the Collector):

	shepherd_sched_lag_seconds           gauge    cooperative scheduling lag
	shepherd_memory_pressure_pct         gauge    heap in use / heap reserved

# Usage

Updating metrics:

	metrics.WorkersLive.Set(float64(liveCount))
	metrics.WorkerRestartsTotal.WithLabelValues("3", "crash").Inc()

Timing an operation:

	timer := metrics.NewTimer()
	result := check.Check(ctx)
	timer.ObserveDurationVec(metrics.HealthCheckDuration, check.Name())

Running the sampler (worker processes):

	collector := metrics.NewCollector(15 * time.Second)
	collector.Start()
	defer collector.Stop()

Serving:

	router.Handle("/metrics", metrics.Handler())

# Alerting Examples

Worker capacity degraded:

	shepherd_workers_live < shepherd_workers_configured

Restart storm suppressed (governor gave up on a slot):

	increase(shepherd_worker_restarts_denied_total[5m]) > 0

Stuck drain (connections survive past the force timeout):

	shepherd_drain_state == 2 and shepherd_open_connections > 0

# Design Patterns

Package-Level Collectors:
  - Declared as vars, registered in init()
  - No registry plumbing through constructors
  - The default registry also exposes Go runtime and process metrics

Label Discipline:
  - slot labels are small integers (bounded by worker count)
  - route labels use the chi route pattern, never the raw URL path
  - status labels are the numeric status code class as sent

# See Also

  - Prometheus client: https://github.com/prometheus/client_golang
  - Exposition formats: https://prometheus.io/docs/instrumenting/exposition_formats/
*/
package metrics

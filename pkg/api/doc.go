/*
Package api provides the HTTP surface served by every Shepherd worker.

This package assembles the chi router that fronts a worker process: the
probe endpoints the load balancer and supervisor consume, the Prometheus
scrape endpoint, and a small demonstration user API that gives the worker
fleet real traffic to drain during shutdowns and rolling restarts.

# Architecture

	┌───────────────────────────────────────────────────────────────┐
	│                        chi Router                             │
	│                                                               │
	│  Global middleware (all routes, in order):                    │
	│    requestID → RealIP → accessLog → Recoverer → CORS          │
	│                                                               │
	│  ┌──────────────────────┐   ┌──────────────────────────────┐  │
	│  │  Probe endpoints     │   │  /api/v1 (rate limited,      │  │
	│  │  /health/live        │   │           metered)           │  │
	│  │  /health/ready       │   │  GET    /users               │  │
	│  │  /health             │   │  POST   /users               │  │
	│  │  /metrics            │   │  GET    /users/{id}          │  │
	│  └──────────┬───────────┘   │  PUT    /users/{id}          │  │
	│             │               │  DELETE /users/{id}          │  │
	│             ▼               └──────────────────────────────┘  │
	│        pkg/health                                             │
	└───────────────────────────────────────────────────────────────┘

# Probe Endpoints

## GET /health/live

Liveness. Answers 200 whenever the process can respond at all, draining
or not. A failing liveness probe means the process is gone or wedged,
nothing softer.

## GET /health/ready

Readiness. Answers 200 only when the readiness gate is open AND every
known check result passes; 503 otherwise. This is the endpoint the load
balancer polls, so it reads the last known check results instead of
probing dependencies on every hit. The response carries the check map
either way:

	{
	  "status": "ready",
	  "timestamp": "2026-03-14T10:21:05Z",
	  "checks": {
	    "memory":     {"status": "healthy", "message": "heap at 41.2% of reserved (limit 90%)", "last_check_time": "..."},
	    "sched_lag":  {"status": "healthy", "message": "scheduler lag 1.1ms (limit 150ms)", "last_check_time": "..."},
	    "dependency": {"status": "healthy", "message": "no dependency configured", "last_check_time": "..."}
	  }
	}

## GET /health

Diagnostics. Runs every checker synchronously and reports the fresh
aggregate: 200 when all pass, 503 when any fails. Meant for operators
and dashboards, not for tight probe loops.

## GET /metrics

Prometheus scrape endpoint, served by pkg/metrics.

# Middleware

  - requestID: tags each request with an id, honoring a client-supplied
    X-Request-ID, and echoes it on the response for correlation
  - RealIP (chi): trusts X-Forwarded-For so rate limit keys survive a
    proxy hop
  - accessLog: one structured zerolog line per request with method,
    path, status, bytes, duration, and the request id
  - Recoverer (chi): turns handler panics into 500s
  - CORS (go-chi/cors): configured from cors_origins
  - httprate.LimitByIP: per-client rate limiting on /api/v1 only; probe
    endpoints are exempt because the load balancer, the supervisor, and
    Prometheus all share the supervisor host's IP
  - httpMetrics: request counter and latency histogram labeled by the
    chi route pattern (never the raw path, which would explode
    cardinality on /users/{id})

# The User API

The /api/v1/users CRUD is intentionally boring: an in-memory,
per-process map guarded by a mutex. It exists so the lifecycle has real
requests to drain; workers do not share it, and it vanishes on respawn.
Request bodies are validated with go-playground/validator and encoded
with goccy/go-json.

# Usage

	state := health.NewState(checkers...)
	server := api.NewServer(state, api.Options{
		Version:     version,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
	})

	httpServer := &http.Server{Handler: server.Handler()}

# See Also

  - pkg/health: the state behind the probe endpoints
  - pkg/drain: closes this server's listener during shutdown
  - pkg/metrics: the registry behind /metrics
*/
package api

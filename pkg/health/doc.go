/*
Package health tracks per-worker readiness and liveness for Shepherd workers.

This package separates two questions that probes often conflate: "should this
process receive new traffic?" (readiness) and "is this process functioning?"
(liveness). Readiness is an explicit gate flipped by lifecycle code; liveness
is derived on demand from named checks. The external load balancer reacts to
the readiness probe; nothing in-process ever refuses a request.

# Architecture

The health system is a small state holder plus pluggable checkers:

	┌─────────────────────────────────────────────────────────────┐
	│                      Health State                           │
	│  • ready flag   (explicit gate, lifecycle-driven)           │
	│  • checks map   (named results, pull-based)                 │
	└─────┬───────────────────────────────────────────────────────┘
	      │ RunChecks(ctx)
	      ▼
	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Name() string                                             │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴────────┬─────────────┐
	    ▼             ▼             ▼
	┌─────────┐  ┌──────────┐  ┌────────────┐
	│ Memory  │  │ SchedLag │  │ Dependency │
	│ Checker │  │ Checker  │  │  Checker   │
	└─────────┘  └──────────┘  └────────────┘
	     │            │              │
	     ▼            ▼              ▼
	  heap vs     timer wakeup   HTTP / TCP
	  reserved    delay probe    via breaker

## Readiness Flow

 1. Worker process starts → State begins not ready
 2. Listener bound and serving → MarkReady()
 3. SIGTERM received → MarkNotReady() before anything else
 4. Load balancer sees the failing readiness probe → stops routing
 5. In-flight requests finish while readiness stays down

MarkReady and MarkNotReady are idempotent. A duplicate signal or a retried
startup path logs and transitions exactly once.

# Check Types

## Memory Check

Compares live heap against the heap reserved from the OS:

	Check Name: memory
	Configuration:
	├── MaxPct: failure threshold, percent (default 90)
	└── Source: runtime.ReadMemStats (HeapAlloc / HeapSys)

A process past the threshold keeps serving; the failing check surfaces on
/health and in metrics so operators see pressure before the OOM killer does.

## Scheduler Lag Check

Sleeps for a tiny quantum and measures how late the wakeup arrives:

	Check Name: sched_lag
	Configuration:
	├── Max: tolerated wakeup delay (default 150ms)
	└── Probe: 2ms timer, lag = observed - requested

Sustained lag means the scheduler cannot service timers on time, which is
what request latency looks like moments later.

## Dependency Check

Probes one external dependency, if configured:

	Check Name: dependency
	Configuration:
	├── URL: http(s):// endpoint or tcp://host:port
	├── Method / Headers / status range (HTTP mode)
	├── Timeout: per-probe bound (default 2s)
	└── Breaker: opens after 3 consecutive failures

Probes run through a circuit breaker (sony/gobreaker). Once open, probes
fail fast instead of stacking connection timeouts on every health request;
after the breaker's cool-off a single trial probe decides whether to close
it again. An empty URL disables the check (it reports healthy with
"no dependency configured").

# Core Components

## State

One State exists per worker process. Lifecycle code flips readiness:

	state := health.NewState(
		health.NewMemoryChecker(90),
		health.NewSchedLagChecker(150*time.Millisecond),
		health.NewDependencyChecker(cfg.DependencyURL),
	)

	// after the listener is up
	state.MarkReady()

	// first thing on SIGTERM
	state.MarkNotReady()

HTTP handlers read it:

	ready   := state.Ready()               // for /health/ready
	results := state.RunChecks(ctx)        // for /health, fresh probe
	healthy := state.Healthy()             // AND of last known results

Checks are pull-based: nothing runs in the background. /health recomputes
every checker synchronously; /health/ready reuses the last known results so
the hot probe stays cheap.

## Checker Interface

All checkers implement:

	type Checker interface {
		Check(ctx context.Context) Result
		Name() string
	}

State doesn't know check types, it just runs them and stores results under
Name(). Adding a check means implementing this interface and passing it to
NewState.

## Result Structure

	type Result struct {
		Healthy   bool          // check outcome
		Message   string        // human-readable detail
		CheckedAt time.Time     // when the check ran
		Duration  time.Duration // how long it took
	}

# Integration Points

## With Lifecycle (pkg/drain)

The drain controller calls MarkNotReady as its first action, before the
drain delay starts. Readiness must fail for a full probe cycle before the
listener closes, otherwise the load balancer routes into a closing socket.

## With Metrics (pkg/metrics)

UpdateCheck sets shepherd_health_check_status{check} to 0 or 1, and
RunChecks times each checker into shepherd_health_check_duration_seconds.
Dashboards watch the gauge; probes watch the endpoint.

## With Events (pkg/events)

The OnTransition hook lets the worker publish ready/not-ready events to the
broker without this package importing it.

# Example Probe Responses

Readiness (load balancer facing):

	GET /health/ready → 200 {"status":"ready"}     when gate open
	GET /health/ready → 503 {"status":"not ready"}  after MarkNotReady

Diagnostics (operator facing):

	GET /health → 200 {
		"status": "healthy",
		"checks": {
			"memory":     {"status": "healthy", "message": "heap at 41.2% of reserved (limit 90%)"},
			"sched_lag":  {"status": "healthy", "message": "scheduler lag 1.1ms (limit 150ms)"},
			"dependency": {"status": "healthy", "message": "no dependency configured"}
		}
	}

# Best Practices

 1. Flip readiness before closing anything. The order is the contract.
 2. Keep /health/ready off the checker path; it is hit every few seconds
    by every load balancer replica.
 3. Point the dependency check at something the service genuinely cannot
    serve without. A soft dependency in the readiness path turns its
    outages into yours.
 4. Alert on shepherd_health_check_status, not on probe scrape failures;
    the gauge survives a missed scrape.
 5. Tune sched_lag max to the service. 150ms is right for request serving,
    far too tight for batch workers.

# See Also

  - pkg/drain: shutdown sequencing that drives the readiness gate
  - pkg/api: HTTP handlers that expose this state
  - pkg/metrics: gauges and histograms fed by check results
*/
package health

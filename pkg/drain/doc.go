/*
Package drain sequences the graceful shutdown of one worker process.

This package implements the connection-draining state machine that turns a
termination request into an orderly exit: fail the readiness probe first,
give the load balancer time to react, stop accepting, wait for in-flight
work, and only destroy connections when the force timeout says so. The
controller decides the worker's exit code: clean drains exit 0, forced
drains exit 1.

# Architecture

One Controller wraps one http.Server and its listener:

	              Trigger (signal or supervisor message)
	                         │
	                         ▼
	┌──────────┐      ┌───────────┐      ┌──────────┐      ┌────────────┐
	│ RUNNING  │ ───► │ DRAINING  │ ───► │ CLOSING  │ ───► │ TERMINATED │
	└──────────┘      └───────────┘      └──────────┘      └────────────┘
	 accepting         readiness          listener           exit 0 if
	 + serving         failing,           closed, idle       clean, 1 if
	                   still serving      conns FINed,       forced
	                   (drain delay)      actives polled

## Shutdown Flow

 1. Trigger → DRAINING; the readiness gate flips synchronously, before
    Trigger returns
 2. Drain delay elapses (default 5s), giving every load balancer probe
    cycle time to observe the failing readiness endpoint
 3. DRAINING → CLOSING: the listener closes, keep-alives are disabled,
    idle connections get FIN immediately
 4. The tracked connection set is polled every 500ms
 5. Set empty → TERMINATED, clean. Force timeout (default 30s, measured
    from the trigger) → remaining connections destroyed, TERMINATED,
    forced

States only move forward. A second Trigger while any sequence is underway
logs a warning and does nothing, so stacked signals cannot start two
overlapping shutdowns.

# Connection Tracking

The controller installs itself as the server's ConnState hook. Every
accepted connection enters the tracked set; every close or hijack removes
it, regardless of the current state. The set powers three things:

  - the CLOSING poll loop's "is anything still open" decision
  - the shepherd_open_connections gauge
  - the forced-destruction count logged when the timeout fires

# Usage

	server := &http.Server{Handler: router}
	ctrl := drain.NewController(server, cfg.DrainDelay, cfg.ShutdownTimeout).
		WithNotReady(healthState.MarkNotReady)

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	go ctrl.Serve(listener)

	<-sigCh
	ctrl.Trigger("SIGTERM")

	<-ctrl.Done()
	if ctrl.Clean() {
		os.Exit(0)
	}
	os.Exit(1)

# Design Notes

## Why the readiness gate flips synchronously

The whole point of the drain delay is that the load balancer stops routing
before connections are touched. If the gate flipped inside the background
goroutine, a probe could race the delay timer. Trigger flips it inline, so
by the time Trigger returns the next probe is guaranteed to see 503.

## Why the force timeout is measured from the trigger

An operator who sets shutdown_timeout=30s means "this process is gone in
30 seconds". Measuring from the CLOSING transition would quietly add the
drain delay on top. The deadline is computed once at the trigger and the
sequence races it from there; with drain_delay=200ms and
shutdown_timeout=1s, a hanging connection is destroyed at t≈1s, not
t≈1.2s.

## Why polling instead of a notification per close

Connection closes already flow through ConnState, so the set could signal
"empty" on the last removal. The poll keeps the closing loop trivially
correct in the face of closes racing the CLOSING transition, at the cost
of at most one poll interval of extra wait. Shaving 500ms off a shutdown
that already waited a 5s drain delay is not worth the extra
synchronization.

# Troubleshooting

## Shutdowns always take the full force timeout

Something holds connections open: long-poll handlers, streaming
responses, or clients that never read. Check shepherd_open_connections
during the drain and add deadlines to the offending handlers.

## Load balancer sends traffic into a closing worker

The drain delay is shorter than the probe interval times the unhealthy
threshold. Raise drain_delay so the balancer has at least one full probe
cycle to notice the 503.

## Process exits 1 on every deploy

That is the forced path. Either in-flight work genuinely exceeds
shutdown_timeout, or keep-alive clients are pinning connections and the
fleet needs shorter client-side idle timeouts.

# See Also

  - pkg/health: the readiness gate this controller flips
  - pkg/worker: signal handling that calls Trigger
  - pkg/supervisor: the parent that sends the shutdown request
*/
package drain

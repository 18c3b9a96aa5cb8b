/*
Package worker implements the supervised serving process.

A worker is one of N identical processes forked by the supervisor. It owns
no cluster state: it binds the shared port, serves the HTTP surface, beats
a heartbeat upward, and when told to stop it drains and exits. Everything
interesting about a worker is how it starts and how it ends; the middle is
just serving requests.

# Architecture

	                         Supervisor
	    fork + env slot + pipe │  ▲ JSON lines on fd 3
	                           ▼  │
	┌──────────────────────────────────────────────────────────────┐
	│                       Worker Process                         │
	│                                                              │
	│  listen (SO_REUSEPORT) ──► api.Server ──► drain.Controller   │
	│        │                                        ▲            │
	│        │ "listening" msg                        │ Trigger    │
	│        ▼                                        │            │
	│  ipc.Writer ◄── heartbeatLoop        SIGTERM/SIGINT          │
	│                                                              │
	│  health.State (ready gate + memory/sched_lag/dependency)     │
	│  metrics.Collector (runtime gauges)                          │
	└──────────────────────────────────────────────────────────────┘

## Startup Sequence

 1. Build health state, router, and drain controller
 2. Bind the listen address with SO_REUSEPORT. Failure is fatal: the
    process logs and exits 1 without retrying, because a taken port is
    an operator error, not a transient
 3. Start serving
 4. Send the "listening" notification with the bound address; this is
    the signal rolling restarts gate on
 5. Open the readiness gate
 6. Start the heartbeat loop

## Shutdown Sequence

A termination signal (or Shutdown call) triggers the drain controller
exactly once; duplicates are logged no-ops. The worker keeps
heartbeating while it drains so the supervisor's watchdog never
mistakes a slow drain for a hang. The drain outcome decides the exit
code: 0 when every connection closed in time, 1 when the force timeout
destroyed stragglers.

# Port Sharing

Every worker sets SO_REUSEPORT on its listening socket and binds the
same address; the kernel distributes incoming connections across the
fleet. This is also what makes rolling restarts seamless: replacement
workers bind while their predecessors still serve, so capacity never
dips during the handoff. A foreign process holding the port without
SO_REUSEPORT still fails the bind, preserving the fatal startup error.

# Supervisor Protocol

Upward, on the inherited pipe (fd 3), as JSON lines:

	{"type":"listening","slot":2,"addr":"127.0.0.1:8080"}
	{"type":"heartbeat","slot":2}

Downward: SIGTERM. There is no richer command channel; the drain
sequence is the only thing a supervisor ever asks of a worker.

# Usage

	slot, ok := ipc.WorkerSlot()
	if !ok {
		// not forked by a supervisor
	}
	w := worker.New(cfg, slot, version)
	os.Exit(w.Run())

# See Also

  - pkg/supervisor: the parent that forks and watches workers
  - pkg/drain: the shutdown state machine Run delegates to
  - pkg/api: the HTTP surface served between start and drain
  - pkg/ipc: the pipe protocol
*/
package worker

// Package supervisor forks and supervises the worker fleet. It owns
// every process-level lifecycle decision: spawning workers, detecting
// silent or crashed ones, rate-limiting respawns, rotating the fleet
// without dropping capacity, and draining everything on shutdown.
//
// # Architecture
//
//	                 ┌──────────────────────────────┐
//	  SIGTERM ──────▶│                              │
//	  SIGINT  ──────▶│        control loop          │──▶ fork / signal /
//	  SIGUSR2 ──────▶│   (one event at a time)      │    kill workers
//	                 │                              │
//	  worker pipe ──▶│  heartbeat · listening       │──▶ lifecycle events
//	  reaper      ──▶│  exited                      │──▶ metrics
//	                 └──────────────────────────────┘
//	                        │            │
//	                   ┌────▼────┐  ┌────▼─────┐
//	                   │ governor│  │ admin    │
//	                   │ (rate)  │  │ endpoint │
//	                   └─────────┘  └──────────┘
//
// Every input (an OS signal, a pipe message, a process exit) becomes a
// typed control event consumed by a single goroutine. One event is
// handled to completion before the next, so supervisor state needs no
// locks: the loop is the only writer. The admin endpoint reads atomic
// snapshots published by the loop, never the state itself.
//
// # Worker identity
//
// Workers occupy numbered slots. The slot is the stable logical
// identity: it maps to restart history in the governor and to metric
// labels, and it survives respawns. The PID identifies one generation
// of a slot; during a rolling restart two generations briefly coexist,
// and events carry the PID so a late exit from a replaced process is
// never mistaken for a crash of its successor.
//
// # Supervision
//
// Each worker reports a heartbeat on its inherited pipe. A worker
// silent for longer than heartbeat_interval times the configured
// multiple is force-killed and treated like any crash. Crash respawns
// are bounded per slot by a sliding-window governor; a slot that
// exhausts its budget is abandoned and fleet capacity stays reduced
// until the supervisor itself restarts.
//
// # Shutdown and rotation
//
// SIGTERM or SIGINT drains the fleet: every worker is signaled at
// once, and the supervisor waits for the live count to reach zero,
// bounded by the fleet drain budget. The exit code is zero only when
// every worker drained cleanly in time.
//
// SIGUSR2 rotates the fleet one slot at a time: fork a replacement,
// wait for its listening report on the shared port, only then drain
// the old worker, wait for its exit, move on. Capacity never drops
// below the configured count minus one. A replacement that dies before
// listening aborts the rotation and the old worker keeps serving.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	sup := supervisor.New(cfg)
//	os.Exit(sup.Run())
//
// # Design Notes
//
// Duplicate shutdown and rolling-restart signals are logged no-ops;
// exactly one sequence runs regardless of how many times the operator
// signals. A rolling restart in flight when shutdown arrives is
// abandoned in place: shutdown drains both generations of the slot
// being rotated.
//
// The fleet drain deadline is the worker drain budget plus a fixed
// grace for signal delivery and exit reaping. Workers that outlive it
// are killed by process group and the supervisor exits non-zero.
//
// # See Also
//
//   - pkg/worker: the runtime each forked process executes
//   - pkg/ipc: the pipe protocol carrying heartbeat and listening
//   - pkg/events: the broker distributing lifecycle events
package supervisor

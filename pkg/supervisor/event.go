package supervisor

// controlEventType identifies one kind of control-loop input.
type controlEventType int

const (
	// workerExited: a worker process terminated (any cause).
	workerExited controlEventType = iota
	// workerHeartbeat: a worker sent a heartbeat over its pipe.
	workerHeartbeat
	// workerListening: a worker bound its port and is accepting.
	workerListening
	// shutdownRequested: SIGTERM/SIGINT arrived.
	shutdownRequested
	// rollingRequested: SIGUSR2 arrived.
	rollingRequested
)

func (t controlEventType) String() string {
	switch t {
	case workerExited:
		return "worker_exited"
	case workerHeartbeat:
		return "heartbeat"
	case workerListening:
		return "listening"
	case shutdownRequested:
		return "shutdown_requested"
	case rollingRequested:
		return "rolling_restart_requested"
	default:
		return "unknown"
	}
}

// controlEvent is one unit of work for the supervisor control loop. The
// loop consumes events strictly one at a time, which is the entire
// concurrency story for supervisor state: single writer, no locks.
//
// Events referring to a worker carry both the slot and the PID of the
// originating process. The PID disambiguates generations: during a
// rolling restart two processes briefly share a slot, and a late exit
// event from an already-replaced process must not be mistaken for a
// crash of its successor.
type controlEvent struct {
	typ      controlEventType
	slot     int
	pid      int
	addr     string // listening events: bind address
	exitCode int    // exit events
	reason   string // signal name for shutdown/rolling requests
}

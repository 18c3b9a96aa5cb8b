/*
Package ipc implements the message channel between workers and the
supervisor.

Workers inherit one half of an OS pipe on a fixed file descriptor and
write small JSON-line messages to it; the supervisor reads each worker's
pipe and feeds the decoded messages into its control loop. Signals flow
the other way (supervisor to worker) and are not part of this package.

# Protocol

One message per line, JSON encoded:

	{"type":"listening","slot":1,"addr":":8080"}
	{"type":"heartbeat","slot":1}

Message types:

  - listening: sent once, after the worker's listener bound
    successfully. The address is the readiness gate for rolling
    restarts.
  - heartbeat: sent on a fixed interval; resets the supervisor's
    watchdog timer for that slot.

The pipe is unidirectional worker→supervisor. Worker death closes the
pipe, which ends the supervisor's read loop for that slot. Malformed
lines (a worker killed mid-write) are skipped, never fatal.

# Usage

Worker side:

	pipe := os.NewFile(ipc.PipeFD, "supervisor")
	w := ipc.NewWriter(pipe)
	_ = w.Listening(slot, ln.Addr().String())
	_ = w.Heartbeat(slot)

Supervisor side:

	go func() {
		_ = ipc.ReadLoop(pipeReader, func(msg ipc.Message) {
			events <- eventFromMessage(msg)
		})
	}()

# Design Notes

Encoding uses goccy/go-json. Messages are tiny and infrequent (one
heartbeat per worker per interval), so the channel is never a
throughput concern; the line protocol exists for debuggability: you
can observe the stream with strace and read it.
*/
package ipc

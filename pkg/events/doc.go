/*
Package events provides an in-memory event broker for Shepherd's
lifecycle notifications.

The events package implements a lightweight event bus broadcasting
supervisor and worker lifecycle transitions to interested subscribers.
Metrics and tests subscribe to observe what the control loop decided
without coupling to its internals; the control loop itself never
consumes from the broker, so observation can never influence
supervision decisions.

# Architecture

Non-blocking pub/sub with buffered channels:

	┌──────────────────── EVENT BROKER ─────────────────────┐
	│                                                         │
	│  control loop ──Emit()──► Event Channel (buffer: 100)  │
	│                                   │                     │
	│                            Broadcast Loop               │
	│                                   │                     │
	│              ┌────────────────────┼─────────────────┐  │
	│              ▼                    ▼                 ▼  │
	│      metrics subscriber   test subscriber    (others)  │
	│        (buffer: 50)         (buffer: 50)               │
	└─────────────────────────────────────────────────────────┘

Publish never blocks the control loop: the broker channel is buffered
and slow subscribers are skipped rather than awaited.

# Event Types

Worker scope (Slot > 0):

  - worker.started: a process was forked into a slot
  - worker.listening: the worker reported a successful bind
  - worker.exited: the process exited (any cause)
  - worker.killed: the watchdog force-killed a silent worker
  - worker.restart_denied: the governor refused a respawn
  - worker.ready / worker.not_ready: readiness transitions
  - worker.drain_started / worker.drain_forced: drain progress

Cluster scope (Slot == 0):

  - cluster.shutdown_started / cluster.shutdown_complete
  - cluster.rolling_restart_started / cluster.rolling_restart_complete

# Usage

Publishing:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	broker.Emit(events.EventWorkerStarted, slot, "worker started")

Subscribing:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for event := range sub {
		fmt.Printf("[%s] slot=%d %s\n", event.Type, event.Slot, event.Message)
	}

# Delivery Guarantees

  - Best-effort, at-most-once per subscriber
  - Events dropped for subscribers whose buffer is full
  - Ordering preserved per publisher (single broadcast loop)
  - No persistence; the broker is process-local

These are the right guarantees for observability fan-out and the wrong
ones for control decisions, which is why the supervisor's control loop
consumes its own typed event channel, not this broker.
*/
package events

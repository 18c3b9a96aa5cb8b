package supervisor

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/shepherd/pkg/config"
	"github.com/cuemby/shepherd/pkg/events"
	"github.com/cuemby/shepherd/pkg/log"
	"github.com/cuemby/shepherd/pkg/metrics"
)

const (
	// defaultTick paces the watchdog scan and quiescence polling
	defaultTick = 500 * time.Millisecond

	// shutdownGrace extends the fleet drain budget to cover signal
	// delivery and exit-event latency before the supervisor gives up
	shutdownGrace = time.Second
)

// workerRecord tracks one live worker process. Records are keyed by
// PID in the supervisor's live set; the slot is the stable logical
// identity that survives respawns and carries restart history.
type workerRecord struct {
	slot           int
	proc           Process
	pid            int
	listening      bool
	addr           string
	draining       bool
	watchdogKilled bool
	lastHeartbeat  time.Time
	startedAt      time.Time
}

// Supervisor forks and supervises the worker fleet: heartbeat
// watchdog, governed crash respawns, graceful shutdown, and rolling
// restarts. All state is owned by a single control loop that consumes
// one event at a time, so none of it is locked.
type Supervisor struct {
	cfg      *config.Config
	launcher Launcher
	broker   *events.Broker
	events   chan controlEvent
	tick     time.Duration
	logger   zerolog.Logger

	// control-loop state, touched only from run()
	workers          map[int]*workerRecord // keyed by PID
	gov              *governor
	shuttingDown     bool
	shutdownDeadline time.Time
	exitCodes        []int
	roll             *rollingState
	finished         bool
	exitCode         int

	// published snapshots for the admin endpoint
	liveWorkers   atomic.Int64
	adminDraining atomic.Bool
}

// New creates a supervisor for the given configuration. The worker
// launcher defaults to re-executing the current binary and is resolved
// lazily so tests can substitute a fake before Run.
func New(cfg *config.Config) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		broker:  events.NewBroker(),
		events:  make(chan controlEvent, 64),
		tick:    defaultTick,
		logger:  log.WithComponent("supervisor"),
		workers: make(map[int]*workerRecord),
		gov:     newGovernor(cfg.RestartWindow, cfg.MaxRestarts),
	}
}

// WithLauncher replaces the worker launcher
func (s *Supervisor) WithLauncher(l Launcher) *Supervisor {
	s.launcher = l
	return s
}

// WithTick overrides the watchdog and polling interval
func (s *Supervisor) WithTick(d time.Duration) *Supervisor {
	s.tick = d
	return s
}

// Broker returns the lifecycle event broker for subscribers
func (s *Supervisor) Broker() *events.Broker {
	return s.broker
}

// Run forks the fleet and supervises it until shutdown completes.
// The return value is the process exit code: zero when every worker
// drained cleanly, non-zero on a forced or dirty shutdown.
func (s *Supervisor) Run() int {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	return s.run(sigCh)
}

// run is the control loop. The signal channel is injected so tests can
// drive it without touching process-global signal state.
func (s *Supervisor) run(sigCh <-chan os.Signal) int {
	if s.launcher == nil {
		launcher, err := newExecLauncher(s.events)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to initialize worker launcher")
			return 1
		}
		s.launcher = launcher
	}

	s.broker.Start()
	defer s.broker.Stop()

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)
	go s.logEvents(sub)

	if s.cfg.AdminListen != "" {
		admin := s.startAdmin()
		defer admin.close()
	}

	metrics.WorkersConfigured.Set(float64(s.cfg.Workers))

	if !s.startup() {
		s.killAll()
		return 1
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for !s.finished {
		select {
		case sig := <-sigCh:
			s.handleSignal(sig)
		case ev := <-s.events:
			s.dispatch(ev)
		case <-ticker.C:
			s.onTick()
		}
	}
	return s.exitCode
}

// handleSignal translates an OS signal into a control event and
// dispatches it inline, keeping signal handling on the control loop.
func (s *Supervisor) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGUSR2:
		s.dispatch(controlEvent{typ: rollingRequested, reason: sig.String()})
	default:
		s.dispatch(controlEvent{typ: shutdownRequested, reason: sig.String()})
	}
}

func (s *Supervisor) dispatch(ev controlEvent) {
	switch ev.typ {
	case workerHeartbeat:
		s.onHeartbeat(ev)
	case workerListening:
		s.onListening(ev)
	case workerExited:
		s.onExit(ev)
	case shutdownRequested:
		s.onShutdownRequested(ev.reason)
	case rollingRequested:
		s.onRollingRequested(ev.reason)
	}
}

// startup forks the initial fleet. Any fork failure here is fatal:
// a host that cannot fork is an operator problem, not a transient one.
func (s *Supervisor) startup() bool {
	s.logger.Info().
		Int("workers", s.cfg.Workers).
		Str("listen", s.cfg.Listen).
		Msg("starting worker fleet")

	for slot := 0; slot < s.cfg.Workers; slot++ {
		if s.spawn(slot) == nil {
			return false
		}
	}
	return true
}

// spawn forks one worker into the given slot and registers its record.
func (s *Supervisor) spawn(slot int) *workerRecord {
	proc, err := s.launcher.Launch(slot)
	if err != nil {
		s.logger.Error().Int("slot", slot).Err(err).Msg("failed to fork worker")
		return nil
	}

	now := time.Now()
	rec := &workerRecord{
		slot:          slot,
		proc:          proc,
		pid:           proc.PID(),
		lastHeartbeat: now,
		startedAt:     now,
	}
	s.workers[rec.pid] = rec
	s.publishLive()

	s.logger.Info().Int("slot", slot).Int("pid", rec.pid).Msg("worker forked")
	s.emit(events.EventWorkerStarted, slot, fmt.Sprintf("pid %d", rec.pid))
	return rec
}

func (s *Supervisor) onHeartbeat(ev controlEvent) {
	rec := s.workers[ev.pid]
	if rec == nil {
		// late message from an already-reaped process
		return
	}
	rec.lastHeartbeat = time.Now()
}

func (s *Supervisor) onListening(ev controlEvent) {
	rec := s.workers[ev.pid]
	if rec == nil {
		return
	}
	rec.listening = true
	rec.addr = ev.addr

	s.logger.Info().
		Int("slot", rec.slot).
		Int("pid", rec.pid).
		Str("addr", ev.addr).
		Msg("worker listening")
	s.emit(events.EventWorkerListening, rec.slot, ev.addr)

	if s.roll != nil {
		s.rollOnListening(rec)
	}
}

func (s *Supervisor) onExit(ev controlEvent) {
	rec := s.workers[ev.pid]
	if rec == nil {
		// an earlier generation of the slot, already killed and replaced
		s.logger.Debug().Int("pid", ev.pid).Msg("ignoring exit of untracked process")
		return
	}
	delete(s.workers, ev.pid)
	s.publishLive()

	s.logger.Info().
		Int("slot", rec.slot).
		Int("pid", ev.pid).
		Int("exit_code", ev.exitCode).
		Msg("worker exited")
	s.emit(events.EventWorkerExited, rec.slot, fmt.Sprintf("pid %d exit code %d", ev.pid, ev.exitCode))

	if s.shuttingDown {
		s.exitCodes = append(s.exitCodes, ev.exitCode)
		if len(s.workers) == 0 {
			s.finishShutdown(false)
		}
		return
	}

	if s.roll != nil && s.rollOnExit(rec, ev) {
		return
	}

	s.respawn(rec, ev.exitCode)
}

// respawn applies the restart-rate governor and forks a replacement
// when the slot is under budget. Over budget, the slot is abandoned
// and overall capacity stays reduced until the supervisor restarts.
func (s *Supervisor) respawn(rec *workerRecord, exitCode int) {
	now := time.Now()
	slot := rec.slot

	if !s.gov.allow(slot, now) {
		s.logger.Error().
			Int("slot", slot).
			Int("restarts_in_window", s.gov.count(slot)).
			Dur("window", s.cfg.RestartWindow).
			Msg("restart rate exceeded, abandoning worker slot")
		metrics.WorkerRestartsDenied.WithLabelValues(strconv.Itoa(slot)).Inc()
		metrics.WorkerHeartbeatAge.DeleteLabelValues(strconv.Itoa(slot))
		s.emit(events.EventWorkerRestartDenied, slot, "restart rate exceeded")
		return
	}
	s.gov.record(slot, now)

	reason := "crash"
	switch {
	case rec.watchdogKilled:
		reason = "watchdog"
	case exitCode == 0:
		reason = "exit"
	}
	metrics.WorkerRestartsTotal.WithLabelValues(strconv.Itoa(slot), reason).Inc()

	s.logger.Warn().
		Int("slot", slot).
		Int("exit_code", exitCode).
		Str("reason", reason).
		Msg("respawning worker")
	s.spawn(slot)
}

func (s *Supervisor) onShutdownRequested(reason string) {
	if s.shuttingDown {
		s.logger.Warn().Str("signal", reason).Msg("shutdown already in progress, ignoring signal")
		return
	}
	s.shuttingDown = true
	s.adminDraining.Store(true)
	s.shutdownDeadline = time.Now().Add(s.cfg.DrainBudget() + shutdownGrace)

	if s.roll != nil {
		s.logger.Warn().Msg("abandoning rolling restart for shutdown")
		s.roll = nil
	}

	s.logger.Info().
		Str("signal", reason).
		Int("workers", len(s.workers)).
		Msg("shutting down worker fleet")
	s.emit(events.EventShutdownStarted, 0, reason)

	if len(s.workers) == 0 {
		s.finishShutdown(false)
		return
	}
	for _, rec := range s.workers {
		rec.draining = true
		if err := rec.proc.Signal(syscall.SIGTERM); err != nil {
			s.logger.Warn().
				Int("slot", rec.slot).
				Int("pid", rec.pid).
				Err(err).
				Msg("failed to signal worker")
		}
	}
}

// finishShutdown resolves the supervisor exit code. Forced means the
// fleet deadline fired with workers still alive: they are killed and
// the exit is non-zero. A timely finish is clean only when every
// worker itself exited zero.
func (s *Supervisor) finishShutdown(forced bool) {
	code := 0
	if forced {
		s.logger.Error().
			Int("remaining", len(s.workers)).
			Msg("shutdown deadline exceeded, killing remaining workers")
		for pid, rec := range s.workers {
			_ = rec.proc.Kill()
			delete(s.workers, pid)
		}
		s.publishLive()
		code = 1
	} else {
		for _, c := range s.exitCodes {
			if c != 0 {
				code = 1
				break
			}
		}
	}

	s.emit(events.EventShutdownComplete, 0, fmt.Sprintf("exit code %d", code))
	s.logger.Info().Int("exit_code", code).Msg("shutdown complete")
	s.finished = true
	s.exitCode = code
}

func (s *Supervisor) onTick() {
	now := time.Now()

	if s.shuttingDown {
		if now.After(s.shutdownDeadline) {
			s.finishShutdown(true)
		}
		return
	}

	s.scanWatchdog(now)

	if s.roll != nil {
		s.rollOnTick(now)
	}
}

// scanWatchdog force-kills workers whose heartbeats have gone silent.
// The kill produces an ordinary exit event, so recovery flows through
// the same governed respawn path as any crash.
func (s *Supervisor) scanWatchdog(now time.Time) {
	timeout := s.cfg.HeartbeatTimeout()

	for _, rec := range s.workers {
		age := now.Sub(rec.lastHeartbeat)
		metrics.WorkerHeartbeatAge.WithLabelValues(strconv.Itoa(rec.slot)).Set(age.Seconds())

		if rec.draining || rec.watchdogKilled || age <= timeout {
			continue
		}

		s.logger.Error().
			Int("slot", rec.slot).
			Int("pid", rec.pid).
			Dur("silent_for", age).
			Dur("timeout", timeout).
			Msg("heartbeat timeout, killing worker")
		rec.watchdogKilled = true
		s.emit(events.EventWorkerKilled, rec.slot, fmt.Sprintf("no heartbeat for %s", age.Round(time.Millisecond)))
		if err := rec.proc.Kill(); err != nil {
			s.logger.Warn().
				Int("slot", rec.slot).
				Int("pid", rec.pid).
				Err(err).
				Msg("failed to kill silent worker")
		}
	}
}

// killAll tears down every live worker without ceremony. Used when
// startup fails partway through the fleet.
func (s *Supervisor) killAll() {
	for pid, rec := range s.workers {
		_ = rec.proc.Kill()
		delete(s.workers, pid)
	}
	s.publishLive()
}

func (s *Supervisor) publishLive() {
	n := len(s.workers)
	s.liveWorkers.Store(int64(n))
	metrics.WorkersLive.Set(float64(n))
}

// emit publishes a lifecycle event and counts it.
func (s *Supervisor) emit(t events.EventType, slot int, msg string) {
	metrics.LifecycleEventsTotal.WithLabelValues(string(t)).Inc()
	s.broker.Emit(t, slot, msg)
}

// logEvents mirrors broker events into the structured log so every
// lifecycle transition shows up in one stream.
func (s *Supervisor) logEvents(sub events.Subscriber) {
	logger := log.WithComponent("lifecycle")
	for ev := range sub {
		logger.Info().
			Str("event", string(ev.Type)).
			Int("slot", ev.Slot).
			Str("detail", ev.Message).
			Msg("lifecycle event")
	}
}

package worker

import (
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/shepherd/pkg/api"
	"github.com/cuemby/shepherd/pkg/config"
	"github.com/cuemby/shepherd/pkg/drain"
	"github.com/cuemby/shepherd/pkg/health"
	"github.com/cuemby/shepherd/pkg/ipc"
	"github.com/cuemby/shepherd/pkg/log"
	"github.com/cuemby/shepherd/pkg/metrics"
)

// Worker is one supervised serving process. The supervisor forks it
// with a slot number in the environment and the message pipe on fd 3;
// it binds the shared port, serves until told to stop, and exits with
// 0 on a clean drain or 1 otherwise.
type Worker struct {
	cfg     *config.Config
	slot    int
	version string
	notify  io.Writer

	health *health.State
	ctrl   *drain.Controller

	stopCh chan struct{}
}

// New creates a worker runtime for the given slot
func New(cfg *config.Config, slot int, version string) *Worker {
	return &Worker{
		cfg:     cfg,
		slot:    slot,
		version: version,
		notify:  os.NewFile(uintptr(ipc.PipeFD), "supervisor-pipe"),
		stopCh:  make(chan struct{}),
	}
}

// WithNotify overrides the supervisor message pipe
func (w *Worker) WithNotify(notify io.Writer) *Worker {
	w.notify = notify
	return w
}

// Shutdown requests the drain sequence, as if a termination signal had
// arrived. Safe to call more than once.
func (w *Worker) Shutdown(reason string) {
	if w.ctrl != nil {
		w.ctrl.Trigger(reason)
	}
}

// Run executes the worker until it drains or fails, returning the
// process exit code
func (w *Worker) Run() int {
	logger := log.WithSlot(w.slot)
	defer close(w.stopCh)

	state := health.NewState(
		health.NewMemoryChecker(w.cfg.MemoryMaxPct),
		health.NewSchedLagChecker(w.cfg.SchedLagMax),
		health.NewDependencyChecker(w.cfg.DependencyURL).WithTimeout(w.cfg.DependencyTimeout),
	)
	w.health = state

	server := api.NewServer(state, api.Options{
		Version:     w.version,
		CORSOrigins: w.cfg.CORSOrigins,
		RateLimit:   w.cfg.RateLimit,
	})
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.ctrl = drain.NewController(httpServer, w.cfg.DrainDelay, w.cfg.ShutdownTimeout).
		WithNotReady(state.MarkNotReady)

	// Bind before anything else. A taken port is an operator error,
	// fatal with no retry.
	listener, err := listen(w.cfg.Listen)
	if err != nil {
		logger.Error().Err(err).Str("listen", w.cfg.Listen).Msg("failed to bind")
		return 1
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- w.ctrl.Serve(listener)
	}()

	collector := metrics.NewCollector(15 * time.Second)
	collector.Start()
	defer collector.Stop()

	pipe := ipc.NewWriter(w.notify)

	// Tell the supervisor we are serving; this gates rolling restarts
	addr := listener.Addr().String()
	if err := pipe.Listening(w.slot, addr); err != nil {
		logger.Warn().Err(err).Msg("failed to send listening notification")
	}
	state.MarkReady()
	logger.Info().Str("addr", addr).Msg("worker listening")

	if err := pipe.Heartbeat(w.slot); err != nil {
		logger.Warn().Err(err).Msg("failed to send heartbeat")
	}
	go w.heartbeatLoop(pipe, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			// Duplicate signals are absorbed by the controller
			w.ctrl.Trigger(sig.String())

		case err := <-serveErrCh:
			if err != nil {
				logger.Error().Err(err).Msg("server failed")
				return 1
			}
			// Expected close during drain; wait for the controller

		case <-w.ctrl.Done():
			if w.ctrl.Clean() {
				logger.Info().Msg("worker exiting cleanly")
				return 0
			}
			logger.Warn().Msg("worker exiting after forced drain")
			return 1
		}
	}
}

// heartbeatLoop tells the supervisor this worker is alive. It keeps
// beating during a drain so the watchdog never confuses a slow drain
// with a hung process.
func (w *Worker) heartbeatLoop(pipe *ipc.Writer, logger zerolog.Logger) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := pipe.Heartbeat(w.slot); err != nil {
				logger.Warn().Err(err).Msg("failed to send heartbeat")
			}
		case <-w.stopCh:
			return
		}
	}
}

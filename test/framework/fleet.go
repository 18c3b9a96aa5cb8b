package framework

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// EnvBinary names the environment variable pointing at the shepherd
// binary under test. Lifecycle tests skip when it is unset.
const EnvBinary = "SHEPHERD_TEST_BINARY"

// DefaultFleetConfig returns a default fleet configuration
func DefaultFleetConfig() *FleetConfig {
	binary := os.Getenv(EnvBinary)

	dataDir := os.Getenv("SHEPHERD_TEST_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), fmt.Sprintf("shepherd-test-%d", os.Getpid()))
	}

	return &FleetConfig{
		Binary:                   binary,
		Workers:                  3,
		HeartbeatInterval:        250 * time.Millisecond,
		HeartbeatTimeoutMultiple: 6,
		DrainDelay:               100 * time.Millisecond,
		ShutdownTimeout:          2 * time.Second,
		RestartWindow:            60 * time.Second,
		MaxRestarts:              5,
		DataDir:                  dataDir,
		KeepOnFailure:            false,
		LogLevel:                 "debug",
	}
}

// NewFleet creates a new test fleet with the given configuration
func NewFleet(config *FleetConfig) (*Fleet, error) {
	if config == nil {
		config = DefaultFleetConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid fleet config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Fleet{
		Config: config,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches the supervisor and waits for every worker to fork and
// report ready
func (f *Fleet) Start() error {
	if err := os.MkdirAll(f.Config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// Each fleet gets fresh ports so sequential tests never collide on
	// sockets lingering in TIME_WAIT
	if f.Config.Listen == "" {
		addr, err := freeAddr()
		if err != nil {
			return fmt.Errorf("failed to allocate worker port: %w", err)
		}
		f.Config.Listen = addr
	}
	if f.Config.AdminListen == "" {
		addr, err := freeAddr()
		if err != nil {
			return fmt.Errorf("failed to allocate admin port: %w", err)
		}
		f.Config.AdminListen = addr
	}

	f.Process = NewProcess(f.Config.Binary)
	f.Process.Args = []string{"serve"}
	f.Process.Env = f.env()
	f.Process.LogFile = filepath.Join(f.Config.DataDir, "shepherd.log")

	if err := f.Process.Start(); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	f.Client = NewClient("http://"+f.Config.AdminListen, "http://"+f.Config.Listen)

	if err := f.WaitForWorkers(); err != nil {
		return fmt.Errorf("fleet never became ready: %w", err)
	}

	return nil
}

// Stop drains the fleet gracefully via SIGTERM
func (f *Fleet) Stop() error {
	if f.Process == nil {
		return fmt.Errorf("fleet not started")
	}
	return f.Process.Stop()
}

// Shutdown sends SIGTERM and returns the supervisor's exit code. Use
// this instead of Stop when the test asserts on the code itself.
func (f *Fleet) Shutdown(timeout time.Duration) (int, error) {
	if f.Process == nil {
		return 0, fmt.Errorf("fleet not started")
	}
	if err := f.Process.Signal(syscall.SIGTERM); err != nil {
		return 0, fmt.Errorf("failed to send SIGTERM: %w", err)
	}
	return f.Process.WaitExit(timeout)
}

// RollingRestart triggers a zero-downtime rotation via SIGUSR2
func (f *Fleet) RollingRestart() error {
	if f.Process == nil {
		return fmt.Errorf("fleet not started")
	}
	return f.Process.Signal(syscall.SIGUSR2)
}

// WorkerPIDs returns the PIDs of the supervisor's live worker
// processes, sorted ascending
func (f *Fleet) WorkerPIDs() ([]int, error) {
	if f.Process == nil {
		return nil, fmt.Errorf("fleet not started")
	}
	return childPIDs(f.Process.PID)
}

// KillWorker kills a specific worker with SIGKILL (simulates a crash)
func (f *Fleet) KillWorker(pid int) error {
	workers, err := f.WorkerPIDs()
	if err != nil {
		return err
	}
	for _, w := range workers {
		if w == pid {
			return syscall.Kill(pid, syscall.SIGKILL)
		}
	}
	return fmt.Errorf("pid %d is not a worker of this fleet", pid)
}

// CrashWorker kills an arbitrary live worker and returns its PID
func (f *Fleet) CrashWorker() (int, error) {
	workers, err := f.WorkerPIDs()
	if err != nil {
		return 0, err
	}
	if len(workers) == 0 {
		return 0, fmt.Errorf("fleet has no live workers")
	}
	pid := workers[0]
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		return 0, fmt.Errorf("failed to kill worker %d: %w", pid, err)
	}
	return pid, nil
}

// WaitForWorkers waits for the admin endpoint to report the configured
// worker count and for the worker port to answer ready probes
func (f *Fleet) WaitForWorkers() error {
	ctx, cancel := context.WithTimeout(f.ctx, 30*time.Second)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for workers: %w", ctx.Err())
		case <-ticker.C:
			live, err := f.Client.LiveWorkers(ctx)
			if err != nil || live != int64(f.Config.Workers) {
				continue
			}
			if f.Client.WorkerReady(ctx) {
				return nil
			}
		}
	}
}

// Cleanup tears down the fleet and its data directory
func (f *Fleet) Cleanup() error {
	if f.Process != nil && f.Process.IsRunning() {
		if err := f.Process.Stop(); err != nil {
			fmt.Printf("Warning: error during stop: %v\n", err)
		}
	}

	if f.Client != nil {
		f.Client.Close()
	}

	if f.cancel != nil {
		f.cancel()
	}

	if !f.Config.KeepOnFailure {
		if err := os.RemoveAll(f.Config.DataDir); err != nil {
			return fmt.Errorf("failed to remove data dir: %w", err)
		}
	}

	return nil
}

// AdminURL returns the base URL of the supervisor admin endpoint
func (f *Fleet) AdminURL() string {
	return "http://" + f.Config.AdminListen
}

// WorkerURL returns the base URL of the worker-facing service
func (f *Fleet) WorkerURL() string {
	return "http://" + f.Config.Listen
}

// Private helper methods

func validateConfig(config *FleetConfig) error {
	if config.Binary == "" {
		return fmt.Errorf("binary path is required (set %s)", EnvBinary)
	}
	if _, err := os.Stat(config.Binary); err != nil {
		return fmt.Errorf("binary not found at %s: %w", config.Binary, err)
	}
	if config.Workers < 1 {
		return fmt.Errorf("fleet needs at least 1 worker, got %d", config.Workers)
	}
	return nil
}

// env renders the fleet configuration as SHEPHERD_* variables for the
// supervisor process. Durations use their string form so the values
// round-trip through the config loader.
func (f *Fleet) env() []string {
	return []string{
		"SHEPHERD_WORKERS=" + strconv.Itoa(f.Config.Workers),
		"SHEPHERD_LISTEN=" + f.Config.Listen,
		"SHEPHERD_ADMIN_LISTEN=" + f.Config.AdminListen,
		"SHEPHERD_HEARTBEAT_INTERVAL=" + f.Config.HeartbeatInterval.String(),
		"SHEPHERD_HEARTBEAT_TIMEOUT_MULTIPLE=" + strconv.Itoa(f.Config.HeartbeatTimeoutMultiple),
		"SHEPHERD_DRAIN_DELAY=" + f.Config.DrainDelay.String(),
		"SHEPHERD_SHUTDOWN_TIMEOUT=" + f.Config.ShutdownTimeout.String(),
		"SHEPHERD_RESTART_WINDOW=" + f.Config.RestartWindow.String(),
		"SHEPHERD_MAX_RESTARTS=" + strconv.Itoa(f.Config.MaxRestarts),
		"SHEPHERD_LOG_LEVEL=" + f.Config.LogLevel,
		"SHEPHERD_LOG_FORMAT=console",
	}
}

// freeAddr asks the kernel for an unused loopback port
func freeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr, nil
}

// childPIDs scans /proc for direct children of the given parent
func childPIDs(parent int) ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc: %w", err)
	}

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "stat"))
		if err != nil {
			continue // process exited mid-scan
		}

		// stat is "pid (comm) state ppid ..." and comm may itself
		// contain spaces or parens, so parse from the last ')'
		end := bytes.LastIndexByte(data, ')')
		if end < 0 || end+2 >= len(data) {
			continue
		}
		fields := strings.Fields(string(data[end+2:]))
		if len(fields) < 2 {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil || ppid != parent {
			continue
		}

		pids = append(pids, pid)
	}

	sort.Ints(pids)
	return pids, nil
}

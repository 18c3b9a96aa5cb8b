package framework

import (
	"context"
	"time"
)

// FleetConfig defines the configuration for a test fleet: one shepherd
// supervisor plus the workers it forks.
type FleetConfig struct {
	// Binary is the path to the shepherd binary
	Binary string
	// Workers is the number of worker processes the supervisor forks
	Workers int
	// Listen is the worker-facing HTTP address (shared via SO_REUSEPORT)
	Listen string
	// AdminListen is the supervisor admin address
	AdminListen string
	// HeartbeatInterval is the worker heartbeat period
	HeartbeatInterval time.Duration
	// HeartbeatTimeoutMultiple is the watchdog multiplier
	HeartbeatTimeoutMultiple int
	// DrainDelay is how long a worker waits before closing its listener
	DrainDelay time.Duration
	// ShutdownTimeout is the per-worker budget for in-flight requests
	ShutdownTimeout time.Duration
	// RestartWindow is the sliding window for the restart governor
	RestartWindow time.Duration
	// MaxRestarts is the per-slot restart budget inside the window
	MaxRestarts int
	// DataDir is the base directory for fleet logs
	DataDir string
	// KeepOnFailure keeps the fleet running if tests fail (for debugging)
	KeepOnFailure bool
	// LogLevel sets the logging level for the shepherd process
	LogLevel string
}

// Fleet represents a running shepherd supervisor under test
type Fleet struct {
	// Config is the fleet configuration
	Config *FleetConfig
	// Process is the supervisor process
	Process *Process
	// Client talks to the fleet's admin and worker endpoints
	Client *Client
	// ctx is the context for fleet operations
	ctx context.Context
	// cancel cancels the fleet context
	cancel context.CancelFunc
}

// TestingT is an interface matching testing.T
type TestingT interface {
	Logf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	FailNow()
	Failed() bool
	Name() string
	Helper()
}

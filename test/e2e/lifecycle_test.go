package e2e

import (
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/cuemby/shepherd/test/framework"
)

// newFleet builds an unstarted fleet for the test, skipping when no
// shepherd binary is configured
func newFleet(t *testing.T, mutate func(*framework.FleetConfig)) *framework.Fleet {
	t.Helper()

	if os.Getenv(framework.EnvBinary) == "" {
		t.Skipf("Set %s to run lifecycle tests", framework.EnvBinary)
	}
	if testing.Short() {
		t.Skip("Skipping lifecycle test in short mode")
	}

	config := framework.DefaultFleetConfig()
	config.DataDir = t.TempDir()
	if mutate != nil {
		mutate(config)
	}

	fleet, err := framework.NewFleet(config)
	if err != nil {
		t.Fatalf("Failed to create fleet: %v", err)
	}
	return fleet
}

// TestFleetLifecycle covers the happy path: fork the fleet, serve
// traffic, drain on SIGTERM
func TestFleetLifecycle(t *testing.T) {
	fleet := newFleet(t, func(c *framework.FleetConfig) {
		c.Workers = 3
	})
	defer func() { _ = fleet.Cleanup() }()

	assert := framework.NewAssertions(t)
	waiter := framework.DefaultWaiter()
	ctx := context.Background()

	assert.Step("Starting fleet with 3 workers")
	if err := fleet.Start(); err != nil {
		t.Fatalf("Failed to start fleet: %v", err)
	}

	t.Run("VerifyFleetState", func(t *testing.T) {
		assert.LiveWorkers(3, fleet.Client)
		assert.WorkerReady(fleet.Client)

		pids, err := fleet.WorkerPIDs()
		assert.NoError(err, "Failed to list worker processes")
		assert.Equal(3, len(pids), "Worker process count")

		assert.LogContains(fleet.Process, "starting worker fleet")
		assert.Equal(3, fleet.Process.LogCount("worker forked"), "Fork log count")

		assert.NoError(
			waiter.WaitForMetric(ctx, fleet.Client, "shepherd_workers_live", 3),
			"Live worker gauge")
		assert.Success("All 3 workers forked and ready")
	})

	t.Run("ServeTraffic", func(t *testing.T) {
		assert.NoError(
			waiter.WaitForWorkerServing(ctx, fleet.Client),
			"Worker port never served traffic")

		// Workers keep independent in-memory stores, so only the
		// round-trips are asserted, not cross-request visibility
		err := framework.Retry(ctx, 3, 100*time.Millisecond, func() error {
			_, err := fleet.Client.Worker.CreateUser(ctx, "Ada Lovelace", "ada@example.com")
			return err
		})
		assert.NoError(err, "Failed to create user")

		_, err = fleet.Client.Worker.ListUsers(ctx)
		assert.NoError(err, "Failed to list users")
		assert.Success("Worker port answers API traffic")
	})

	t.Run("GracefulShutdown", func(t *testing.T) {
		assert.Step("Sending SIGTERM twice (duplicate must be a no-op)")
		assert.NoError(fleet.Process.Signal(syscall.SIGTERM), "First SIGTERM")
		assert.NoError(fleet.Process.Signal(syscall.SIGTERM), "Second SIGTERM")

		code, err := fleet.Process.WaitExit(15 * time.Second)
		assert.NoError(err, "Supervisor never exited")
		assert.Equal(0, code, "Supervisor exit code")

		assert.LogContains(fleet.Process, "shutting down worker fleet")
		assert.LogContains(fleet.Process, "shutdown already in progress, ignoring signal")
		assert.LogContains(fleet.Process, "shutdown complete")
		assert.False(fleet.Process.IsRunning(), "Supervisor still running after exit")
		assert.Success("Fleet drained cleanly with exit code 0")
	})
}

// TestWorkerCrashRespawn kills one worker and verifies the supervisor
// respawns it while the survivor keeps serving
func TestWorkerCrashRespawn(t *testing.T) {
	fleet := newFleet(t, func(c *framework.FleetConfig) {
		c.Workers = 2
	})
	defer func() { _ = fleet.Cleanup() }()

	assert := framework.NewAssertions(t)
	waiter := framework.DefaultWaiter()
	ctx := context.Background()

	if err := fleet.Start(); err != nil {
		t.Fatalf("Failed to start fleet: %v", err)
	}

	before, err := fleet.WorkerPIDs()
	assert.NoError(err, "Failed to list worker processes")
	assert.Equal(2, len(before), "Worker process count before crash")

	assert.Step("Killing one worker")
	crashed, err := fleet.CrashWorker()
	assert.NoError(err, "Failed to crash worker")
	assert.Logf("Killed worker PID %d", crashed)

	assert.NoError(fleet.Process.WaitForLog("worker exited", 10*time.Second),
		"Supervisor never noticed the crash")
	assert.NoError(fleet.Process.WaitForLog("respawning worker", 10*time.Second),
		"Supervisor never respawned the worker")
	assert.NoError(waiter.WaitForWorkerProcesses(ctx, fleet, 2),
		"Fleet never returned to 2 workers")

	after, err := fleet.WorkerPIDs()
	assert.NoError(err, "Failed to list worker processes")
	for _, pid := range after {
		if pid == crashed {
			t.Fatalf("Crashed PID %d still among workers %v", crashed, after)
		}
	}

	assert.LiveWorkers(2, fleet.Client)
	assert.WorkerServing(fleet.Client)
	assert.NoError(
		waiter.WaitForMetric(ctx, fleet.Client, "shepherd_worker_restarts_total", 1),
		"Restart counter never incremented")
	assert.Success("Crashed worker respawned under a fresh PID")

	code, err := fleet.Shutdown(15 * time.Second)
	assert.NoError(err, "Shutdown failed")
	assert.Equal(0, code, "Supervisor exit code")
}

// TestRestartGovernorAbandonsSlot crash-loops a single worker past its
// restart budget and verifies the slot is abandoned rather than
// respawned forever
func TestRestartGovernorAbandonsSlot(t *testing.T) {
	fleet := newFleet(t, func(c *framework.FleetConfig) {
		c.Workers = 1
		c.MaxRestarts = 2
		c.RestartWindow = 60 * time.Second
	})
	defer func() { _ = fleet.Cleanup() }()

	assert := framework.NewAssertions(t)
	waiter := framework.DefaultWaiter()
	ctx := context.Background()

	if err := fleet.Start(); err != nil {
		t.Fatalf("Failed to start fleet: %v", err)
	}

	// Two crashes fit the budget, the third exhausts it
	for i := 1; i <= 2; i++ {
		assert.Step("Crashing worker inside restart budget")
		_, err := fleet.CrashWorker()
		assert.NoError(err, "Failed to crash worker")

		assert.NoError(fleet.Process.WaitForLogCount("respawning worker", i, 10*time.Second),
			"Supervisor never respawned the worker")
		assert.NoError(waiter.WaitForWorkerProcesses(ctx, fleet, 1),
			"Worker never came back")
	}

	assert.Step("Crashing worker past restart budget")
	_, err := fleet.CrashWorker()
	assert.NoError(err, "Failed to crash worker")

	assert.NoError(
		fleet.Process.WaitForLog("restart rate exceeded, abandoning worker slot", 10*time.Second),
		"Governor never denied the restart")
	assert.Equal(2, fleet.Process.LogCount("respawning worker"), "Respawn count")

	// The supervisor stays up and reports the empty fleet
	assert.NoError(waiter.WaitForLiveWorkers(ctx, fleet.Client, 0),
		"Supervisor never reported the abandoned slot")
	assert.NoError(
		waiter.WaitForMetric(ctx, fleet.Client, "shepherd_worker_restarts_denied_total", 1),
		"Denied counter never incremented")

	pids, err := fleet.WorkerPIDs()
	assert.NoError(err, "Failed to list worker processes")
	assert.Equal(0, len(pids), "Worker processes after abandonment")
	assert.Success("Crash loop contained: slot abandoned after 2 respawns")

	code, err := fleet.Shutdown(15 * time.Second)
	assert.NoError(err, "Shutdown failed")
	assert.Equal(0, code, "Supervisor exit code")
}

// TestRollingRestartZeroDowntime rotates the fleet via SIGUSR2 while
// hammering the worker port and verifies every PID changed without a
// service gap
func TestRollingRestartZeroDowntime(t *testing.T) {
	fleet := newFleet(t, func(c *framework.FleetConfig) {
		c.Workers = 3
	})
	defer func() { _ = fleet.Cleanup() }()

	assert := framework.NewAssertions(t)
	waiter := framework.DefaultWaiter()
	ctx := context.Background()

	if err := fleet.Start(); err != nil {
		t.Fatalf("Failed to start fleet: %v", err)
	}
	assert.NoError(waiter.WaitForWorkerServing(ctx, fleet.Client),
		"Worker port never served traffic")

	before, err := fleet.WorkerPIDs()
	assert.NoError(err, "Failed to list worker processes")
	assert.Equal(3, len(before), "Worker process count before rotation")

	assert.Step("Rotating fleet under continuous traffic")
	probe := startProber(fleet.Client, 25*time.Millisecond)

	assert.NoError(fleet.RollingRestart(), "Failed to send SIGUSR2")
	assert.NoError(fleet.Process.WaitForLog("rolling restart complete", 30*time.Second),
		"Rotation never completed")

	total, failures, maxGap := probe.stop()
	assert.Logf("Probes: %d total, %d failed, longest gap %v", total, failures, maxGap)

	assert.True(total > 20, "Prober barely ran")
	assert.True(failures <= total/20, "Too many failed probes during rotation")
	assert.True(maxGap < time.Second, "Service gap during rotation")

	after, err := fleet.WorkerPIDs()
	assert.NoError(err, "Failed to list worker processes")
	assert.Equal(3, len(after), "Worker process count after rotation")

	overlap := 0
	for _, old := range before {
		for _, cur := range after {
			if old == cur {
				overlap++
			}
		}
	}
	assert.Equal(0, overlap, "Workers surviving the rotation")

	assert.Equal(3, fleet.Process.LogCount("slot rotated"), "Rotated slot count")
	assert.LogNotContains(fleet.Process, "respawning worker")
	assert.LiveWorkers(3, fleet.Client)
	assert.Success("All 3 workers rotated with no service gap")

	code, err := fleet.Shutdown(15 * time.Second)
	assert.NoError(err, "Shutdown failed")
	assert.Equal(0, code, "Supervisor exit code")
}

// TestRollingRestartIgnoredDuringShutdown sends SIGUSR2 after SIGTERM
// and verifies the rotation is refused
func TestRollingRestartIgnoredDuringShutdown(t *testing.T) {
	fleet := newFleet(t, func(c *framework.FleetConfig) {
		c.Workers = 2
		// Widen the drain window so SIGUSR2 lands mid-shutdown
		c.DrainDelay = time.Second
	})
	defer func() { _ = fleet.Cleanup() }()

	assert := framework.NewAssertions(t)

	if err := fleet.Start(); err != nil {
		t.Fatalf("Failed to start fleet: %v", err)
	}

	assert.NoError(fleet.Process.Signal(syscall.SIGTERM), "SIGTERM")
	assert.NoError(fleet.Process.WaitForLog("shutting down worker fleet", 10*time.Second),
		"Shutdown never started")
	assert.NoError(fleet.Process.Signal(syscall.SIGUSR2), "SIGUSR2")

	code, err := fleet.Process.WaitExit(15 * time.Second)
	assert.NoError(err, "Supervisor never exited")
	assert.Equal(0, code, "Supervisor exit code")

	assert.LogContains(fleet.Process, "shutdown in progress, ignoring rolling restart")
	assert.LogNotContains(fleet.Process, "starting rolling restart")
	assert.Success("Rotation refused while draining")
}

// prober hammers the worker port in the background and records how
// service availability held up
type prober struct {
	client   *framework.Client
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu       sync.Mutex
	total    int
	failures int
	lastOK   time.Time
	maxGap   time.Duration
}

func startProber(client *framework.Client, interval time.Duration) *prober {
	p := &prober{
		client:   client,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		lastOK:   time.Now(),
	}
	go p.loop()
	return p
}

func (p *prober) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			ok := p.client.WorkerServing(context.Background())

			p.mu.Lock()
			p.total++
			if ok {
				if gap := time.Since(p.lastOK); gap > p.maxGap {
					p.maxGap = gap
				}
				p.lastOK = time.Now()
			} else {
				p.failures++
			}
			p.mu.Unlock()
		}
	}
}

// stop halts the prober and returns totals, folding in the gap since
// the last success so a dead tail end is not hidden
func (p *prober) stop() (total, failures int, maxGap time.Duration) {
	close(p.stopCh)
	<-p.doneCh

	p.mu.Lock()
	defer p.mu.Unlock()

	if gap := time.Since(p.lastOK); gap > p.maxGap {
		p.maxGap = gap
	}
	return p.total, p.failures, p.maxGap
}

package framework

import (
	"context"
	"fmt"
	"time"
)

// Waiter provides utilities for waiting on conditions with timeouts
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter creates a new Waiter with the given timeout and polling interval
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{
		timeout:  timeout,
		interval: interval,
	}
}

// DefaultWaiter returns a waiter tuned for fleet lifecycle speeds
// (15s timeout, 100ms interval). Forks and drains complete in
// milliseconds, so the coarse 1s polling common in cluster tests would
// miss whole worker generations.
func DefaultWaiter() *Waiter {
	return NewWaiter(15*time.Second, 100*time.Millisecond)
}

// WaitFor waits for a condition to become true
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Check immediately
	if condition() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for: %s (timeout: %v)", description, w.timeout)
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// WaitForLiveWorkers waits for the supervisor to report exactly count
// live workers
func (w *Waiter) WaitForLiveWorkers(ctx context.Context, client *Client, count int) error {
	return w.WaitFor(ctx, func() bool {
		live, err := client.LiveWorkers(ctx)
		return err == nil && live == int64(count)
	}, fmt.Sprintf("fleet to have %d live workers", count))
}

// WaitForWorkerReady waits for the worker port to answer readiness
// probes
func (w *Waiter) WaitForWorkerReady(ctx context.Context, client *Client) error {
	return w.WaitFor(ctx, func() bool {
		return client.WorkerReady(ctx)
	}, "a worker to answer ready")
}

// WaitForWorkerServing waits for the worker port to answer real API
// traffic
func (w *Waiter) WaitForWorkerServing(ctx context.Context, client *Client) error {
	return w.WaitFor(ctx, func() bool {
		return client.WorkerServing(ctx)
	}, "a worker to serve API traffic")
}

// WaitForShutdownState waits for the supervisor to report it has
// entered shutdown
func (w *Waiter) WaitForShutdownState(ctx context.Context, client *Client) error {
	return w.WaitFor(ctx, func() bool {
		down, err := client.ShuttingDown(ctx)
		return err == nil && down
	}, "supervisor to enter shutdown")
}

// WaitForWorkerProcesses waits until the supervisor has exactly count
// live child processes
func (w *Waiter) WaitForWorkerProcesses(ctx context.Context, fleet *Fleet, count int) error {
	return w.WaitFor(ctx, func() bool {
		pids, err := fleet.WorkerPIDs()
		return err == nil && len(pids) == count
	}, fmt.Sprintf("supervisor to have %d worker processes", count))
}

// WaitForMetric waits until the summed value of a supervisor metric
// reaches at least min
func (w *Waiter) WaitForMetric(ctx context.Context, client *Client, name string, min float64) error {
	return w.WaitFor(ctx, func() bool {
		v, err := client.MetricValue(ctx, name)
		return err == nil && v >= min
	}, fmt.Sprintf("metric %s to reach %g", name, min))
}

// Retry retries an operation with exponential backoff
func Retry(ctx context.Context, attempts int, initialDelay time.Duration, operation func() error) error {
	var err error
	delay := initialDelay

	for i := 0; i < attempts; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
				delay = delay * 2
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
}

package framework

import (
	"context"
	"strings"
	"time"
)

// Assertions provides test assertion helpers
type Assertions struct {
	t TestingT
}

// NewAssertions creates a new Assertions instance
func NewAssertions(t TestingT) *Assertions {
	return &Assertions{t: t}
}

// LiveWorkers asserts that the supervisor reports exactly the expected
// number of live workers
func (a *Assertions) LiveWorkers(expected int, client *Client) {
	a.t.Helper()

	live, err := client.LiveWorkers(context.Background())
	if err != nil {
		a.t.Fatalf("Failed to query live workers: %v", err)
	}

	if live != int64(expected) {
		a.t.Fatalf("Fleet has %d live workers, expected %d", live, expected)
	}
}

// WorkerReady asserts that the worker port answers readiness probes
func (a *Assertions) WorkerReady(client *Client) {
	a.t.Helper()

	if !client.WorkerReady(context.Background()) {
		a.t.Fatalf("Worker port does not answer ready")
	}
}

// WorkerServing asserts that the worker port answers real API traffic
func (a *Assertions) WorkerServing(client *Client) {
	a.t.Helper()

	if !client.WorkerServing(context.Background()) {
		a.t.Fatalf("Worker port does not serve API traffic")
	}
}

// ExitCode asserts the supervisor exited with the expected code
func (a *Assertions) ExitCode(expected int, process *Process) {
	a.t.Helper()

	code, exited := process.ExitCode()
	if !exited {
		a.t.Fatalf("Process %d has not exited", process.PID)
	}
	if code != expected {
		a.t.Fatalf("Process exited with code %d, expected %d", code, expected)
	}
}

// LogContains asserts that the process logged a line containing the
// pattern
func (a *Assertions) LogContains(process *Process, pattern string) {
	a.t.Helper()

	if process.LogCount(pattern) == 0 {
		a.t.Fatalf("Logs do not contain %q", pattern)
	}
}

// LogNotContains asserts that the process never logged the pattern
func (a *Assertions) LogNotContains(process *Process, pattern string) {
	a.t.Helper()

	if n := process.LogCount(pattern); n > 0 {
		a.t.Fatalf("Logs contain %q %d times, expected none", pattern, n)
	}
}

// Eventually waits for a condition to become true, failing the test on
// timeout
func (a *Assertions) Eventually(condition func() bool, timeout, interval time.Duration, msg string) {
	a.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.t.Fatalf("Timeout waiting for condition: %s (timeout: %v)", msg, timeout)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// NoError asserts that the error is nil
func (a *Assertions) NoError(err error, msg string) {
	a.t.Helper()

	if err != nil {
		a.t.Fatalf("%s: %v", msg, err)
	}
}

// Error asserts that the error is not nil
func (a *Assertions) Error(err error, msg string) {
	a.t.Helper()

	if err == nil {
		a.t.Fatalf("%s: expected error but got nil", msg)
	}
}

// Equal asserts that two values are equal
func (a *Assertions) Equal(expected, actual interface{}, msg string) {
	a.t.Helper()

	if expected != actual {
		a.t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// True asserts that a condition is true
func (a *Assertions) True(condition bool, msg string) {
	a.t.Helper()

	if !condition {
		a.t.Fatalf("%s: expected true, got false", msg)
	}
}

// False asserts that a condition is false
func (a *Assertions) False(condition bool, msg string) {
	a.t.Helper()

	if condition {
		a.t.Fatalf("%s: expected false, got true", msg)
	}
}

// Contains asserts that a string contains a substring
func (a *Assertions) Contains(haystack, needle, msg string) {
	a.t.Helper()

	if !strings.Contains(haystack, needle) {
		a.t.Fatalf("%s: expected %q to contain %q", msg, haystack, needle)
	}
}

// Logf logs a formatted message (non-failing)
func (a *Assertions) Logf(format string, args ...interface{}) {
	a.t.Helper()
	a.t.Logf(format, args...)
}

// Step logs a test step (for visibility in test output)
func (a *Assertions) Step(step string) {
	a.t.Helper()
	a.t.Logf("\n==> %s", step)
}

// Success logs a success message
func (a *Assertions) Success(msg string) {
	a.t.Helper()
	a.t.Logf("✓ %s", msg)
}

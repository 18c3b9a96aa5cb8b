package health

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// MemoryChecker reports unhealthy when heap usage crosses a percentage
// of the heap reserved from the OS
type MemoryChecker struct {
	maxPct float64
}

// NewMemoryChecker creates a memory pressure checker.
// maxPct is the heap usage percentage above which the check fails.
func NewMemoryChecker(maxPct float64) *MemoryChecker {
	return &MemoryChecker{maxPct: maxPct}
}

// Name implements the Checker interface
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check implements the Checker interface
func (m *MemoryChecker) Check(_ context.Context) Result {
	start := time.Now()

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	pct := 0.0
	if stats.HeapSys > 0 {
		pct = float64(stats.HeapAlloc) / float64(stats.HeapSys) * 100
	}

	return Result{
		Healthy:   pct < m.maxPct,
		Message:   fmt.Sprintf("heap at %.1f%% of reserved (limit %.0f%%)", pct, m.maxPct),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// schedLagQuantum is the sleep used to probe scheduler delay. Long
// enough to smooth timer granularity, short enough that probes stay
// cheap on the request path.
const schedLagQuantum = 2 * time.Millisecond

// SchedLagChecker reports unhealthy when the runtime scheduler is too
// slow waking sleeping goroutines, a proxy for event loop saturation
type SchedLagChecker struct {
	max time.Duration
}

// NewSchedLagChecker creates a scheduler lag checker.
// max is the tolerated wakeup delay beyond the requested sleep.
func NewSchedLagChecker(max time.Duration) *SchedLagChecker {
	return &SchedLagChecker{max: max}
}

// Name implements the Checker interface
func (s *SchedLagChecker) Name() string {
	return "sched_lag"
}

// Check implements the Checker interface
func (s *SchedLagChecker) Check(ctx context.Context) Result {
	start := time.Now()

	timer := time.NewTimer(schedLagQuantum)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return Result{
			Healthy:   false,
			Message:   "probe canceled: " + ctx.Err().Error(),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	lag := time.Since(start) - schedLagQuantum
	if lag < 0 {
		lag = 0
	}

	return Result{
		Healthy:   lag <= s.max,
		Message:   fmt.Sprintf("scheduler lag %s (limit %s)", lag, s.max),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

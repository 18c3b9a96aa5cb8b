package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/shepherd/pkg/log"
	"github.com/cuemby/shepherd/pkg/metrics"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Name returns the check's name in the checks map
	Name() string
}

// State tracks process-wide readiness and the named check results.
// One instance exists per worker process.
//
// Readiness is an explicit gate flipped by the lifecycle (false until
// the listener is up, false again the moment draining starts); health
// is derived on read as the AND of the named check results. The
// external load balancer is expected to stop routing when the
// readiness probe fails; nothing in-process refuses traffic.
type State struct {
	mu       sync.RWMutex
	ready    bool
	checks   map[string]Result
	checkers []Checker

	// OnTransition, when set, is invoked once per actual readiness
	// flip (never on idempotent repeats). Set before serving starts.
	OnTransition func(ready bool)
}

// NewState creates health state with the given checkers. The process
// starts not ready.
func NewState(checkers ...Checker) *State {
	return &State{
		checks:   make(map[string]Result),
		checkers: checkers,
	}
}

// MarkReady flips readiness on. Idempotent: repeated calls change
// nothing and emit nothing.
func (s *State) MarkReady() {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return
	}
	s.ready = true
	notify := s.OnTransition
	s.mu.Unlock()

	log.WithComponent("health").Info().Msg("marked ready")
	if notify != nil {
		notify(true)
	}
}

// MarkNotReady flips readiness off. Idempotent.
func (s *State) MarkNotReady() {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return
	}
	s.ready = false
	notify := s.OnTransition
	s.mu.Unlock()

	log.WithComponent("health").Warn().Msg("marked not ready")
	if notify != nil {
		notify(false)
	}
}

// Ready reports the readiness gate
func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// UpdateCheck upserts one named check result. The aggregate is never
// stored; Healthy computes it on read.
func (s *State) UpdateCheck(name string, result Result) {
	s.mu.Lock()
	s.checks[name] = result
	s.mu.Unlock()

	status := 0.0
	if result.Healthy {
		status = 1.0
	}
	metrics.HealthCheckStatus.WithLabelValues(name).Set(status)
}

// RunChecks synchronously evaluates every configured checker, updates
// the checks map, and returns the results. Safe to call concurrently
// with request handling; checks are independent, so last-writer-wins
// per name.
func (s *State) RunChecks(ctx context.Context) map[string]Result {
	results := make(map[string]Result, len(s.checkers))
	for _, checker := range s.checkers {
		timer := metrics.NewTimer()
		result := checker.Check(ctx)
		timer.ObserveDurationVec(metrics.HealthCheckDuration, checker.Name())

		s.UpdateCheck(checker.Name(), result)
		results[checker.Name()] = result

		if !result.Healthy {
			log.WithComponent("health").Warn().
				Str("check", checker.Name()).
				Str("detail", result.Message).
				Msg("health check failed")
		}
	}
	return results
}

// Checks returns a copy of the last known check results
func (s *State) Checks() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Result, len(s.checks))
	for name, result := range s.checks {
		out[name] = result
	}
	return out
}

// Healthy reports the AND of all known check results. True when no
// check has run yet.
func (s *State) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, result := range s.checks {
		if !result.Healthy {
			return false
		}
	}
	return true
}

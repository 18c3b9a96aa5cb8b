package supervisor

import (
	"testing"
	"time"
)

func TestGovernorAllowsUpToMax(t *testing.T) {
	gov := newGovernor(time.Minute, 3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !gov.allow(1, now) {
			t.Fatalf("respawn %d should be allowed", i+1)
		}
		gov.record(1, now)
	}

	if gov.allow(1, now) {
		t.Error("respawn beyond max should be denied")
	}
	if got := gov.count(1); got != 3 {
		t.Errorf("expected 3 recorded restarts, got %d", got)
	}
}

func TestGovernorPrunesExpiredInstants(t *testing.T) {
	gov := newGovernor(time.Minute, 2)
	now := time.Now()

	// Exhaust the budget with old instants
	gov.record(1, now.Add(-2*time.Minute))
	gov.record(1, now.Add(-90*time.Second))
	if gov.allow(1, now.Add(-80*time.Second)) == false {
		t.Fatal("budget should be exhausted inside the window")
	}

	// Outside the window both instants expire
	if !gov.allow(1, now) {
		t.Error("expired instants should not count against the budget")
	}
	if got := gov.count(1); got != 0 {
		t.Errorf("expected pruned history, got %d entries", got)
	}
}

func TestGovernorSlotsAreIndependent(t *testing.T) {
	gov := newGovernor(time.Minute, 1)
	now := time.Now()

	gov.record(1, now)
	if gov.allow(1, now) {
		t.Error("slot 1 budget should be exhausted")
	}
	if !gov.allow(2, now) {
		t.Error("slot 2 should have a fresh budget")
	}
}

func TestGovernorZeroMaxNeverAllows(t *testing.T) {
	gov := newGovernor(time.Minute, 0)

	if gov.allow(1, time.Now()) {
		t.Error("max of zero should deny every respawn")
	}
}

func TestGovernorSlidingWindowScenario(t *testing.T) {
	// Six rapid crashes against a budget of five in sixty seconds:
	// the first five respawns pass, the sixth is denied.
	gov := newGovernor(60*time.Second, 5)
	start := time.Now()

	allowed := 0
	for i := 0; i < 6; i++ {
		at := start.Add(time.Duration(i) * time.Second)
		if gov.allow(1, at) {
			gov.record(1, at)
			allowed++
		}
	}

	if allowed != 5 {
		t.Errorf("expected exactly 5 allowed respawns, got %d", allowed)
	}
}

package supervisor

import (
	"time"
)

// governor bounds crash respawns per worker slot with a sliding
// window. History is keyed by slot, not by process, so a slot that
// keeps crashing cannot reset its budget by being respawned.
type governor struct {
	window   time.Duration
	max      int
	restarts map[int][]time.Time
}

func newGovernor(window time.Duration, max int) *governor {
	return &governor{
		window:   window,
		max:      max,
		restarts: make(map[int][]time.Time),
	}
}

// allow reports whether the slot may be respawned at now. Instants
// older than the window are pruned first; the decision is made on the
// remaining count. allow does not record the respawn; callers that
// proceed must call record.
func (g *governor) allow(slot int, now time.Time) bool {
	cutoff := now.Add(-g.window)

	history := g.restarts[slot]
	kept := history[:0]
	for _, t := range history {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	g.restarts[slot] = kept

	return len(kept) < g.max
}

// record appends a respawn instant to the slot's history.
func (g *governor) record(slot int, now time.Time) {
	g.restarts[slot] = append(g.restarts[slot], now)
}

// count returns the slot's current history length without pruning.
func (g *governor) count(slot int) int {
	return len(g.restarts[slot])
}

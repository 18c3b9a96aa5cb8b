package supervisor

import (
	"sort"
	"syscall"
	"time"

	"github.com/cuemby/shepherd/pkg/events"
)

type rollingPhase int

const (
	// rollWaitListening: replacement forked, waiting for its bind report
	rollWaitListening rollingPhase = iota
	// rollWaitExit: old worker draining, waiting for its exit
	rollWaitExit
)

// rollingState tracks one in-flight rolling restart. Slots rotate
// strictly in order: fork the replacement, wait until it reports
// listening, then drain the old worker and wait for its exit before
// moving to the next slot. The old worker is never signaled before its
// replacement is accepting, so fleet capacity never drops below the
// worker count minus one.
type rollingState struct {
	queue    []int
	phase    rollingPhase
	newPID   int
	oldPID   int
	deadline time.Time
}

func (s *Supervisor) onRollingRequested(reason string) {
	if s.shuttingDown {
		s.logger.Warn().Str("signal", reason).Msg("shutdown in progress, ignoring rolling restart")
		return
	}
	if s.roll != nil {
		s.logger.Warn().Str("signal", reason).Msg("rolling restart already in progress, ignoring signal")
		return
	}

	slots := s.liveSlots()
	if len(slots) == 0 {
		s.logger.Warn().Msg("no live workers to restart")
		return
	}

	s.logger.Info().
		Ints("slots", slots).
		Str("signal", reason).
		Msg("starting rolling restart")
	s.emit(events.EventRollingStarted, 0, reason)

	s.roll = &rollingState{queue: slots}
	s.rollStep()
}

func (s *Supervisor) liveSlots() []int {
	slots := make([]int, 0, len(s.workers))
	for _, rec := range s.workers {
		slots = append(slots, rec.slot)
	}
	sort.Ints(slots)
	return slots
}

// rollStep forks the replacement for the next queued slot, or finishes
// the rotation when the queue is empty. Slots whose worker crashed out
// from under the rotation are skipped: the crash path already handled
// their respawn.
func (s *Supervisor) rollStep() {
	for len(s.roll.queue) > 0 {
		slot := s.roll.queue[0]
		old := s.workerBySlot(slot)
		if old == nil {
			s.roll.queue = s.roll.queue[1:]
			continue
		}

		replacement := s.spawn(slot)
		if replacement == nil {
			s.abortRolling("failed to fork replacement")
			return
		}

		s.logger.Info().
			Int("slot", slot).
			Int("old_pid", old.pid).
			Int("new_pid", replacement.pid).
			Msg("forked replacement worker")

		s.roll.phase = rollWaitListening
		s.roll.newPID = replacement.pid
		s.roll.oldPID = old.pid
		s.roll.deadline = time.Now().Add(s.cfg.HeartbeatTimeout())
		return
	}

	s.logger.Info().Msg("rolling restart complete")
	s.emit(events.EventRollingComplete, 0, "")
	s.roll = nil
}

// workerBySlot returns the slot's current worker, preferring one not
// yet draining when two generations briefly coexist.
func (s *Supervisor) workerBySlot(slot int) *workerRecord {
	var found *workerRecord
	for _, rec := range s.workers {
		if rec.slot != slot {
			continue
		}
		if !rec.draining {
			return rec
		}
		found = rec
	}
	return found
}

// rollOnListening advances the rotation once the replacement reports
// its bind: only then is the old worker asked to drain.
func (s *Supervisor) rollOnListening(rec *workerRecord) {
	if s.roll.phase != rollWaitListening || rec.pid != s.roll.newPID {
		return
	}

	old := s.workers[s.roll.oldPID]
	if old == nil {
		// old worker crashed while the replacement was starting; the
		// replacement already owns the slot
		s.roll.queue = s.roll.queue[1:]
		s.rollStep()
		return
	}

	s.logger.Info().
		Int("slot", rec.slot).
		Int("old_pid", old.pid).
		Int("new_pid", rec.pid).
		Msg("replacement listening, draining old worker")

	old.draining = true
	if err := old.proc.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warn().
			Int("slot", old.slot).
			Int("pid", old.pid).
			Err(err).
			Msg("failed to signal old worker")
	}
	s.roll.phase = rollWaitExit
	s.roll.deadline = time.Now().Add(s.cfg.DrainBudget() + shutdownGrace)
}

// rollOnExit folds a worker exit into the rotation. It reports true
// when the exit was absorbed: the expected teardown of the old worker,
// or a replacement death that aborts the rotation. Exits of slots not
// currently rotating report false and take the normal respawn path.
func (s *Supervisor) rollOnExit(rec *workerRecord, ev controlEvent) bool {
	roll := s.roll

	switch ev.pid {
	case roll.newPID:
		s.logger.Error().
			Int("slot", rec.slot).
			Int("exit_code", ev.exitCode).
			Msg("replacement worker died, aborting rolling restart")
		s.abortRolling("replacement died")
		if s.workers[roll.oldPID] == nil {
			// nothing serving the slot anymore; treat the death as an
			// ordinary crash so the governor decides on a fresh spawn
			s.respawn(rec, ev.exitCode)
		}
		return true

	case roll.oldPID:
		if roll.phase == rollWaitExit {
			s.logger.Info().Int("slot", rec.slot).Msg("old worker exited, slot rotated")
			roll.queue = roll.queue[1:]
			s.rollStep()
			return true
		}
		// crashed before handover; the pending replacement owns the
		// slot once it reports listening
		s.logger.Warn().Int("slot", rec.slot).Msg("old worker crashed during handover")
		return true
	}

	return false
}

// rollOnTick enforces the rotation's phase deadlines. A replacement
// that cannot report listening within the watchdog window is killed,
// which aborts the rotation; an old worker that outlives its drain
// budget is killed, which advances it.
func (s *Supervisor) rollOnTick(now time.Time) {
	if !now.After(s.roll.deadline) {
		return
	}

	switch s.roll.phase {
	case rollWaitListening:
		rec := s.workers[s.roll.newPID]
		if rec != nil && !rec.watchdogKilled {
			s.logger.Error().
				Int("slot", rec.slot).
				Int("pid", rec.pid).
				Msg("replacement never reported listening, killing it")
			rec.watchdogKilled = true
			_ = rec.proc.Kill()
		}
	case rollWaitExit:
		rec := s.workers[s.roll.oldPID]
		if rec != nil && !rec.watchdogKilled {
			s.logger.Error().
				Int("slot", rec.slot).
				Int("pid", rec.pid).
				Msg("old worker exceeded drain budget, killing it")
			rec.watchdogKilled = true
			_ = rec.proc.Kill()
		}
	}
}

func (s *Supervisor) abortRolling(reason string) {
	s.logger.Error().
		Str("reason", reason).
		Ints("remaining", s.roll.queue).
		Msg("rolling restart aborted")
	s.emit(events.EventRollingAborted, 0, reason)
	s.roll = nil
}

package drain

import (
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transitionRecorder captures state changes with timestamps
type transitionRecorder struct {
	mu     sync.Mutex
	states []State
	times  []time.Time
}

func (r *transitionRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	r.times = append(r.times, time.Now())
}

func (r *transitionRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

func (r *transitionRecorder) timeOf(s State) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, state := range r.states {
		if state == s {
			return r.times[i], true
		}
	}
	return time.Time{}, false
}

func startController(t *testing.T, handler http.Handler, drainDelay, forceTimeout time.Duration) (*Controller, string, *transitionRecorder) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	rec := &transitionRecorder{}
	server := &http.Server{Handler: handler}
	ctrl := NewController(server, drainDelay, forceTimeout).
		WithPollInterval(25 * time.Millisecond).
		WithOnTransition(rec.record)

	go func() {
		_ = ctrl.Serve(listener)
	}()

	// Wait for the listener to accept
	addr := listener.Addr().String()
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return ctrl, addr, rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}

func TestController_CleanDrainWithNoConnections(t *testing.T) {
	ctrl, _, rec := startController(t, okHandler(), 50*time.Millisecond, 5*time.Second)

	require.Equal(t, StateRunning, ctrl.State())

	ctrl.Trigger("test")

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}

	assert.True(t, ctrl.Clean())
	assert.Equal(t, StateTerminated, ctrl.State())
	assert.Equal(t, []State{StateDraining, StateClosing, StateTerminated}, rec.snapshot())
}

func TestController_ReadinessFlipsBeforeTriggerReturns(t *testing.T) {
	ctrl, _, _ := startController(t, okHandler(), 200*time.Millisecond, 5*time.Second)

	notReadyAt := time.Time{}
	ctrl.WithNotReady(func() {
		notReadyAt = time.Now()
	})

	ctrl.Trigger("test")

	// The gate must have flipped synchronously, while the sequence is
	// still in its drain delay
	require.False(t, notReadyAt.IsZero(), "readiness gate did not flip during Trigger")
	assert.Equal(t, StateDraining, ctrl.State())

	<-ctrl.Done()
}

func TestController_ClosesIdleKeepAliveConnections(t *testing.T) {
	ctrl, addr, _ := startController(t, okHandler(), 50*time.Millisecond, 5*time.Second)

	// Park an idle keep-alive connection on the server
	transport := &http.Transport{}
	client := &http.Client{Transport: transport}
	resp, err := client.Get("http://" + addr + "/")
	require.NoError(t, err)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return ctrl.OpenConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	ctrl.Trigger("test")

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}

	// Idle connections get closed at CLOSING, well before the force
	// timeout, so the shutdown is clean
	assert.True(t, ctrl.Clean())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, ctrl.OpenConnections())
}

func TestController_ForcedShutdownOnHangingConnection(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	hang := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	ctrl, addr, rec := startController(t, hang, 200*time.Millisecond, time.Second)
	ctrl.WithPollInterval(100 * time.Millisecond)

	notReadyAt := time.Time{}
	ctrl.WithNotReady(func() {
		notReadyAt = time.Now()
	})

	// A request that never completes holds one connection open
	connErr := make(chan time.Time, 1)
	go func() {
		client := &http.Client{Transport: &http.Transport{}}
		_, err := client.Get("http://" + addr + "/")
		if err != nil {
			connErr <- time.Now()
		}
	}()

	require.Eventually(t, func() bool {
		return ctrl.OpenConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	ctrl.Trigger("test")

	select {
	case <-ctrl.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("drain did not finish")
	}
	elapsed := time.Since(start)

	// Forced path: non-clean, at the force timeout measured from the
	// trigger, not from the listener close
	assert.False(t, ctrl.Clean())
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	// Listener closed only after the drain delay
	closingAt, ok := rec.timeOf(StateClosing)
	require.True(t, ok, "no CLOSING transition recorded")
	assert.GreaterOrEqual(t, closingAt.Sub(start), 200*time.Millisecond)

	// The hanging connection was destroyed, and only after the
	// readiness gate had flipped
	select {
	case destroyedAt := <-connErr:
		require.False(t, notReadyAt.IsZero())
		assert.True(t, notReadyAt.Before(destroyedAt),
			"connection destroyed before readiness flipped")
	case <-time.After(2 * time.Second):
		t.Fatal("hanging connection was never destroyed")
	}
}

func TestController_DuplicateTriggerIsNoOp(t *testing.T) {
	ctrl, _, rec := startController(t, okHandler(), 100*time.Millisecond, 5*time.Second)

	ctrl.Trigger("first")
	ctrl.Trigger("second")
	ctrl.Trigger("third")

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}

	// Exactly one sequence ran
	draining := 0
	for _, s := range rec.snapshot() {
		if s == StateDraining {
			draining++
		}
	}
	assert.Equal(t, 1, draining)

	// And triggering after TERMINATED changes nothing
	ctrl.Trigger("late")
	assert.Equal(t, StateTerminated, ctrl.State())
}

func TestController_StopsAcceptingWhenClosing(t *testing.T) {
	block := make(chan struct{})

	hang := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	ctrl, addr, _ := startController(t, hang, 20*time.Millisecond, 5*time.Second)

	// Hold the controller in CLOSING with one stuck connection
	go func() {
		client := &http.Client{Transport: &http.Transport{}}
		_, _ = client.Get("http://" + addr + "/")
	}()
	require.Eventually(t, func() bool {
		return ctrl.OpenConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctrl.Trigger("test")
	require.Eventually(t, func() bool {
		return ctrl.State() == StateClosing
	}, 2*time.Second, 10*time.Millisecond)

	// New connections must be refused
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err == nil {
		conn.Close()
		t.Fatal("expected dial to fail after listener closed")
	}

	// Release the stuck handler so the drain finishes cleanly
	close(block)
	select {
	case <-ctrl.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("drain did not finish")
	}
	assert.True(t, ctrl.Clean())
}

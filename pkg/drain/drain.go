package drain

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/shepherd/pkg/log"
	"github.com/cuemby/shepherd/pkg/metrics"
)

// State is a drain controller lifecycle phase. Transitions are strictly
// forward; a controller never re-enters an earlier state.
type State int

const (
	// StateRunning accepts connections and serves traffic
	StateRunning State = iota

	// StateDraining has failed its readiness probe but still accepts
	// and serves; the load balancer is being given time to notice
	StateDraining

	// StateClosing no longer accepts; open connections are being
	// closed out
	StateClosing

	// StateTerminated is final; the process exits after reaching it
	StateTerminated
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// defaultPollInterval is how often the closing loop re-checks the
// tracked connection set
const defaultPollInterval = 500 * time.Millisecond

// Controller walks one worker process through its shutdown sequence:
//
//	RUNNING → DRAINING → CLOSING → TERMINATED
//
// The controller owns the listener and tracks every accepted
// connection through the server's ConnState hook. Trigger starts the
// sequence; duplicate triggers are logged no-ops. The force timeout is
// measured from the trigger, so the whole sequence is bounded no
// matter how the drain delay and timeout are configured.
type Controller struct {
	mu       sync.Mutex
	state    State
	conns    map[net.Conn]struct{}
	clean    bool
	listener net.Listener

	server       *http.Server
	drainDelay   time.Duration
	forceTimeout time.Duration
	pollInterval time.Duration

	notReady     func()
	onTransition func(State)

	done chan struct{}
}

// NewController creates a drain controller wrapping the given server.
// drainDelay is the pause between failing the readiness probe and
// closing the listener; forceTimeout bounds the whole sequence from
// the trigger.
func NewController(server *http.Server, drainDelay, forceTimeout time.Duration) *Controller {
	c := &Controller{
		state:        StateRunning,
		conns:        make(map[net.Conn]struct{}),
		server:       server,
		drainDelay:   drainDelay,
		forceTimeout: forceTimeout,
		pollInterval: defaultPollInterval,
		done:         make(chan struct{}),
	}
	server.ConnState = c.connState
	return c
}

// WithNotReady sets the hook called synchronously when draining
// starts, before anything else happens. Wire the health readiness
// gate here.
func (c *Controller) WithNotReady(fn func()) *Controller {
	c.notReady = fn
	return c
}

// WithOnTransition sets a hook called after every state change
func (c *Controller) WithOnTransition(fn func(State)) *Controller {
	c.onTransition = fn
	return c
}

// WithPollInterval overrides the closing-loop poll interval
func (c *Controller) WithPollInterval(interval time.Duration) *Controller {
	c.pollInterval = interval
	return c
}

// Serve runs the wrapped server on the given listener and blocks until
// the server stops. The expected shutdown-path error is filtered out.
func (c *Controller) Serve(listener net.Listener) error {
	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()

	err := c.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// State returns the current lifecycle phase
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OpenConnections returns the tracked connection count
func (c *Controller) OpenConnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// Done returns a channel closed when the sequence reaches TERMINATED
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Clean reports whether the sequence finished with every connection
// closed before the force timeout. Meaningful after Done is closed.
func (c *Controller) Clean() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clean
}

// Trigger starts the drain sequence. The readiness gate flips
// synchronously before Trigger returns; the timed remainder runs in
// the background. Calling Trigger again while the sequence is underway
// logs and does nothing.
func (c *Controller) Trigger(reason string) {
	c.mu.Lock()
	if c.state != StateRunning {
		state := c.state
		c.mu.Unlock()
		log.WithComponent("drain").Warn().
			Str("reason", reason).
			Str("state", state.String()).
			Msg("shutdown already in progress, ignoring request")
		return
	}
	c.state = StateDraining
	c.mu.Unlock()

	log.WithComponent("drain").Info().
		Str("reason", reason).
		Dur("drain_delay", c.drainDelay).
		Dur("force_timeout", c.forceTimeout).
		Msg("drain started")
	metrics.DrainState.Set(float64(StateDraining))
	if c.onTransition != nil {
		c.onTransition(StateDraining)
	}
	if c.notReady != nil {
		c.notReady()
	}

	forceDeadline := time.Now().Add(c.forceTimeout)
	go c.run(forceDeadline)
}

// run executes the timed part of the sequence: wait out the drain
// delay, close the listener, then poll the connection set until it
// empties or the force deadline fires.
func (c *Controller) run(forceDeadline time.Time) {
	time.Sleep(c.drainDelay)

	c.transition(StateClosing)
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	// Sends FIN to idle keep-alive connections and marks active ones
	// close-after-response
	c.server.SetKeepAlivesEnabled(false)

	if c.OpenConnections() == 0 {
		c.finish(true)
		return
	}

	forceTimer := time.NewTimer(time.Until(forceDeadline))
	defer forceTimer.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.OpenConnections() == 0 {
				c.finish(true)
				return
			}
		case <-forceTimer.C:
			remaining := c.OpenConnections()
			log.WithComponent("drain").Error().
				Int("open_connections", remaining).
				Msg("force timeout elapsed, destroying remaining connections")
			c.server.Close()
			c.finish(false)
			return
		}
	}
}

func (c *Controller) finish(clean bool) {
	c.mu.Lock()
	c.clean = clean
	c.mu.Unlock()

	c.transition(StateTerminated)
	if clean {
		log.WithComponent("drain").Info().Msg("drain complete, all connections closed")
	} else {
		log.WithComponent("drain").Warn().Msg("drain forced, connections were destroyed")
	}
	close(c.done)
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	log.WithComponent("drain").Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("drain state changed")
	metrics.DrainState.Set(float64(to))
	if c.onTransition != nil {
		c.onTransition(to)
	}
}

// connState tracks the lifecycle of every accepted connection. Adds
// happen in any phase; removal always wins, even after TERMINATED.
func (c *Controller) connState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		c.mu.Lock()
		c.conns[conn] = struct{}{}
		open := len(c.conns)
		c.mu.Unlock()
		metrics.OpenConnections.Set(float64(open))
	case http.StateClosed, http.StateHijacked:
		c.mu.Lock()
		delete(c.conns, conn)
		open := len(c.conns)
		c.mu.Unlock()
		metrics.OpenConnections.Set(float64(open))
	}
}

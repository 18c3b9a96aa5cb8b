package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventWorkerStarted       EventType = "worker.started"
	EventWorkerListening     EventType = "worker.listening"
	EventWorkerExited        EventType = "worker.exited"
	EventWorkerKilled        EventType = "worker.killed"
	EventWorkerRestartDenied EventType = "worker.restart_denied"
	EventShutdownStarted     EventType = "cluster.shutdown_started"
	EventShutdownComplete    EventType = "cluster.shutdown_complete"
	EventRollingStarted      EventType = "cluster.rolling_restart_started"
	EventRollingComplete     EventType = "cluster.rolling_restart_complete"
	EventRollingAborted      EventType = "cluster.rolling_restart_aborted"
)

// Event represents a lifecycle event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Slot      int // 0 for cluster-scoped events
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

// Emit publishes a slot-scoped event with a message
func (b *Broker) Emit(eventType EventType, slot int, message string) {
	b.Publish(&Event{
		Type:    eventType,
		Slot:    slot,
		Message: message,
	})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			// Flush events published before the stop, so a subscriber
			// waiting on the final lifecycle event still sees it.
			for {
				select {
				case event := <-b.eventCh:
					b.broadcast(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

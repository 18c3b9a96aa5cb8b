package ipc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
)

// PipeFD is the file descriptor number a worker inherits for its
// message pipe to the supervisor (stdin=0, stdout=1, stderr=2, pipe=3).
const PipeFD = 3

// EnvWorkerSlot marks a process as a worker and carries its slot number.
// The supervisor sets it on every child it forks; an empty value means
// the process is the supervisor.
const EnvWorkerSlot = "SHEPHERD_WORKER_SLOT"

// WorkerSlot reads the slot number from the environment. ok is false
// when the process was not forked by a supervisor.
func WorkerSlot() (slot int, ok bool) {
	v := os.Getenv(EnvWorkerSlot)
	if v == "" {
		return 0, false
	}
	slot, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return slot, true
}

// MessageType identifies a worker-to-supervisor message
type MessageType string

const (
	// TypeHeartbeat resets the worker's watchdog timer
	TypeHeartbeat MessageType = "heartbeat"
	// TypeListening reports a successful bind; carries the address
	TypeListening MessageType = "listening"
)

// Message is one worker-to-supervisor notification, encoded as a
// single JSON line on the inherited pipe
type Message struct {
	Type MessageType `json:"type"`
	Slot int         `json:"slot"`
	Addr string      `json:"addr,omitempty"`
}

// Writer sends messages on the worker side of the pipe
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a message writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send encodes a message as one JSON line
func (w *Writer) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	// One write per line; heartbeat ticker and listening notification
	// may fire concurrently
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Heartbeat sends a heartbeat message for the given slot
func (w *Writer) Heartbeat(slot int) error {
	return w.Send(Message{Type: TypeHeartbeat, Slot: slot})
}

// Listening sends a listening notification with the bound address
func (w *Writer) Listening(slot int, addr string) error {
	return w.Send(Message{Type: TypeListening, Slot: slot, Addr: addr})
}

// ReadLoop decodes JSON-line messages from r and invokes fn for each
// until EOF or a read error. Malformed lines are skipped so a partially
// written line during worker death cannot wedge the supervisor.
func ReadLoop(r io.Reader, fn func(Message)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		fn(msg)
	}
	return scanner.Err()
}

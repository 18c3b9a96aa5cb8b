package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/cuemby/shepherd/pkg/ipc"
	"github.com/cuemby/shepherd/pkg/log"
)

// Process is a handle to one launched worker. The supervisor is the
// only holder of a Process and the only sender of signals to it.
type Process interface {
	// PID returns the OS process id
	PID() int
	// Signal delivers a signal to the worker process
	Signal(sig os.Signal) error
	// Kill forcibly terminates the worker and its process group
	Kill() error
}

// Launcher forks worker processes and feeds their lifecycle events
// (pipe messages, exit) into the supervisor control loop. The exec
// implementation re-runs the current binary; tests substitute a fake.
type Launcher interface {
	Launch(slot int) (Process, error)
}

// execLauncher re-executes the supervisor's own binary with the worker
// slot marked in the environment. The child inherits the original
// command line, so it loads identical configuration, and dispatches
// into the worker runtime when it sees the slot variable.
type execLauncher struct {
	binary string
	args   []string
	events chan<- controlEvent
}

func newExecLauncher(events chan<- controlEvent) (*execLauncher, error) {
	binary, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve own binary path: %w", err)
	}

	return &execLauncher{
		binary: binary,
		args:   os.Args[1:],
		events: events,
	}, nil
}

// Launch forks one worker for the given slot. The worker inherits a
// pipe write end on fd 3 (stdin, stdout, stderr, pipe) and reports
// heartbeat and listening messages on it; the supervisor end is pumped
// into the control loop until the worker closes it or exits.
func (l *execLauncher) Launch(slot int) (Process, error) {
	pipeRead, pipeWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create message pipe: %w", err)
	}

	cmd := exec.Command(l.binary, l.args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", ipc.EnvWorkerSlot, slot))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// ExtraFiles[0] lands on fd 3 in the child, matching ipc.PipeFD
	cmd.ExtraFiles = []*os.File{pipeWrite}
	// Own process group so a forced kill takes down anything the
	// worker itself spawned
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = pipeRead.Close()
		_ = pipeWrite.Close()
		return nil, fmt.Errorf("failed to fork worker %d: %w", slot, err)
	}

	// The child holds its own copy of the write end now
	_ = pipeWrite.Close()

	pid := cmd.Process.Pid

	go l.pumpMessages(slot, pid, pipeRead)
	go l.reap(slot, pid, cmd)

	return &execProcess{cmd: cmd}, nil
}

// pumpMessages translates pipe messages into control events. The slot
// in the message is ignored in favor of the slot this pipe belongs to;
// a confused or malicious worker cannot impersonate a sibling.
func (l *execLauncher) pumpMessages(slot, pid int, r *os.File) {
	defer func() { _ = r.Close() }()

	err := ipc.ReadLoop(r, func(msg ipc.Message) {
		switch msg.Type {
		case ipc.TypeHeartbeat:
			l.events <- controlEvent{typ: workerHeartbeat, slot: slot, pid: pid}
		case ipc.TypeListening:
			l.events <- controlEvent{typ: workerListening, slot: slot, pid: pid, addr: msg.Addr}
		}
	})
	if err != nil {
		log.WithComponent("launcher").Debug().
			Int("slot", slot).
			Int("pid", pid).
			Err(err).
			Msg("worker pipe closed with error")
	}
}

// reap waits for the worker to exit and reports its exit code. A
// signal death reports -1, which the control loop treats like any
// other crash code.
func (l *execLauncher) reap(slot, pid int, cmd *exec.Cmd) {
	_ = cmd.Wait()
	l.events <- controlEvent{
		typ:      workerExited,
		slot:     slot,
		pid:      pid,
		exitCode: cmd.ProcessState.ExitCode(),
	}
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// Kill sends SIGKILL to the worker's process group, falling back to
// the process itself if the group is already gone.
func (p *execProcess) Kill() error {
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

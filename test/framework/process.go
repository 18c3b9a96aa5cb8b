package framework

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// NewProcess creates a new Process instance
func NewProcess(binary string) *Process {
	ctx, cancel := context.WithCancel(context.Background())
	return &Process{
		Binary: binary,
		Args:   []string{},
		Env:    []string{},
		Ctx:    ctx,
		Cancel: cancel,
		logs:   &LogBuffer{},
	}
}

// Process manages a shepherd process with logging and lifecycle control.
// A single reaper goroutine owns cmd.Wait, so the exit code can be read
// any number of times after the process dies.
type Process struct {
	Binary  string
	Args    []string
	Env     []string
	Ctx     context.Context
	Cancel  context.CancelFunc
	LogFile string
	PID     int

	cmd      *exec.Cmd
	logs     *LogBuffer
	done     chan struct{}
	exitCode int
	mu       sync.Mutex
}

// Start starts the process
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started with PID %d", p.PID)
	}

	p.cmd = exec.CommandContext(p.Ctx, p.Binary, p.Args...)
	p.cmd.Env = append(os.Environ(), p.Env...)

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	p.PID = p.cmd.Process.Pid
	p.done = make(chan struct{})

	go p.captureLogs("stdout", stdout)
	go p.captureLogs("stderr", stderr)

	if p.LogFile != "" {
		go p.writeLogsToFile()
	}

	go p.reap()

	return nil
}

// Stop stops the process gracefully with SIGTERM
func (p *Process) Stop() error {
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	if _, err := p.WaitExit(15 * time.Second); err != nil {
		// Process didn't drain in time, force kill
		return p.Kill()
	}
	return nil
}

// Kill forcefully kills the process with SIGKILL
func (p *Process) Kill() error {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("process not running")
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill process: %w", err)
	}

	<-done
	return nil
}

// Signal sends a signal to the process (SIGUSR2 triggers a rolling
// restart, SIGTERM a graceful shutdown)
func (p *Process) Signal(sig os.Signal) error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("process not running")
	}

	if err := cmd.Process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send %v: %w", sig, err)
	}
	return nil
}

// IsRunning returns true if the process is currently running
func (p *Process) IsRunning() bool {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return false
	}

	select {
	case <-done:
		return false
	default:
		return true
	}
}

// WaitExit blocks until the process exits and returns its exit code
func (p *Process) WaitExit(timeout time.Duration) (int, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return 0, fmt.Errorf("process not started")
	}

	select {
	case <-done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("timeout waiting for process %d to exit", p.PID)
	}
}

// ExitCode returns the exit code once the process has exited
func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return 0, false
	}

	select {
	case <-done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, true
	default:
		return 0, false
	}
}

// Logs returns all captured logs as a string
func (p *Process) Logs() string {
	return p.logs.String()
}

// LogsSince returns logs since the given timestamp
func (p *Process) LogsSince(since time.Time) string {
	return p.logs.Since(since)
}

// WaitForLog waits for a specific log line to appear
func (p *Process) WaitForLog(pattern string, timeout time.Duration) error {
	return p.WaitForLogCount(pattern, 1, timeout)
}

// WaitForLogCount waits until a pattern has appeared at least n times
func (p *Process) WaitForLogCount(pattern string, n int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(p.Ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if p.logs.Count(pattern) >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %d occurrences of log pattern %q (saw %d)",
				n, pattern, p.logs.Count(pattern))
		case <-ticker.C:
		}
	}
}

// LogCount returns the number of captured lines containing the pattern
func (p *Process) LogCount(pattern string) int {
	return p.logs.Count(pattern)
}

// Private methods

// reap collects the exit status exactly once
func (p *Process) reap() {
	err := p.cmd.Wait()

	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}

	p.mu.Lock()
	p.exitCode = code
	done := p.done
	p.mu.Unlock()

	close(done)
}

func (p *Process) captureLogs(source string, reader io.Reader) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		p.logs.Append(line)

		// Also print to stdout for test visibility
		fmt.Printf("[%s] %s\n", source, line)
	}
}

func (p *Process) writeLogsToFile() {
	file, err := os.Create(p.LogFile)
	if err != nil {
		fmt.Printf("Warning: failed to create log file %s: %v\n", p.LogFile, err)
		return
	}
	defer file.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.Ctx.Done():
			_, _ = file.WriteString(p.logs.String())
			return
		case <-ticker.C:
			_, _ = file.WriteString(p.logs.String())
			_ = file.Sync()
		}
	}
}

// LogBuffer provides thread-safe log buffering with timestamps
type LogBuffer struct {
	mu    sync.RWMutex
	lines []logLine
}

type logLine struct {
	timestamp time.Time
	content   string
}

// Append adds a log line to the buffer
func (lb *LogBuffer) Append(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, logLine{
		timestamp: time.Now(),
		content:   line,
	})
}

// String returns all logs as a single string
func (lb *LogBuffer) String() string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	var buf bytes.Buffer
	for _, line := range lb.lines {
		buf.WriteString(line.content)
		buf.WriteString("\n")
	}
	return buf.String()
}

// Since returns logs since the given timestamp
func (lb *LogBuffer) Since(since time.Time) string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	var buf bytes.Buffer
	for _, line := range lb.lines {
		if line.timestamp.After(since) {
			buf.WriteString(line.content)
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// Contains checks if the logs contain a specific pattern
func (lb *LogBuffer) Contains(pattern string) bool {
	return lb.Count(pattern) > 0
}

// Count returns how many lines contain the pattern
func (lb *LogBuffer) Count(pattern string) int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	n := 0
	for _, line := range lb.lines {
		if bytes.Contains([]byte(line.content), []byte(pattern)) {
			n++
		}
	}
	return n
}

// Clear clears all logs
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = nil
}

// Lines returns the number of log lines
func (lb *LogBuffer) Lines() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return len(lb.lines)
}

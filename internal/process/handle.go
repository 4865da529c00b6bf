package process

import (
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Handle is a running (or finished) service process. Only the Supervisor
// mutates it; everything else reads.
type Handle struct {
	id       string
	service  string
	command  string
	pid      int
	detached bool
	started  time.Time

	stopStrategy StopStrategy
	stopTimeout  time.Duration

	cmd    *exec.Cmd
	stdout *lineCapture
	stderr *lineCapture

	done     chan struct{}
	alive    atomic.Bool
	exitCode atomic.Int32

	mu      sync.RWMutex
	waitErr error

	termMu     sync.Mutex
	terminated bool
	closeOnce  sync.Once
}

// ID is the unique identifier assigned at spawn time.
func (h *Handle) ID() string { return h.id }

// Service is the name of the service this process runs.
func (h *Handle) Service() string { return h.service }

// Command is the launched executable.
func (h *Handle) Command() string { return h.command }

// PID is the operating system process id of the leader.
func (h *Handle) PID() int { return h.pid }

// Detached reports whether the process leads its own process group.
func (h *Handle) Detached() bool { return h.detached }

// Started is the spawn time.
func (h *Handle) Started() time.Time { return h.started }

// Alive reports whether the leader process has not yet been reaped.
func (h *Handle) Alive() bool { return h.alive.Load() }

// Done is closed once the leader process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode returns the exit code, or -1 while running or when killed by a signal.
func (h *Handle) ExitCode() int { return int(h.exitCode.Load()) }

// Err returns the error reported by Wait, if any.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.waitErr
}

// Stdout returns the most recent stdout lines.
func (h *Handle) Stdout() []string { return h.stdout.Lines() }

// Stderr returns the most recent stderr lines.
func (h *Handle) Stderr() []string { return h.stderr.Lines() }

func (h *Handle) wait() {
	err := h.cmd.Wait()

	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				code = -1
			}
		}
	}

	h.mu.Lock()
	h.waitErr = err
	h.mu.Unlock()

	// Wait has drained the pipes, so a trailing line without a newline is final.
	h.closeStreams()

	h.exitCode.Store(int32(code))
	h.alive.Store(false)
	close(h.done)
}

// closeStreams flushes and detaches the output captures.
func (h *Handle) closeStreams() {
	h.closeOnce.Do(func() {
		_ = h.stdout.Close()
		_ = h.stderr.Close()
	})
}

func (h *Handle) exited(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-h.done:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

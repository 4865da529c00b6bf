package process

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"deskshell/internal/environment"
	"deskshell/pkg/logging"

	"github.com/google/uuid"
)

// For mocking in tests
var execCommand = exec.Command

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultOutputLines  = 200
	defaultProbeTimeout = 2 * time.Second
	defaultKillWait     = 5 * time.Second
	defaultWaitDelay    = 2 * time.Second
	exitPollInterval    = 25 * time.Millisecond
)

// Readiness is the outcome of AwaitReady.
type Readiness int

const (
	ReadyOK Readiness = iota
	ReadyTimeout
	ReadyCrashed
	ReadyCancelled
)

// String makes Readiness satisfy the fmt.Stringer interface.
func (r Readiness) String() string {
	switch r {
	case ReadyOK:
		return "ok"
	case ReadyTimeout:
		return "timeout"
	case ReadyCrashed:
		return "crashed"
	case ReadyCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Supervisor spawns service processes, waits for them to become ready and
// stops them. It is safe for concurrent use.
type Supervisor struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	closed  atomic.Bool

	outputLines  int
	pollInterval time.Duration
	probeTimeout time.Duration
	killWait     time.Duration
	waitDelay    time.Duration
	sink         OutputSink
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithOutputLines sets how many lines of each stream are retained per handle.
func WithOutputLines(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.outputLines = n
		}
	}
}

// WithPollInterval sets the readiness polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithProbeTimeout bounds a single probe attempt.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.probeTimeout = d
		}
	}
}

// WithKillWait bounds the wait for exit after a forceful kill.
func WithKillWait(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.killWait = d
		}
	}
}

// WithOutputSink replaces the default sink, which logs every line.
func WithOutputSink(sink OutputSink) Option {
	return func(s *Supervisor) {
		s.sink = sink
	}
}

// NewSupervisor creates a supervisor.
func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		handles:      make(map[string]*Handle),
		outputLines:  DefaultOutputLines,
		pollInterval: DefaultPollInterval,
		probeTimeout: defaultProbeTimeout,
		killWait:     defaultKillWait,
		waitDelay:    defaultWaitDelay,
		sink:         LogOutput,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogOutput is the default sink: every line goes to the service's log subsystem.
func LogOutput(l Line) {
	logging.Info("Service-"+l.Service, "[%s] %s", l.Stream, l.Text)
}

// Spawn launches spec with env and returns as soon as the process exists.
// It does not wait for the service to become ready.
func (s *Supervisor) Spawn(ctx context.Context, spec ServiceSpec, env environment.Set) (*Handle, error) {
	if s.closed.Load() {
		return nil, &SpawnError{Service: spec.Name, Command: spec.Command, Err: ErrSupervisorClosed}
	}
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Service: spec.Name, Command: spec.Command, Err: err}
	}
	if err := spec.Validate(env); err != nil {
		return nil, &SpawnError{Service: spec.Name, Command: spec.Command, Err: err}
	}

	merged := env.Merge(spec.Env)

	h := &Handle{
		id:           uuid.New().String(),
		service:      spec.Name,
		command:      spec.Command,
		stopStrategy: spec.stopStrategy(),
		stopTimeout:  spec.stopTimeout(),
		stdout:       newLineCapture(spec.Name, StreamStdout, s.outputLines, s.sink),
		stderr:       newLineCapture(spec.Name, StreamStderr, s.outputLines, s.sink),
		done:         make(chan struct{}),
	}
	h.exitCode.Store(-1)

	cmd := execCommand(spec.Command, spec.Args...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = merged.Environ()
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr
	// Descendants may keep the pipes open after the leader exits.
	cmd.WaitDelay = s.waitDelay
	h.detached = prepareCommand(cmd)
	h.cmd = cmd

	logging.Info("Supervisor", "Starting %s: %s %v (dir %q)", spec.Name, spec.Command, spec.Args, spec.WorkingDir)
	if err := cmd.Start(); err != nil {
		h.closeStreams()
		logging.Error("Supervisor", err, "Failed to start %s", spec.Name)
		return nil, &SpawnError{Service: spec.Name, Command: spec.Command, Err: err}
	}

	h.pid = cmd.Process.Pid
	h.started = time.Now()
	h.stdout.setPID(h.pid)
	h.stderr.setPID(h.pid)
	h.alive.Store(true)

	s.mu.Lock()
	s.handles[h.id] = h
	s.mu.Unlock()

	go h.wait()
	go s.monitor(h)

	logging.Info("Supervisor", "Started %s (PID: %d, detached group: %t)", spec.Name, h.pid, h.detached)
	return h, nil
}

// monitor logs the exit and stops tracking the handle.
func (s *Supervisor) monitor(h *Handle) {
	<-h.Done()
	if err := h.Err(); err != nil {
		logging.Warn("Supervisor", "%s (PID: %d) exited: %v", h.service, h.pid, err)
	} else {
		logging.Info("Supervisor", "%s (PID: %d) exited", h.service, h.pid)
	}

	s.mu.Lock()
	delete(s.handles, h.id)
	s.mu.Unlock()
}

// Handles returns the handles whose leader process is still running.
func (s *Supervisor) Handles() []*Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		if h.Alive() {
			out = append(out, h)
		}
	}
	return out
}

// AwaitReady polls probe until it succeeds, the process exits, timeout elapses
// or ctx is cancelled. A nil probe means the process is ready once spawned.
func (s *Supervisor) AwaitReady(ctx context.Context, h *Handle, probe Probe, timeout time.Duration) (Readiness, error) {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-h.Done():
			return ReadyCrashed, s.crashed(h)
		default:
		}
		if ctx.Err() != nil {
			return ReadyCancelled, nil
		}
		if probe == nil {
			return ReadyOK, nil
		}

		probeDeadline := time.Now().Add(s.probeTimeout)
		if probeDeadline.After(deadline) {
			probeDeadline = deadline
		}
		probeCtx, cancel := context.WithDeadline(ctx, probeDeadline)
		lastErr = probe.Check(probeCtx)
		cancel()

		if lastErr == nil {
			logging.Info("Supervisor", "%s is ready", h.service)
			return ReadyOK, nil
		}
		logging.Debug("Supervisor", "%s not ready yet: %v", h.service, lastErr)

		select {
		case <-ctx.Done():
			return ReadyCancelled, nil
		case <-h.Done():
			return ReadyCrashed, s.crashed(h)
		case <-timer.C:
			return ReadyTimeout, &ReadinessTimeoutError{
				Service:   h.service,
				Timeout:   timeout,
				LastProbe: lastErr,
				Stderr:    h.Stderr(),
			}
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) crashed(h *Handle) error {
	return &ProcessCrashedError{
		Service:  h.service,
		ExitCode: h.ExitCode(),
		Err:      h.Err(),
		Stderr:   h.Stderr(),
	}
}

// Terminate stops the process and its descendants. The first call does the work;
// later calls return nil. A *TerminationError reports that the tree had to be
// killed after the graceful stop timed out.
func (s *Supervisor) Terminate(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	h.termMu.Lock()
	defer h.termMu.Unlock()
	if h.terminated {
		return nil
	}
	h.terminated = true

	if !h.Alive() {
		// The leader is gone but members of its group may linger.
		if h.detached {
			_ = signalGroup(h.pid, true)
		}
		return nil
	}

	// Snapshot before signalling: children are reparented once the leader exits.
	descendants := Descendants(ctx, h.pid)
	logging.Info("Supervisor", "Stopping %s (PID: %d, strategy: %s, descendants: %d)", h.service, h.pid, h.stopStrategy, len(descendants))

	var signalErr error
	switch {
	case h.stopStrategy == StopLeader:
		signalErr = signalLeader(h.pid, false)
	case h.detached:
		signalErr = signalGroup(h.pid, false)
		signalPIDs(ctx, descendants, false)
	default:
		signalErr = signalLeader(h.pid, false)
		signalPIDs(ctx, descendants, false)
	}
	if signalErr != nil {
		logging.Warn("Supervisor", "Graceful stop signal for %s failed: %v", h.service, signalErr)
	}

	deadline := time.Now().Add(h.stopTimeout)
	if waitExit(ctx, h, deadline) && s.waitTree(ctx, descendants, deadline) {
		logging.Info("Supervisor", "%s stopped gracefully", h.service)
		return nil
	}

	s.forceKill(ctx, h, descendants)

	termErr := &TerminationError{Service: h.service, PID: h.pid, Timeout: h.stopTimeout, Err: signalErr}
	if !h.exited(s.killWait) {
		termErr.Survived = true
	}
	logging.Warn("Supervisor", "%v", termErr)
	return termErr
}

func (s *Supervisor) forceKill(ctx context.Context, h *Handle, descendants []int32) {
	if h.detached {
		_ = signalGroup(h.pid, true)
	}
	_ = signalLeader(h.pid, true)
	signalPIDs(ctx, descendants, true)
}

// waitTree waits until every process in the descendant snapshot is gone.
func (s *Supervisor) waitTree(ctx context.Context, descendants []int32, deadline time.Time) bool {
	for {
		if !anyRunning(ctx, descendants) {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(exitPollInterval)
	}
}

// waitExit waits for the leader to exit until deadline or ctx is done.
func waitExit(ctx context.Context, h *Handle, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return h.exited(0)
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-h.Done():
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return h.exited(0)
	}
}

// Close terminates every tracked process and rejects further spawns.
func (s *Supervisor) Close(ctx context.Context) {
	s.closed.Store(true)
	for _, h := range s.Handles() {
		_ = s.Terminate(ctx, h)
	}
}

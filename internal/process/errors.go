package process

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidSpec is wrapped by SpawnError when a ServiceSpec fails validation.
	ErrInvalidSpec = errors.New("invalid service spec")
	// ErrSupervisorClosed is returned by Spawn after Close.
	ErrSupervisorClosed = errors.New("supervisor is closed")
)

// SpawnError means the operating system refused to create the process.
type SpawnError struct {
	Service string
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s (%s): %v", e.Service, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ReadinessTimeoutError means the process stayed alive but never passed its probe.
type ReadinessTimeoutError struct {
	Service   string
	Timeout   time.Duration
	LastProbe error
	Stderr    []string
}

func (e *ReadinessTimeoutError) Error() string {
	msg := fmt.Sprintf("%s did not become ready within %s", e.Service, e.Timeout)
	if e.LastProbe != nil {
		msg += fmt.Sprintf(" (last probe: %v)", e.LastProbe)
	}
	return msg + stderrSuffix(e.Stderr)
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.LastProbe }

// ProcessCrashedError means the process exited before it became ready.
type ProcessCrashedError struct {
	Service  string
	ExitCode int
	Err      error
	Stderr   []string
}

func (e *ProcessCrashedError) Error() string {
	return fmt.Sprintf("%s exited with code %d before becoming ready", e.Service, e.ExitCode) + stderrSuffix(e.Stderr)
}

func (e *ProcessCrashedError) Unwrap() error { return e.Err }

// TerminationError means graceful termination did not finish in time and the
// process tree was killed. It is reported for logging only.
type TerminationError struct {
	Service  string
	PID      int
	Timeout  time.Duration
	Err      error
	Survived bool
}

func (e *TerminationError) Error() string {
	msg := fmt.Sprintf("%s (pid %d) did not stop within %s, escalated to kill", e.Service, e.PID, e.Timeout)
	if e.Survived {
		msg += "; process still alive after kill"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TerminationError) Unwrap() error { return e.Err }

func stderrSuffix(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "\nstderr:\n  " + strings.Join(lines, "\n  ")
}

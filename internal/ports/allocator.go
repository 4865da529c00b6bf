package ports

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"deskshell/pkg/logging"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultMaxAttempts = 1000
)

// Assignment is an ordered list of distinct ports handed out by one Allocate call.
type Assignment []int

// AllocationError is returned when the requested number of free ports could not be found.
type AllocationError struct {
	Requested int
	Found     int
	Attempts  int
	Err       error
}

func (e *AllocationError) Error() string {
	msg := fmt.Sprintf("port allocation failed: found %d of %d free ports after %d attempts", e.Found, e.Requested, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AllocationError) Unwrap() error { return e.Err }

// ListenFunc matches net.Listen and is replaceable in tests.
type ListenFunc func(network, address string) (net.Listener, error)

// Allocator finds free TCP ports on the loopback interface.
type Allocator struct {
	mu          sync.Mutex
	host        string
	maxAttempts int
	listen      ListenFunc
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithHost sets the interface probed for free ports.
func WithHost(host string) Option {
	return func(a *Allocator) {
		if host != "" {
			a.host = host
		}
	}
}

// WithMaxAttempts bounds the number of bind attempts per Allocate call.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithListen replaces the function used to bind throwaway listeners.
func WithListen(fn ListenFunc) Option {
	return func(a *Allocator) {
		if fn != nil {
			a.listen = fn
		}
	}
}

// NewAllocator creates an allocator bound to the loopback interface by default.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		host:        DefaultHost,
		maxAttempts: DefaultMaxAttempts,
		listen:      net.Listen,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Host returns the interface the allocator probes.
func (a *Allocator) Host() string {
	return a.host
}

// Allocate returns k mutually distinct ports, each bindable at the moment it was checked.
// Calls on the same allocator are serialized.
func (a *Allocator) Allocate(ctx context.Context, k int) (Assignment, error) {
	if k <= 0 {
		return nil, &AllocationError{Requested: k, Err: errors.New("port count must be positive")}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rejected := make(map[int]struct{}, k)
	result := make(Assignment, 0, k)
	var lastErr error

	attempts := 0
	for len(result) < k && attempts < a.maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, &AllocationError{Requested: k, Found: len(result), Attempts: attempts, Err: err}
		}
		attempts++

		port, err := a.probeEphemeral()
		if err != nil {
			// Bind failures are transient; the ceiling bounds the retries.
			lastErr = err
			logging.Debug("PortAllocator", "bind attempt %d failed: %v", attempts, err)
			continue
		}
		if _, seen := rejected[port]; seen {
			continue
		}
		rejected[port] = struct{}{}
		result = append(result, port)
	}

	if len(result) < k {
		return nil, &AllocationError{Requested: k, Found: len(result), Attempts: attempts, Err: lastErr}
	}

	logging.Debug("PortAllocator", "allocated ports %v in %d attempts", []int(result), attempts)
	return result, nil
}

func (a *Allocator) probeEphemeral() (int, error) {
	l, err := a.listen("tcp", net.JoinHostPort(a.host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", l.Addr())
	}
	if addr.Port <= 0 {
		return 0, fmt.Errorf("listener reported invalid port %d", addr.Port)
	}
	return addr.Port, nil
}

// Verify reports whether port can currently be bound on host.
func Verify(host string, port int) error {
	if host == "" {
		host = DefaultHost
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("port %d is not bindable on %s: %w", port, host, err)
	}
	return l.Close()
}

// Package shutdown stops every supervised process exactly once, no matter how
// many times or from how many places teardown is requested.
package shutdown

import (
	"context"
	"errors"
	"sync"
	"time"

	"deskshell/internal/process"
	"deskshell/pkg/logging"
)

// DefaultTimeout bounds the termination of a single handle.
const DefaultTimeout = 10 * time.Second

// Terminator stops one process tree. *process.Supervisor satisfies it.
type Terminator interface {
	Terminate(ctx context.Context, h *process.Handle) error
}

// Coordinator runs ShutdownAll at most once.
type Coordinator struct {
	term    Terminator
	timeout time.Duration

	once sync.Once
	done chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout bounds how long a single handle may take to terminate.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a coordinator that stops handles through term.
func New(term Terminator, opts ...Option) *Coordinator {
	c := &Coordinator{
		term:    term,
		timeout: DefaultTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShutdownAll terminates every live handle concurrently and returns once all
// of them are done. Only the first call does the work; later and concurrent
// calls wait for it to finish or for ctx to end. Errors are logged, never
// returned: teardown always succeeds from the caller's point of view.
func (c *Coordinator) ShutdownAll(ctx context.Context, handles []*process.Handle) {
	c.once.Do(func() {
		defer close(c.done)
		c.shutdown(ctx, handles)
	})

	select {
	case <-c.done:
	case <-ctx.Done():
	}
}

// Done is closed once the first ShutdownAll has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) shutdown(ctx context.Context, handles []*process.Handle) {
	live := make([]*process.Handle, 0, len(handles))
	for _, h := range handles {
		if h != nil {
			live = append(live, h)
		}
	}
	logging.Info("Shutdown", "Stopping %d service(s)", len(live))

	var wg sync.WaitGroup
	for _, h := range live {
		wg.Add(1)
		go func(h *process.Handle) {
			defer wg.Done()

			// Teardown must finish even if the caller's context is already cancelled.
			tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
			defer cancel()

			err := c.term.Terminate(tctx, h)
			var termErr *process.TerminationError
			switch {
			case err == nil:
				logging.Debug("Shutdown", "%s stopped", h.Service())
			case errors.As(err, &termErr):
				logging.Warn("Shutdown", "%s needed a forced kill: %v", h.Service(), err)
			default:
				logging.Error("Shutdown", err, "Failed to stop %s", h.Service())
			}
		}(h)
	}
	wg.Wait()

	logging.Info("Shutdown", "All services stopped")
}

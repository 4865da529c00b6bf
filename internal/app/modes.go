package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"deskshell/internal/orchestrator"
	"deskshell/pkg/logging"
)

// ErrServiceExited is returned by Run when a service stopped on its own
// after startup completed.
var ErrServiceExited = errors.New("a service exited unexpectedly")

// runCLIMode drives the hooks from the terminal: ready on start, all windows
// closed on SIGINT, SIGTERM, ctx cancellation or an unexpected service exit.
func runCLIMode(ctx context.Context, hooks Hooks, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		services.Presenter.Watch(context.Background(), services.Updates)
	}()

	ready := make(chan error, 1)
	go func() {
		ready <- hooks.OnReady(ctx)
	}()

	var runErr error
	readyReturned := false
	select {
	case err := <-ready:
		readyReturned = true
		if err != nil {
			runErr = startupError(ctx, err)
			break
		}
		select {
		case <-ctx.Done():
			logging.Info("CLI", "Stop requested")
		case <-services.Orchestrator.Exited():
			logging.Warn("CLI", "A service exited, closing")
			runErr = ErrServiceExited
		}
	case <-ctx.Done():
		logging.Info("CLI", "Stop requested during startup")
	}

	logging.Info("CLI", "--- Shutting down services ---")
	hooks.OnAllWindowsClosed(context.WithoutCancel(ctx))

	if !readyReturned {
		// Shutdown cancelled the startup, so OnReady returns promptly.
		if err := <-ready; err != nil {
			runErr = startupError(ctx, err)
		}
	}
	<-watchDone
	return runErr
}

// startupError drops the cancellation error caused by a stop request.
func startupError(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, orchestrator.ErrStartupCancelled) || errors.Is(err, context.Canceled)) {
		return nil
	}
	logging.Error("CLI", err, "Startup failed")
	return err
}

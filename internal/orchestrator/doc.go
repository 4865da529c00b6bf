// Package orchestrator drives one run of the local application: it allocates
// ports, composes each service's environment, starts the backend and waits for
// it, then starts the frontend and hands the resulting addresses to the
// presentation layer.
//
// # Lifecycle
//
// A run moves through a fixed sequence of states:
//
//	Idle -> PortsAllocated -> BackendStarting -> BackendReady ->
//	FrontendStarting -> FrontendReady -> Running -> ShuttingDown -> Stopped
//
// Any state before Stopped may jump to ShuttingDown. A startup failure always
// goes through ShuttingDown so whatever was already spawned is terminated; there
// is no degraded mode where the frontend runs without a backend.
//
// # Cancellation
//
// Shutdown may be called while Start is still waiting for a service. The pending
// readiness wait is cancelled, Start returns ErrStartupCancelled and every
// spawned process is stopped before Shutdown returns.
//
// # Ownership
//
// The Orchestrator owns its process handles. The shutdown coordinator only
// reads their liveness and asks the supervisor to terminate them.
package orchestrator

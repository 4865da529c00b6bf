package reporting

import (
	"fmt"
	"time"
)

// ServiceType indicates the kind of component sending the update.
type ServiceType string

const (
	ServiceTypeBackend  ServiceType = "Backend"
	ServiceTypeFrontend ServiceType = "Frontend"
	ServiceTypeSystem   ServiceType = "System" // Orchestrator-level events such as port allocation and shutdown
)

// String makes ServiceType satisfy the fmt.Stringer interface.
func (st ServiceType) String() string {
	return string(st)
}

// ServiceState is the lifecycle state of a supervised service as seen by reporters.
type ServiceState string

const (
	StateUnknown  ServiceState = "Unknown"
	StateStarting ServiceState = "Starting"
	StateRunning  ServiceState = "Running"
	StateStopping ServiceState = "Stopping"
	StateStopped  ServiceState = "Stopped"
	StateFailed   ServiceState = "Failed"
)

// ManagedServiceUpdate carries a state change of one service or of the
// orchestrator itself.
type ManagedServiceUpdate struct {
	Timestamp time.Time

	SourceType  ServiceType
	SourceLabel string

	State   ServiceState
	IsReady bool
	Message string

	PID  int
	Port int
	URL  string

	// RunID ties together every update of a single orchestration run.
	RunID       string
	ErrorDetail error
}

// NewManagedServiceUpdate creates an update stamped with the current time.
func NewManagedServiceUpdate(sourceType ServiceType, label string, state ServiceState) ManagedServiceUpdate {
	return ManagedServiceUpdate{
		Timestamp:   time.Now(),
		SourceType:  sourceType,
		SourceLabel: label,
		State:       state,
		IsReady:     state == StateRunning,
	}
}

// WithProcess sets the PID and port of the update.
func (u ManagedServiceUpdate) WithProcess(pid, port int) ManagedServiceUpdate {
	u.PID = pid
	u.Port = port
	return u
}

// WithError marks the update as failed with err.
func (u ManagedServiceUpdate) WithError(err error) ManagedServiceUpdate {
	u.ErrorDetail = err
	if err != nil {
		u.State = StateFailed
		u.IsReady = false
	}
	return u
}

// String provides a simple string representation for debugging the update itself.
func (u ManagedServiceUpdate) String() string {
	return fmt.Sprintf("Update(TS: %s, Source: %s-%s, State: %s, Ready: %t, PID: %d, Port: %d, Run: %s, Err: %v)",
		u.Timestamp.Format(time.RFC3339), u.SourceType, u.SourceLabel, u.State, u.IsReady, u.PID, u.Port, u.RunID, u.ErrorDetail)
}

// ServiceReporter defines a unified interface for reporting service updates.
// Implementations must be safe for concurrent use.
type ServiceReporter interface {
	Report(update ManagedServiceUpdate)
}

// MultiReporter fans an update out to several reporters in order.
type MultiReporter []ServiceReporter

// Report forwards update to every non-nil reporter.
func (m MultiReporter) Report(update ManagedServiceUpdate) {
	for _, r := range m {
		if r != nil {
			r.Report(update)
		}
	}
}

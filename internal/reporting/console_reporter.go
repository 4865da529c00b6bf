package reporting

import (
	"fmt"
	"time"

	"deskshell/pkg/logging"
)

// ConsoleReporter logs updates through pkg/logging and keeps the latest
// state of every service in a StateStore.
type ConsoleReporter struct {
	stateStore StateStore
}

// NewConsoleReporter creates a new ConsoleReporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		stateStore: NewStateStore(),
	}
}

// NewConsoleReporterWithStateStore creates a new ConsoleReporter with a specific state store
func NewConsoleReporterWithStateStore(stateStore StateStore) *ConsoleReporter {
	if stateStore == nil {
		stateStore = NewStateStore()
	}
	return &ConsoleReporter{
		stateStore: stateStore,
	}
}

// Report logs update if it changes the known state or carries an error.
func (c *ConsoleReporter) Report(update ManagedServiceUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	stateChanged := true
	if c.stateStore != nil {
		changed, err := c.stateStore.SetServiceState(update)
		if err != nil {
			logging.Error("ConsoleReporter", err, "Failed to update state store for service %s", update.SourceLabel)
		}
		stateChanged = changed
	}

	// Only log actual state changes to reduce noise
	if !stateChanged && update.State != StateFailed && update.ErrorDetail == nil {
		return
	}

	subsystem := string(update.SourceType)
	if update.SourceLabel != "" {
		subsystem = string(update.SourceType) + "-" + update.SourceLabel
	}

	logMessage := "State: " + string(update.State)
	if update.Message != "" {
		logMessage += ", " + update.Message
	}
	if update.Port > 0 {
		logMessage += fmt.Sprintf(", Port: %d", update.Port)
	}
	if update.PID > 0 {
		logMessage += fmt.Sprintf(", PID: %d", update.PID)
	}
	if update.URL != "" {
		logMessage += ", URL: " + update.URL
	}
	if update.RunID != "" {
		logMessage += ", Run: " + update.RunID
	}

	switch {
	case update.ErrorDetail != nil:
		logging.Error(subsystem, update.ErrorDetail, "%s", logMessage)
	case update.State == StateFailed:
		logging.Error(subsystem, nil, "%s", logMessage)
	case update.State == StateUnknown:
		logging.Warn(subsystem, "%s", logMessage)
	case update.State == StateRunning || update.State == StateStopped:
		logging.Info(subsystem, "%s", logMessage)
	case update.State == StateStarting || update.State == StateStopping:
		logging.Debug(subsystem, "%s", logMessage)
	default:
		logging.Info(subsystem, "%s", logMessage)
	}
}

// GetStateStore returns the underlying state store
func (c *ConsoleReporter) GetStateStore() StateStore {
	return c.stateStore
}

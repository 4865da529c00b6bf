package orchestrator

import (
	"fmt"
	"time"
)

// State is the lifecycle state of an orchestration run.
type State int

const (
	Idle State = iota
	PortsAllocated
	BackendStarting
	BackendReady
	FrontendStarting
	FrontendReady
	Running
	ShuttingDown
	Stopped
)

var stateNames = map[State]string{
	Idle:             "Idle",
	PortsAllocated:   "PortsAllocated",
	BackendStarting:  "BackendStarting",
	BackendReady:     "BackendReady",
	FrontendStarting: "FrontendStarting",
	FrontendReady:    "FrontendReady",
	Running:          "Running",
	ShuttingDown:     "ShuttingDown",
	Stopped:          "Stopped",
}

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Starting reports whether s is one of the startup states.
func (s State) Starting() bool {
	return s > Idle && s < Running
}

// validTransitions lists the allowed successors of every state. Every state
// before Stopped may enter ShuttingDown, and ShuttingDown is entered once.
var validTransitions = map[State][]State{
	Idle:             {PortsAllocated, ShuttingDown},
	PortsAllocated:   {BackendStarting, ShuttingDown},
	BackendStarting:  {BackendReady, ShuttingDown},
	BackendReady:     {FrontendStarting, ShuttingDown},
	FrontendStarting: {FrontendReady, ShuttingDown},
	FrontendReady:    {Running, ShuttingDown},
	Running:          {ShuttingDown},
	ShuttingDown:     {Stopped},
	Stopped:          {},
}

// ValidTransition reports whether src may move to dst.
func ValidTransition(src, dst State) bool {
	for _, s := range validTransitions[src] {
		if s == dst {
			return true
		}
	}
	return false
}

// Transition records one state change.
type Transition struct {
	From  State
	To    State
	At    time.Time
	RunID string
	// Err is the startup failure that caused the move to ShuttingDown, if any.
	Err error
}

// InvalidTransitionError is returned when a state change is not allowed.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		src, dst State
		want     bool
	}{
		{Idle, PortsAllocated, true},
		{PortsAllocated, BackendStarting, true},
		{BackendStarting, BackendReady, true},
		{BackendReady, FrontendStarting, true},
		{FrontendStarting, FrontendReady, true},
		{FrontendReady, Running, true},
		{Running, ShuttingDown, true},
		{ShuttingDown, Stopped, true},

		{Idle, ShuttingDown, true},
		{BackendStarting, ShuttingDown, true},
		{FrontendStarting, ShuttingDown, true},

		{Idle, BackendStarting, false},
		{PortsAllocated, FrontendStarting, false},
		{BackendStarting, FrontendStarting, false},
		{Running, Stopped, false},
		{ShuttingDown, ShuttingDown, false},
		{Stopped, ShuttingDown, false},
		{Stopped, Idle, false},
	}

	for _, tt := range tests {
		t.Run(tt.src.String()+"->"+tt.dst.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTransition(tt.src, tt.dst))
		})
	}
}

func TestEveryStateCanShutDownOnce(t *testing.T) {
	for s := Idle; s <= Running; s++ {
		assert.True(t, ValidTransition(s, ShuttingDown), s.String())
	}
	assert.False(t, ValidTransition(ShuttingDown, ShuttingDown))
	assert.False(t, ValidTransition(Stopped, ShuttingDown))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "FrontendReady", FrontendReady.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, BackendReady.Starting())
	assert.False(t, Running.Starting())
	assert.False(t, Idle.Starting())
}

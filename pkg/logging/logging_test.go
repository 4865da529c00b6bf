package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitForCLI_WritesSubsystemAndError(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)
	defer InitForCLI(LevelInfo, os.Stderr)

	Error("Supervisor", errors.New("boom"), "spawn of %s failed", "backend")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "subsystem=Supervisor")
	assert.Contains(t, out, "spawn of backend failed")
	assert.Contains(t, out, "error=boom")
}

func TestInitForCLI_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)
	defer InitForCLI(LevelInfo, os.Stderr)

	Debug("Test", "hidden")
	Info("Test", "hidden too")
	Warn("Test", "visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestInitForJSON(t *testing.T) {
	var buf bytes.Buffer
	InitForJSON(LevelInfo, &buf)
	defer InitForCLI(LevelInfo, os.Stderr)

	Info("Orchestrator", "state %s", "Running")

	out := buf.String()
	assert.Contains(t, out, `"subsystem":"Orchestrator"`)
	assert.Contains(t, out, `"msg":"state Running"`)
}

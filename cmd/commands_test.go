package cmd

import (
	"bytes"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"deskshell/internal/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func isolateHome(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
}

func TestPortsCommand_PrintsDistinctPorts(t *testing.T) {
	out, err := execute(t, "ports", "--count", "3")
	require.NoError(t, err)

	lines := strings.Fields(out)
	require.Len(t, lines, 3)
	seen := map[int]bool{}
	for _, l := range lines {
		p, err := strconv.Atoi(l)
		require.NoError(t, err)
		assert.Greater(t, p, 1023)
		assert.False(t, seen[p], "duplicate port %d", p)
		seen[p] = true
	}
}

func TestPortsCommand_InvalidCount(t *testing.T) {
	_, err := execute(t, "ports", "--count", "0")
	assert.Error(t, err)
}

func TestPortsVerifyCommand(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)

	_, err = execute(t, "ports", "verify", port)
	assert.Error(t, err)

	_, err = execute(t, "ports", "verify", "not-a-port")
	assert.Error(t, err)
}

func TestEnvCommand_ComposesAndMasks(t *testing.T) {
	isolateHome(t)
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	t.Setenv("UNRELATED_HOST_VARIABLE", "leak")

	out, err := execute(t, "env", "--backend-port", "41000", "--frontend-port", "41001")
	require.NoError(t, err)

	assert.Contains(t, out, "# backend")
	assert.Contains(t, out, "# frontend")
	assert.Contains(t, out, "OPENAI_API_KEY=****")
	assert.NotContains(t, out, "sk-secret")
	assert.NotContains(t, out, "UNRELATED_HOST_VARIABLE")
	assert.Contains(t, out, "PORT=41001")
	assert.Contains(t, out, "NEXT_PUBLIC_FAST_API=http://localhost:41000")
}

func TestEnvCommand_SingleService(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "env", "frontend", "--backend-port", "41000", "--frontend-port", "41001")
	require.NoError(t, err)

	assert.NotContains(t, out, "# backend")
	assert.Contains(t, out, "# frontend")
}

func TestStatusCommand_NoInstances(t *testing.T) {
	out, err := execute(t, "status", "--name", "deskshell-test-no-such-process")
	require.NoError(t, err)
	assert.Contains(t, out, "No running deskshell instances found")
}

func TestFormatProcess(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	line := formatProcess(process.ProcessInfo{
		PID:     42,
		Depth:   2,
		Name:    "python",
		Cmdline: "python server.py --port 41000",
		Status:  "S",
		Started: now.Add(-90 * time.Second),
	}, now)

	assert.Equal(t, "    42 python server.py --port 41000 [S] up 1m30s", line)

	line = formatProcess(process.ProcessInfo{PID: 7, Name: "node"}, now)
	assert.Equal(t, "7 node [] up -", line)
}

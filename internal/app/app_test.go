package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deskshell/internal/config"
	"deskshell/internal/environment"
	"deskshell/internal/orchestrator"
	"deskshell/internal/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/tmp/extra.yaml", true, false)

	assert.Equal(t, "/tmp/extra.yaml", cfg.ConfigPath)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.CopyURL)
	assert.Equal(t, []string{".env"}, cfg.EnvFiles)
	assert.Nil(t, cfg.DeskshellConfig, "DeskshellConfig should be nil before loading")
}

func TestOrchestratorConfig(t *testing.T) {
	base := environment.Set{"PATH": "/usr/bin"}
	user := environment.Set{"LLM": "openai"}

	tests := []struct {
		name          string
		mode          config.Mode
		debug         bool
		wantCommand   string
		wantStop      process.StopStrategy
		wantDevSwitch bool
	}{
		{"dev", config.ModeDev, false, "npm", process.StopTree, true},
		{"packaged", config.ModePackaged, false, "node", process.StopLeader, false},
		{"packaged with debug", config.ModePackaged, true, "node", process.StopLeader, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := config.GetDefaultConfig()
			dc.Mode = tt.mode
			dc.Directories.Base = "/opt/app"
			dc.Directories.AppData = "/data"
			dc.Directories.UserConfig = "/data/userConfig.json"

			oc := OrchestratorConfig(dc, tt.debug, base, user)

			assert.Equal(t, "backend", oc.Backend.Name)
			assert.Equal(t, "frontend", oc.Frontend.Name)
			assert.Equal(t, tt.wantCommand, oc.Frontend.Command)
			assert.Equal(t, tt.wantStop, oc.Frontend.Stop)
			assert.Equal(t, filepath.Join("/opt/app", "servers/nextjs"), oc.Frontend.WorkingDir)
			assert.Equal(t, orchestrator.ProbeTCP, oc.Backend.Probe.Type)
			assert.Equal(t, "127.0.0.1", oc.ProbeHost)
			assert.Equal(t, "localhost", oc.Host)
			assert.Equal(t, "/data/userConfig.json", oc.Paths.UserConfig)
			assert.Equal(t, tt.wantDevSwitch, oc.Switches[environment.SwitchDev])
			assert.Equal(t, tt.debug, oc.Switches[environment.SwitchDebug])
			assert.Equal(t, base, oc.Base)
			assert.Equal(t, user, oc.User)
		})
	}
}

func TestLoadEnvFiles_DoesNotOverrideHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DESKSHELL_TEST_KEEP=file\nDESKSHELL_TEST_NEW=file\n"), 0o600))

	t.Setenv("DESKSHELL_TEST_KEEP", "host")
	t.Setenv("DESKSHELL_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("DESKSHELL_TEST_NEW"))

	require.NoError(t, loadEnvFiles([]string{filepath.Join(dir, "missing.env"), path}))

	assert.Equal(t, "host", os.Getenv("DESKSHELL_TEST_KEEP"))
	assert.Equal(t, "file", os.Getenv("DESKSHELL_TEST_NEW"))
}

func TestLoadEnvFiles_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOT A VALID LINE\n"), 0o600))

	assert.Error(t, loadEnvFiles([]string{path}))
}

func TestLoadDeskshellConfig_ModeOverride(t *testing.T) {
	path := writeHelperConfig(t, []string{"linger", "10"}, []string{"linger", "10"}, "none")

	cfg := &Config{ConfigPath: path, Mode: config.ModePackaged}
	// Packaged launch commands come from the defaults.
	dc, err := LoadDeskshellConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.ModePackaged, dc.Mode)

	cfg.Mode = "bogus"
	_, err = LoadDeskshellConfig(cfg)
	assert.Error(t, err)
}

func newTestApplication(t *testing.T, backend, frontend []string, frontendProbe string) (*Application, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	cfg := &Config{
		ConfigPath: writeHelperConfig(t, backend, frontend, frontendProbe),
		Output:     out,
	}
	a, err := NewApplication(cfg)
	require.NoError(t, err)
	return a, out
}

func TestRun_PresentsAndStopsOnCancel(t *testing.T) {
	a, out := newTestApplication(t,
		[]string{"listen", "${BACKEND_PORT}"},
		[]string{"listen", "${FRONTEND_PORT}"},
		"tcp")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Application is running")
	}, 20*time.Second, 20*time.Millisecond)
	assert.Equal(t, orchestrator.Running, a.Services().Orchestrator.State())

	handoff, ok := a.Services().Orchestrator.Handoff()
	require.True(t, ok)
	assert.Contains(t, out.String(), handoff.FrontendURL)

	handles := a.Services().Orchestrator.Handles()
	require.Len(t, handles, 2)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Equal(t, orchestrator.Stopped, a.Services().Orchestrator.State())
	for _, h := range handles {
		assert.False(t, h.Alive(), "%s still running", h.Service())
	}
	assert.DirExists(t, a.config.DeskshellConfig.Directories.AppData)
	assert.DirExists(t, a.config.DeskshellConfig.Directories.Temp)
}

func TestRun_StartupFailureIsReturned(t *testing.T) {
	a, out := newTestApplication(t,
		[]string{"exit", "3"},
		[]string{"listen", "${FRONTEND_PORT}"},
		"tcp")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := a.Run(ctx)
	var crashErr *process.ProcessCrashedError
	require.ErrorAs(t, err, &crashErr)
	assert.Equal(t, 3, crashErr.ExitCode)
	assert.Equal(t, orchestrator.Stopped, a.Services().Orchestrator.State())
	assert.NotContains(t, out.String(), "Application is running")
}

func TestRun_ServiceExitClosesApplication(t *testing.T) {
	a, _ := newTestApplication(t,
		[]string{"listen", "${BACKEND_PORT}"},
		[]string{"linger", "1500"},
		"none")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := a.Run(ctx)
	assert.ErrorIs(t, err, ErrServiceExited)
	assert.Equal(t, orchestrator.Stopped, a.Services().Orchestrator.State())
	assert.Empty(t, a.Services().Supervisor.Handles())
}

func TestHooks_CloseIsIdempotent(t *testing.T) {
	a, _ := newTestApplication(t,
		[]string{"listen", "${BACKEND_PORT}"},
		[]string{"listen", "${FRONTEND_PORT}"},
		"tcp")

	hooks := a.Services().Hooks()
	hooks.OnAllWindowsClosed(context.Background())
	hooks.OnAllWindowsClosed(context.Background())

	assert.Equal(t, orchestrator.Stopped, a.Services().Orchestrator.State())
	_, err := a.Services().Orchestrator.Start(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrStartupCancelled)
}

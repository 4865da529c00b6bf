package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"deskshell/internal/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config location into a temp dir and returns it.
func isolate(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	originalUserConfigDir := osUserConfigDir
	originalLookupEnv := osLookupEnv
	originalHome := osUserHomeDir
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
		osUserConfigDir = originalUserConfigDir
		osLookupEnv = originalLookupEnv
		osUserHomeDir = originalHome
	})

	getUserConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "user", configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "project", configFileName), nil
	}
	osUserConfigDir = func() (string, error) { return filepath.Join(tempDir, "xdg"), nil }
	osUserHomeDir = func() (string, error) { return filepath.Join(tempDir, "home"), nil }
	osLookupEnv = func(string) (string, bool) { return "", false }
	return tempDir
}

func writeLayer(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ModeDev, cfg.Mode)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 1000, cfg.Ports.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Backend.ReadyTimeout)
	assert.Equal(t, filepath.Join(tempDir, "xdg", "deskshell"), cfg.Directories.AppData)
	assert.Equal(t, filepath.Join(tempDir, "xdg", "deskshell", "userConfig.json"), cfg.Directories.UserConfig)
	assert.Equal(t, "python", cfg.Backend.Launch(cfg.Mode).Command)
	assert.Equal(t, process.StopTree, cfg.Frontend.Launch(ModeDev).Stop)
	assert.Equal(t, process.StopLeader, cfg.Frontend.Launch(ModePackaged).Stop)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := isolate(t)
	writeLayer(t, filepath.Join(tempDir, "user", configFileName), `
mode: packaged
backend:
  readyTimeout: 90s
  env:
    set:
      EXTRA: "${BACKEND_URL}/api"
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ModePackaged, cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Backend.ReadyTimeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Backend.StopTimeout)
	assert.Equal(t, "./fastapi", cfg.Backend.Launch(cfg.Mode).Command)
	// Maps merge key by key and run variables are left for later.
	assert.Equal(t, "${BACKEND_URL}/api", cfg.Backend.Env.Set["EXTRA"])
	assert.Equal(t, "${APP_DATA_DIRECTORY}", cfg.Backend.Env.Set["APP_DATA_DIRECTORY"])
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := isolate(t)
	writeLayer(t, filepath.Join(tempDir, "user", configFileName), "host: user.local\nshutdownTimeout: 3s\n")
	writeLayer(t, filepath.Join(tempDir, "project", configFileName), "host: project.local\n")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "project.local", cfg.Host)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigWithOverride(t *testing.T) {
	tempDir := isolate(t)
	writeLayer(t, filepath.Join(tempDir, "project", configFileName), "host: project.local\n")
	override := filepath.Join(tempDir, "explicit.yaml")
	writeLayer(t, override, `
host: explicit.local
frontend:
  dev:
    command: yarn
    args: ["dev", "--port", "${FRONTEND_PORT}"]
`)

	cfg, err := LoadConfigWithOverride(override)
	require.NoError(t, err)

	assert.Equal(t, "explicit.local", cfg.Host)
	l := cfg.Frontend.Launch(ModeDev)
	assert.Equal(t, "yarn", l.Command)
	assert.Equal(t, []string{"dev", "--port", "${FRONTEND_PORT}"}, l.Args)
	assert.Equal(t, "servers/nextjs", l.WorkingDir)

	_, err = LoadConfigWithOverride(filepath.Join(tempDir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	tempDir := isolate(t)
	osLookupEnv = func(key string) (string, bool) {
		if key == "SLIDES_HOME" {
			return "/opt/slides", true
		}
		return "", false
	}
	writeLayer(t, filepath.Join(tempDir, "user", configFileName), `
directories:
  base: ${SLIDES_HOME}
  appData: ~/data
  temp: ${SLIDES_TMP:-/tmp/slides}
backend:
  packaged:
    command: ${SLIDES_HOME}/bin/fastapi
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/opt/slides", cfg.Directories.Base)
	assert.Equal(t, filepath.Join(tempDir, "home", "data"), cfg.Directories.AppData)
	assert.Equal(t, "/tmp/slides", cfg.Directories.Temp)
	assert.Equal(t, "/opt/slides/bin/fastapi", cfg.Backend.Packaged.Command)
	assert.Equal(t, filepath.Join("/opt/slides", "servers/fastapi"), cfg.ResolveDir(cfg.Backend.WorkingDir))
	assert.Equal(t, "/abs", cfg.ResolveDir("/abs"))
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tempDir := isolate(t)
	writeLayer(t, filepath.Join(tempDir, "project", configFileName), "mode: [unterminated\n")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DeskshellConfig)
		wantErr string
	}{
		{"defaults are valid", func(*DeskshellConfig) {}, ""},
		{"bad mode", func(c *DeskshellConfig) { c.Mode = "staging" }, "invalid mode"},
		{"missing command", func(c *DeskshellConfig) { c.Backend.Dev.Command = "" }, "backend: no command"},
		{"bad stop strategy", func(c *DeskshellConfig) { c.Frontend.Dev.Stop = "nuke" }, "invalid stop strategy"},
		{"bad probe", func(c *DeskshellConfig) { c.Backend.Probe.Type = "grpc" }, "invalid probe type"},
		{"bad log level", func(c *DeskshellConfig) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *DeskshellConfig) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative attempts", func(c *DeskshellConfig) { c.Ports.MaxAttempts = -1 }, "maxAttempts"},
		{"negative timeout", func(c *DeskshellConfig) { c.Frontend.StopTimeout = -time.Second }, "timeouts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestServiceDefinition_Launch(t *testing.T) {
	svc := ServiceDefinition{
		WorkingDir: "servers/api",
		Stop:       process.StopTree,
		Dev:        LaunchDefinition{Command: "python"},
		Packaged:   LaunchDefinition{Command: "./api", WorkingDir: "bin", Stop: process.StopLeader},
	}

	dev := svc.Launch(ModeDev)
	assert.Equal(t, "servers/api", dev.WorkingDir)
	assert.Equal(t, process.StopTree, dev.Stop)

	packaged := svc.Launch(ModePackaged)
	assert.Equal(t, "bin", packaged.WorkingDir)
	assert.Equal(t, process.StopLeader, packaged.Stop)
}

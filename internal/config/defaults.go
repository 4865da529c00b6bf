package config

import (
	"path/filepath"
	"time"

	"deskshell/internal/environment"
	"deskshell/internal/process"
)

// credentialKeys are forwarded to the backend from the host environment and
// the user settings file.
var credentialKeys = environment.AllowList{"LLM", "LLM_PROVIDER", "OPENAI_API_KEY", "GOOGLE_API_KEY", "API_KEY_*"}

// systemKeys are needed by interpreters and package managers to run at all.
var systemKeys = environment.AllowList{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR", "SYSTEMROOT", "APPDATA", "LOCALAPPDATA", "USERPROFILE"}

// GetDefaultConfig returns the built-in configuration: a Python backend and a
// Next.js frontend below the current directory.
func GetDefaultConfig() DeskshellConfig {
	return DeskshellConfig{
		Mode: ModeDev,
		Host: "localhost",
		Directories: Directories{
			Base: ".",
			Temp: filepath.Join(osTempDir(), "deskshell"),
		},
		Ports: PortsConfig{
			BindHost:    "127.0.0.1",
			MaxAttempts: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Backend: ServiceDefinition{
			WorkingDir: "servers/fastapi",
			Dev: LaunchDefinition{
				Command: "python",
				Args:    []string{"server.py", "--port", "${BACKEND_PORT}", "--reload", "true"},
			},
			Packaged: LaunchDefinition{
				Command: "./fastapi",
				Args:    []string{"--port", "${BACKEND_PORT}"},
			},
			Env: environment.ServicePolicy{
				Forward: append(append(environment.AllowList{}, systemKeys...), credentialKeys...),
				Set: map[string]string{
					environment.VarAppDataDirectory: "${APP_DATA_DIRECTORY}",
					environment.VarTempDirectory:    "${TEMP_DIRECTORY}",
					environment.VarUserConfigPath:   "${USER_CONFIG_PATH}",
				},
				Flags: map[string]environment.Flag{
					"DEBUG": {Source: environment.SwitchDev, FlagTokens: environment.PythonTokens},
				},
			},
			Probe:        ProbeDefinition{Type: "tcp"},
			ReadyTimeout: 60 * time.Second,
			StopTimeout:  5 * time.Second,
			Stop:         process.StopTree,
		},
		Frontend: ServiceDefinition{
			WorkingDir: "servers/nextjs",
			Dev: LaunchDefinition{
				Command: "npm",
				Args:    []string{"run", "dev", "--", "-p", "${FRONTEND_PORT}"},
				Stop:    process.StopTree,
			},
			Packaged: LaunchDefinition{
				Command: "node",
				Args:    []string{"server.js"},
				// The packaged server closes its listener on SIGTERM.
				Stop: process.StopLeader,
			},
			Env: environment.ServicePolicy{
				Forward: systemKeys,
				Set: map[string]string{
					"PORT":                         "${FRONTEND_PORT}",
					"NEXT_PUBLIC_FAST_API":         "${BACKEND_URL}",
					"NEXT_PUBLIC_URL":              "${FRONTEND_URL}",
					"NEXT_PUBLIC_USER_CONFIG_PATH": "${USER_CONFIG_PATH}",
					environment.VarTempDirectory:   "${TEMP_DIRECTORY}",
				},
			},
			Probe:        ProbeDefinition{Type: "tcp"},
			ReadyTimeout: 60 * time.Second,
			StopTimeout:  5 * time.Second,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

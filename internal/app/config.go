package app

import (
	"io"

	"deskshell/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath is an extra configuration layer applied last.
	ConfigPath string

	// Mode overrides the configured launch mode when set.
	Mode config.Mode

	// Debug settings
	Debug bool

	// JSONLogs switches log output to JSON lines.
	JSONLogs bool

	// CopyURL copies the frontend URL to the clipboard once ready.
	CopyURL bool

	// EnvFiles are dotenv files loaded into the process environment before
	// anything else. Missing files are skipped.
	EnvFiles []string

	// Output receives logs and the presentation. Defaults to os.Stdout.
	Output io.Writer

	// Environment configuration
	DeskshellConfig *config.DeskshellConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, debug, copyURL bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
		CopyURL:    copyURL,
		EnvFiles:   []string{".env"},
	}
}

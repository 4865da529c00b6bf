package config

import (
	"time"

	"deskshell/internal/environment"
	"deskshell/internal/process"
)

// Mode selects which launch definition of each service is used.
type Mode string

const (
	// ModeDev runs services from source with reloaders and debug output.
	ModeDev Mode = "dev"
	// ModePackaged runs prebuilt service binaries shipped with the application.
	ModePackaged Mode = "packaged"
)

// DeskshellConfig is the top-level configuration structure.
type DeskshellConfig struct {
	Mode        Mode          `yaml:"mode,omitempty"`
	Host        string        `yaml:"host,omitempty"` // Host used in service URLs (default: localhost)
	Directories Directories   `yaml:"directories,omitempty"`
	Ports       PortsConfig   `yaml:"ports,omitempty"`
	Logging     LoggingConfig `yaml:"logging,omitempty"`

	Backend  ServiceDefinition `yaml:"backend"`
	Frontend ServiceDefinition `yaml:"frontend"`

	// ShutdownTimeout bounds the termination of each service.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// Directories are the filesystem locations handed to the services.
type Directories struct {
	Base       string `yaml:"base,omitempty"`       // Root that relative service working directories resolve against
	AppData    string `yaml:"appData,omitempty"`    // Persistent application data
	Temp       string `yaml:"temp,omitempty"`       // Scratch space, may be wiped between runs
	UserConfig string `yaml:"userConfig,omitempty"` // JSON settings file shared with the backend
}

// PortsConfig tunes port allocation.
type PortsConfig struct {
	BindHost    string `yaml:"bindHost,omitempty"`    // Interface probed for free ports (default: 127.0.0.1)
	MaxAttempts int    `yaml:"maxAttempts,omitempty"` // Attempt ceiling per allocation (default: 1000)
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn or error
	Format string `yaml:"format,omitempty"` // text or json
}

// ProbeDefinition selects the readiness check.
type ProbeDefinition struct {
	Type string `yaml:"type,omitempty"` // tcp (default), http or none
	Path string `yaml:"path,omitempty"` // Request path for http probes
}

// LaunchDefinition is how a service is started in one mode.
type LaunchDefinition struct {
	Command    string               `yaml:"command,omitempty"`
	Args       []string             `yaml:"args,omitempty"` // May reference ${BACKEND_PORT} and the other run variables
	WorkingDir string               `yaml:"workingDir,omitempty"`
	Stop       process.StopStrategy `yaml:"stop,omitempty"` // tree or leader
}

// ServiceDefinition describes one of the two supervised services.
type ServiceDefinition struct {
	WorkingDir string           `yaml:"workingDir,omitempty"`
	Dev        LaunchDefinition `yaml:"dev,omitempty"`
	Packaged   LaunchDefinition `yaml:"packaged,omitempty"`

	Env         environment.ServicePolicy `yaml:"env,omitempty"`
	RequiredEnv []string                  `yaml:"requiredEnv,omitempty"`
	Probe       ProbeDefinition           `yaml:"probe,omitempty"`

	ReadyTimeout time.Duration        `yaml:"readyTimeout,omitempty"`
	StopTimeout  time.Duration        `yaml:"stopTimeout,omitempty"`
	Stop         process.StopStrategy `yaml:"stop,omitempty"` // Default for both modes
}

// Launch returns the launch definition for mode with service-level defaults
// filled in.
func (s ServiceDefinition) Launch(mode Mode) LaunchDefinition {
	l := s.Dev
	if mode == ModePackaged {
		l = s.Packaged
	}
	if l.WorkingDir == "" {
		l.WorkingDir = s.WorkingDir
	}
	if l.Stop == "" {
		l.Stop = s.Stop
	}
	return l
}

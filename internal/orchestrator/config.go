package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"deskshell/internal/environment"
	"deskshell/internal/process"
)

const (
	// DefaultBackendReadyTimeout allows for slow cold starts of an interpreted backend.
	DefaultBackendReadyTimeout  = 60 * time.Second
	DefaultFrontendReadyTimeout = 30 * time.Second
	DefaultShutdownTimeout      = 10 * time.Second
	DefaultProbeHost            = "127.0.0.1"
)

// ProbeType selects how readiness is checked.
type ProbeType string

const (
	ProbeTCP  ProbeType = "tcp"
	ProbeHTTP ProbeType = "http"
	ProbeNone ProbeType = "none"
)

// ProbeConfig describes the readiness check run against a service's own port.
type ProbeConfig struct {
	Type ProbeType `yaml:"type"`
	// Path is appended to the service URL for http probes.
	Path string `yaml:"path,omitempty"`
}

// ServiceConfig is the launch description of one service. Args may reference
// run variables such as ${BACKEND_PORT}; they are expanded after ports are known.
type ServiceConfig struct {
	Name         string
	Command      string
	Args         []string
	WorkingDir   string
	Policy       environment.ServicePolicy
	RequiredEnv  []string
	Probe        ProbeConfig
	ReadyTimeout time.Duration
	StopTimeout  time.Duration
	Stop         process.StopStrategy
}

// Config is everything one orchestration run needs.
type Config struct {
	// Host is used in the URLs handed to services and the presentation layer.
	Host string
	// ProbeHost is dialled by readiness probes.
	ProbeHost string

	Backend  ServiceConfig
	Frontend ServiceConfig

	Base     environment.Set
	User     environment.Set
	Paths    environment.Paths
	Switches map[string]bool

	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.ProbeHost == "" {
		c.ProbeHost = DefaultProbeHost
	}
	if c.Backend.Name == "" {
		c.Backend.Name = "backend"
	}
	if c.Frontend.Name == "" {
		c.Frontend.Name = "frontend"
	}
	if c.Backend.ReadyTimeout <= 0 {
		c.Backend.ReadyTimeout = DefaultBackendReadyTimeout
	}
	if c.Frontend.ReadyTimeout <= 0 {
		c.Frontend.ReadyTimeout = DefaultFrontendReadyTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return c
}

// Inputs returns the composition inputs for the given ports.
func (c Config) Inputs(p environment.Ports) environment.Inputs {
	return environment.Inputs{
		Base:     c.Base,
		User:     c.User,
		Ports:    p,
		Paths:    c.Paths,
		Host:     c.Host,
		Switches: c.Switches,
	}
}

// serviceSpec turns sc into a supervisor spec once its port and environment are known.
func (c Config) serviceSpec(sc ServiceConfig, port int, vars, env environment.Set) (process.ServiceSpec, error) {
	lookup := func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		v, ok := env[name]
		return v, ok
	}

	args := make([]string, 0, len(sc.Args))
	for _, a := range sc.Args {
		args = append(args, environment.Expand(a, lookup))
	}

	probe, err := c.probe(sc, port)
	if err != nil {
		return process.ServiceSpec{}, err
	}

	return process.ServiceSpec{
		Name:         sc.Name,
		WorkingDir:   sc.WorkingDir,
		Command:      sc.Command,
		Args:         args,
		RequiredEnv:  sc.RequiredEnv,
		Probe:        probe,
		ReadyTimeout: sc.ReadyTimeout,
		StopTimeout:  sc.StopTimeout,
		Stop:         sc.Stop,
	}, nil
}

func (c Config) probe(sc ServiceConfig, port int) (process.Probe, error) {
	switch sc.Probe.Type {
	case "", ProbeTCP:
		return &process.TCPProbe{Host: c.ProbeHost, Port: port}, nil
	case ProbeHTTP:
		path := sc.Probe.Path
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return process.NewHTTPProbe(environment.URL(c.ProbeHost, port) + path), nil
	case ProbeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown probe type %q for %s", process.ErrInvalidSpec, sc.Probe.Type, sc.Name)
	}
}

package process

import (
	"fmt"
	"time"

	"deskshell/internal/environment"
)

// StopStrategy selects how a service is asked to stop.
type StopStrategy string

const (
	// StopTree signals the process group and every known descendant.
	StopTree StopStrategy = "tree"
	// StopLeader signals only the leader so it can close its server itself.
	// The tree is still killed if the leader does not exit in time.
	StopLeader StopStrategy = "leader"
)

// Valid reports whether s names a known strategy. The empty value means StopTree.
func (s StopStrategy) Valid() bool {
	switch s {
	case "", StopTree, StopLeader:
		return true
	}
	return false
}

const (
	DefaultReadyTimeout = 30 * time.Second
	DefaultStopTimeout  = 5 * time.Second
)

// ServiceSpec describes how to launch one service.
type ServiceSpec struct {
	Name       string
	WorkingDir string
	Command    string
	Args       []string
	// Env is merged over the composed environment.
	Env          environment.Set
	RequiredEnv  []string
	Probe        Probe
	ReadyTimeout time.Duration
	StopTimeout  time.Duration
	Stop         StopStrategy
}

// Validate checks the spec against the environment it will be launched with.
func (s ServiceSpec) Validate(env environment.Set) error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if s.Command == "" {
		return fmt.Errorf("%w: %s has no command", ErrInvalidSpec, s.Name)
	}
	if !s.Stop.Valid() {
		return fmt.Errorf("%w: %s has unknown stop strategy %q", ErrInvalidSpec, s.Name, s.Stop)
	}
	for _, key := range s.RequiredEnv {
		if _, ok := s.Env[key]; ok {
			continue
		}
		if _, ok := env[key]; !ok {
			return fmt.Errorf("%w: %s requires environment variable %s", ErrInvalidSpec, s.Name, key)
		}
	}
	return nil
}

func (s ServiceSpec) stopTimeout() time.Duration {
	if s.StopTimeout > 0 {
		return s.StopTimeout
	}
	return DefaultStopTimeout
}

func (s ServiceSpec) stopStrategy() StopStrategy {
	if s.Stop == "" {
		return StopTree
	}
	return s.Stop
}

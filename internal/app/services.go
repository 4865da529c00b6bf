package app

import (
	"context"
	"sync"

	"deskshell/internal/config"
	"deskshell/internal/environment"
	"deskshell/internal/orchestrator"
	"deskshell/internal/ports"
	"deskshell/internal/presentation"
	"deskshell/internal/process"
	"deskshell/internal/reporting"
	"deskshell/internal/userconfig"
	"deskshell/pkg/logging"
)

// updateBufferSize bounds the updates queued for the presenter.
const updateBufferSize = 64

// Services holds all the initialized components of one application run
type Services struct {
	Allocator    *ports.Allocator
	Supervisor   *process.Supervisor
	Orchestrator *orchestrator.Orchestrator
	Reporter     reporting.ServiceReporter
	Updates      *reporting.BufferedChannel
	UserConfig   *userconfig.Store
	Presenter    *presentation.ConsolePresenter

	closeOnce sync.Once
}

// InitializeServices wires the allocator, supervisor, reporters and
// orchestrator for cfg.DeskshellConfig.
func InitializeServices(cfg *Config) (*Services, error) {
	dc := *cfg.DeskshellConfig
	base := environment.Host()

	// Credentials exported on the host are persisted for the backend, which
	// reads the same file when launched outside deskshell.
	store := userconfig.New(dc.Directories.UserConfig)
	if err := store.Merge(base); err != nil {
		logging.Warn("Services", "Could not update user settings %s: %v", store.Path, err)
	}
	user, err := store.Load()
	if err != nil {
		logging.Warn("Services", "Ignoring unreadable user settings %s: %v", store.Path, err)
		user = environment.Set{}
	}

	allocator := ports.NewAllocator(
		ports.WithHost(dc.Ports.BindHost),
		ports.WithMaxAttempts(dc.Ports.MaxAttempts),
	)
	supervisor := process.NewSupervisor()

	// Failures must reach the presenter even when the buffer is full.
	policy := reporting.NewOverflowPolicy(reporting.BufferActionDrop).
		Set(reporting.StateFailed, reporting.BufferActionEvictOldest).
		Set(reporting.StateRunning, reporting.BufferActionEvictOldest)
	updates := reporting.NewBufferedChannel(updateBufferSize, policy)

	reporter := reporting.MultiReporter{
		reporting.NewConsoleReporter(),
		reporting.NewChannelReporter(updates),
	}

	orch := orchestrator.New(OrchestratorConfig(dc, cfg.Debug, base, user), orchestrator.Deps{
		Allocator:  allocator,
		Supervisor: supervisor,
		Reporter:   reporter,
	})
	logging.Debug("Services", "Initialized run %s", orch.RunID())

	return &Services{
		Allocator:    allocator,
		Supervisor:   supervisor,
		Orchestrator: orch,
		Reporter:     reporter,
		Updates:      updates,
		UserConfig:   store,
		Presenter:    presentation.NewConsolePresenter(cfg.Output, presentation.WithCopyURL(cfg.CopyURL)),
	}, nil
}

// OrchestratorConfig translates the file configuration into one run's
// orchestrator configuration.
func OrchestratorConfig(dc config.DeskshellConfig, debug bool, base, user environment.Set) orchestrator.Config {
	return orchestrator.Config{
		Host:      dc.Host,
		ProbeHost: dc.Ports.BindHost,
		Backend:   serviceConfig(dc, "backend", dc.Backend),
		Frontend:  serviceConfig(dc, "frontend", dc.Frontend),
		Base:      base,
		User:      user,
		Paths: environment.Paths{
			AppData:    dc.Directories.AppData,
			Temp:       dc.Directories.Temp,
			UserConfig: dc.Directories.UserConfig,
		},
		Switches: map[string]bool{
			environment.SwitchDev:   dc.Mode == config.ModeDev || debug,
			environment.SwitchDebug: debug,
		},
		ShutdownTimeout: dc.ShutdownTimeout,
	}
}

func serviceConfig(dc config.DeskshellConfig, name string, def config.ServiceDefinition) orchestrator.ServiceConfig {
	l := def.Launch(dc.Mode)
	return orchestrator.ServiceConfig{
		Name:        name,
		Command:     l.Command,
		Args:        l.Args,
		WorkingDir:  dc.ResolveDir(l.WorkingDir),
		Policy:      def.Env,
		RequiredEnv: def.RequiredEnv,
		Probe: orchestrator.ProbeConfig{
			Type: orchestrator.ProbeType(def.Probe.Type),
			Path: def.Probe.Path,
		},
		ReadyTimeout: def.ReadyTimeout,
		StopTimeout:  def.StopTimeout,
		Stop:         l.Stop,
	}
}

// Hooks are the two lifecycle events of the window host.
type Hooks struct {
	// OnReady runs the startup sequence and presents the result.
	OnReady func(ctx context.Context) error
	// OnAllWindowsClosed stops everything. It returns once teardown is done.
	OnAllWindowsClosed func(ctx context.Context)
}

// Hooks returns the lifecycle hooks bound to these services.
func (s *Services) Hooks() Hooks {
	return Hooks{
		OnReady: func(ctx context.Context) error {
			handoff, err := s.Orchestrator.Start(ctx)
			if err != nil {
				return err
			}
			return s.Presenter.Present(ctx, handoff)
		},
		OnAllWindowsClosed: func(ctx context.Context) {
			s.Orchestrator.Shutdown(ctx)
			s.closeOnce.Do(func() {
				s.Supervisor.Close(ctx)
				s.Updates.Close()
			})
		},
	}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deskshell/internal/environment"
	"deskshell/internal/ports"
	"deskshell/internal/process"
	"deskshell/internal/reporting"
	"deskshell/internal/shutdown"
	"deskshell/pkg/logging"

	"github.com/google/uuid"
)

var (
	// ErrStartupCancelled is returned by Start when shutdown was requested or
	// the context ended before the run reached Running.
	ErrStartupCancelled = errors.New("startup cancelled")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("orchestrator already started")
)

// PortAllocator hands out distinct free ports.
type PortAllocator interface {
	Allocate(ctx context.Context, k int) (ports.Assignment, error)
}

// Supervisor starts, watches and stops service processes.
type Supervisor interface {
	Spawn(ctx context.Context, spec process.ServiceSpec, env environment.Set) (*process.Handle, error)
	AwaitReady(ctx context.Context, h *process.Handle, probe process.Probe, timeout time.Duration) (process.Readiness, error)
	Terminate(ctx context.Context, h *process.Handle) error
}

// Deps are the collaborators of an Orchestrator. Nil fields get defaults.
type Deps struct {
	Allocator  PortAllocator
	Supervisor Supervisor
	Reporter   reporting.ServiceReporter
}

// Handoff is what the presentation layer receives once both services are up.
type Handoff struct {
	BackendPort  int
	FrontendPort int
	BackendURL   string
	FrontendURL  string
}

// Orchestrator runs the startup sequence once and tears it down once.
type Orchestrator struct {
	cfg         Config
	allocator   PortAllocator
	supervisor  Supervisor
	coordinator *shutdown.Coordinator
	reporter    reporting.ServiceReporter
	runID       string

	mu          sync.Mutex
	state       State
	started     bool
	handoff     Handoff
	backend     *process.Handle
	frontend    *process.Handle
	subscribers []func(Transition)
	cancelStart context.CancelFunc
	startDone   chan struct{}

	exited     chan struct{}
	exitedOnce sync.Once
}

// New creates an orchestrator in the Idle state. Nothing is started until Start.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Allocator == nil {
		deps.Allocator = ports.NewAllocator()
	}
	if deps.Supervisor == nil {
		deps.Supervisor = process.NewSupervisor()
	}
	if deps.Reporter == nil {
		deps.Reporter = reporting.NewConsoleReporter()
	}
	cfg = cfg.withDefaults()

	return &Orchestrator{
		cfg:         cfg,
		allocator:   deps.Allocator,
		supervisor:  deps.Supervisor,
		coordinator: shutdown.New(deps.Supervisor, shutdown.WithTimeout(cfg.ShutdownTimeout)),
		reporter:    deps.Reporter,
		runID:       uuid.New().String(),
		state:       Idle,
		exited:      make(chan struct{}),
	}
}

// RunID identifies this run in logs and reports.
func (o *Orchestrator) RunID() string { return o.runID }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Handoff returns the addresses published once the run reached Running.
func (o *Orchestrator) Handoff() (Handoff, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handoff, o.state == Running
}

// Handles returns the spawned service processes, backend first.
func (o *Orchestrator) Handles() []*process.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*process.Handle
	if o.backend != nil {
		out = append(out, o.backend)
	}
	if o.frontend != nil {
		out = append(out, o.frontend)
	}
	return out
}

// Subscribe registers fn to be called after every state change. Callbacks run
// synchronously on the goroutine that made the change and must not block.
func (o *Orchestrator) Subscribe(fn func(Transition)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// Exited is closed when a service exits on its own after the run reached Running.
func (o *Orchestrator) Exited() <-chan struct{} {
	return o.exited
}

// Start runs the startup sequence and returns the handoff once both services
// are ready. On failure everything already spawned is stopped before Start
// returns the error.
func (o *Orchestrator) Start(ctx context.Context) (Handoff, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return Handoff{}, ErrAlreadyStarted
	}
	o.started = true
	if o.state != Idle {
		// Shutdown won the race.
		o.mu.Unlock()
		return Handoff{}, ErrStartupCancelled
	}
	startCtx, cancel := context.WithCancel(ctx)
	o.cancelStart = cancel
	o.startDone = make(chan struct{})
	done := o.startDone
	o.mu.Unlock()

	defer close(done)
	defer cancel()

	logging.Info("Orchestrator", "Starting run %s", o.runID)
	handoff, err := o.start(startCtx)
	if err != nil {
		if startCtx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrStartupCancelled, context.Cause(startCtx))
		}
		logging.Error("Orchestrator", err, "Startup failed")
		o.report(reporting.NewManagedServiceUpdate(reporting.ServiceTypeSystem, "orchestrator", reporting.StateFailed).WithError(err))
		o.teardown(ctx, err)
		return Handoff{}, err
	}

	logging.Info("Orchestrator", "Running: backend %s, frontend %s", handoff.BackendURL, handoff.FrontendURL)
	o.watchExits()
	return handoff, nil
}

func (o *Orchestrator) start(ctx context.Context) (Handoff, error) {
	assignment, err := o.allocator.Allocate(ctx, 2)
	if err != nil {
		return Handoff{}, err
	}
	p := environment.Ports{Backend: assignment[0], Frontend: assignment[1]}
	if err := o.transition(PortsAllocated, nil); err != nil {
		return Handoff{}, err
	}
	logging.Info("Orchestrator", "Allocated ports: backend %d, frontend %d", p.Backend, p.Frontend)

	in := o.cfg.Inputs(p)
	vars := in.Variables()
	envs := environment.ComposeAll(map[string]environment.ServicePolicy{
		o.cfg.Backend.Name:  o.cfg.Backend.Policy,
		o.cfg.Frontend.Name: o.cfg.Frontend.Policy,
	}, in)

	handoff := Handoff{
		BackendPort:  p.Backend,
		FrontendPort: p.Frontend,
		BackendURL:   environment.URL(o.cfg.Host, p.Backend),
		FrontendURL:  environment.URL(o.cfg.Host, p.Frontend),
	}

	// The frontend is only spawned once the backend answers on its port.
	if err := o.launch(ctx, o.cfg.Backend, reporting.ServiceTypeBackend, p.Backend, vars, envs[o.cfg.Backend.Name], BackendStarting, BackendReady); err != nil {
		return Handoff{}, err
	}

	if err := o.launch(ctx, o.cfg.Frontend, reporting.ServiceTypeFrontend, p.Frontend, vars, envs[o.cfg.Frontend.Name], FrontendStarting, FrontendReady); err != nil {
		return Handoff{}, err
	}

	o.mu.Lock()
	o.handoff = handoff
	o.mu.Unlock()
	if err := o.transition(Running, nil); err != nil {
		return Handoff{}, err
	}
	return handoff, nil
}

// launch spawns one service and waits for it. The handle is tracked as soon
// as the process exists.
func (o *Orchestrator) launch(ctx context.Context, sc ServiceConfig, kind reporting.ServiceType, port int, vars, env environment.Set, starting, ready State) error {
	spec, err := o.cfg.serviceSpec(sc, port, vars, env)
	if err != nil {
		return &process.SpawnError{Service: sc.Name, Command: sc.Command, Err: err}
	}
	if err := o.transition(starting, nil); err != nil {
		return err
	}

	update := reporting.NewManagedServiceUpdate(kind, sc.Name, reporting.StateStarting)
	update.Port = port
	o.report(update)

	h, err := o.supervisor.Spawn(ctx, spec, env)
	if err != nil {
		o.report(update.WithError(err))
		return err
	}
	// Published before the readiness wait so a concurrent Shutdown stops it.
	o.mu.Lock()
	if kind == reporting.ServiceTypeBackend {
		o.backend = h
	} else {
		o.frontend = h
	}
	o.mu.Unlock()

	result, err := o.supervisor.AwaitReady(ctx, h, spec.Probe, spec.ReadyTimeout)
	switch result {
	case process.ReadyOK:
	case process.ReadyCancelled:
		return ErrStartupCancelled
	default:
		if err == nil {
			err = fmt.Errorf("%s did not become ready: %s", sc.Name, result)
		}
		o.report(update.WithProcess(h.PID(), port).WithError(err))
		return err
	}

	if err := o.transition(ready, nil); err != nil {
		return err
	}
	running := reporting.NewManagedServiceUpdate(kind, sc.Name, reporting.StateRunning).WithProcess(h.PID(), port)
	running.URL = environment.URL(o.cfg.Host, port)
	o.report(running)
	return nil
}

// watchExits closes Exited when either service stops on its own.
func (o *Orchestrator) watchExits() {
	o.mu.Lock()
	backend, frontend := o.backend, o.frontend
	o.mu.Unlock()

	for _, h := range []*process.Handle{backend, frontend} {
		go func(h *process.Handle) {
			<-h.Done()
			if o.State() != Running {
				return
			}
			logging.Warn("Orchestrator", "%s exited unexpectedly (exit code %d)", h.Service(), h.ExitCode())
			o.exitedOnce.Do(func() { close(o.exited) })
		}(h)
	}
}

// Shutdown cancels a startup in progress and stops every spawned service. It
// is idempotent and safe to call concurrently with Start and with itself;
// every call returns only after teardown has finished or ctx has ended.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	cancel, startDone := o.cancelStart, o.startDone
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if startDone != nil {
		select {
		case <-startDone:
		case <-ctx.Done():
		}
	}
	o.teardown(ctx, nil)
}

func (o *Orchestrator) teardown(ctx context.Context, cause error) {
	var invalid *InvalidTransitionError
	if err := o.transition(ShuttingDown, cause); err != nil && !errors.As(err, &invalid) {
		logging.Warn("Orchestrator", "%v", err)
	}

	handles := o.Handles()
	for _, h := range handles {
		o.report(reporting.NewManagedServiceUpdate(serviceType(o.cfg, h), h.Service(), reporting.StateStopping).WithProcess(h.PID(), 0))
	}

	o.coordinator.ShutdownAll(ctx, handles)

	// The coordinator works once; handles it never saw are stopped here.
	for _, h := range handles {
		if h.Alive() {
			tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ShutdownTimeout)
			if err := o.supervisor.Terminate(tctx, h); err != nil {
				logging.Warn("Orchestrator", "Late stop of %s: %v", h.Service(), err)
			}
			cancel()
		}
	}

	if err := o.transition(Stopped, nil); err == nil {
		for _, h := range handles {
			o.report(reporting.NewManagedServiceUpdate(serviceType(o.cfg, h), h.Service(), reporting.StateStopped).WithProcess(h.PID(), 0))
		}
		logging.Info("Orchestrator", "Run %s stopped", o.runID)
	}
}

// transition moves to dst and notifies subscribers outside the lock.
func (o *Orchestrator) transition(dst State, cause error) error {
	o.mu.Lock()
	src := o.state
	if !ValidTransition(src, dst) {
		o.mu.Unlock()
		return &InvalidTransitionError{From: src, To: dst}
	}
	o.state = dst
	subs := append([]func(Transition){}, o.subscribers...)
	o.mu.Unlock()

	logging.Debug("Orchestrator", "State %s -> %s", src, dst)
	t := Transition{From: src, To: dst, At: time.Now(), RunID: o.runID, Err: cause}
	for _, fn := range subs {
		fn(t)
	}
	return nil
}

func (o *Orchestrator) report(update reporting.ManagedServiceUpdate) {
	update.RunID = o.runID
	o.reporter.Report(update)
}

func serviceType(cfg Config, h *process.Handle) reporting.ServiceType {
	if h.Service() == cfg.Backend.Name {
		return reporting.ServiceTypeBackend
	}
	return reporting.ServiceTypeFrontend
}

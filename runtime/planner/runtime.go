package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/pathplanhq/pathplanner/domain/geom"
	"github.com/pathplanhq/pathplanner/eventbus"
	"github.com/pathplanhq/pathplanner/eventlog"
	"github.com/pathplanhq/pathplanner/internal/engine"
	"github.com/pathplanhq/pathplanner/internal/telemetry"
)

// Runtime hosts the planner process's side of the workflow: registration
// with the engine, and the two host goroutines (bus relay, timeout-scan
// ticker) that feed the workflow its inbound signal, since the workflow
// itself can neither subscribe to the bus nor sleep on a timer.
type Runtime struct {
	engine engine.Engine
	log    eventlog.Log
	bus    eventbus.Bus
	logger telemetry.Logger
}

// Options configures a Runtime.
type Options struct {
	Engine engine.Engine
	Log    eventlog.Log
	Bus    eventbus.Bus
	Logger telemetry.Logger
}

// New constructs a Runtime. Logger defaults to a no-op if unset.
func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Runtime{engine: opts.Engine, log: opts.Log, bus: opts.Bus, logger: logger}
}

// Register registers the planner workflow and its activities with the
// engine. Call once per process before Run.
func (r *Runtime) Register(ctx context.Context, taskQueue string) error {
	acts := &Activities{Log: r.log, Bus: r.bus}
	defs := []engine.ActivityDefinition{
		{Name: ActivityLoadEvents, Handler: acts.LoadEvents},
		{Name: ActivityAppendEvents, Handler: acts.AppendEvents},
		{Name: ActivityPublishEvents, Handler: acts.PublishEvents},
	}
	for _, def := range defs {
		if err := r.engine.RegisterActivity(ctx, def); err != nil {
			return fmt.Errorf("register activity %s: %w", def.Name, err)
		}
	}
	return r.engine.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      WorkflowName,
		TaskQueue: taskQueue,
		Handler:   Workflow,
	})
}

// RunOptions configures one planner aggregate's workflow execution.
type RunOptions struct {
	PlannerID  string
	Algorithm  geom.Algorithm
	Workspace  geom.Bounds
	TaskQueue  string

	// TickInterval paces the timeout-scan signal. Defaults to one second.
	TickInterval time.Duration
	// HeartbeatStaleAfter is how long a worker may go without a WorkerReady
	// republish before the tick marks it offline. Zero disables the check.
	HeartbeatStaleAfter time.Duration
}

// Run starts this planner's workflow and relays bus-delivered envelopes and
// periodic timeout-scan ticks into it as signals until ctx is cancelled or
// the workflow returns.
func (r *Runtime) Run(ctx context.Context, opts RunOptions) error {
	handle, err := r.engine.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:        "planner:" + opts.PlannerID,
		Workflow:  WorkflowName,
		TaskQueue: opts.TaskQueue,
		Input:     WorkflowInput{PlannerID: opts.PlannerID, Algorithm: opts.Algorithm, Workspace: opts.Workspace},
	})
	if err != nil {
		return fmt.Errorf("start planner workflow: %w", err)
	}

	sub, err := r.bus.Subscribe(ctx, eventbus.Filter{AggregateID: opts.PlannerID})
	if err != nil {
		return fmt.Errorf("subscribe planner bus: %w", err)
	}
	defer sub.Close()

	relayDone := make(chan struct{})
	tickDone := make(chan struct{})
	go func() { defer close(relayDone); r.relayBus(ctx, handle, sub) }()
	go func() { defer close(tickDone); r.tick(ctx, handle, opts.TickInterval, opts.HeartbeatStaleAfter) }()

	var result struct{}
	waitErr := handle.Wait(ctx, &result)

	<-relayDone
	<-tickDone
	return waitErr
}

func (r *Runtime) relayBus(ctx context.Context, handle engine.WorkflowHandle, sub eventbus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := handle.Signal(ctx, signalName, InboundSignal{Envelope: env}); err != nil {
				r.logger.Warn(ctx, "failed to relay bus envelope to planner workflow", "error", err.Error())
			}
		}
	}
}

func (r *Runtime) tick(ctx context.Context, handle engine.WorkflowHandle, interval, staleAfter time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			sig := InboundSignal{Tick: &TickSignal{Now: now, StaleAfter: staleAfter}}
			if err := handle.Signal(ctx, signalName, sig); err != nil {
				r.logger.Warn(ctx, "failed to deliver tick signal to planner workflow", "error", err.Error())
			}
		}
	}
}

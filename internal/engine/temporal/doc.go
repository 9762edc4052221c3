// Package temporal implements the planner workflow engine adapter backed by
// Temporal (https://temporal.io). It satisfies the generic engine.Engine
// interface, allowing the planner runtime to orchestrate durable workflows
// without importing the Temporal SDK directly outside this package.
//
// # Why Temporal?
//
// Temporal provides durable execution for the long-running planner aggregate.
// Each planner_id maps to one workflow execution, which survives process
// restarts and network failures by replaying its event history. Bus-relayed
// commands arrive as signals; all durable I/O (appending to the event log,
// publishing to the event bus) happens inside activities, which are not
// constrained by replay determinism.
//
// # Constructing an Engine
//
//	eng, err := temporal.New(temporal.Options{
//	    ClientOptions: &client.Options{
//	        HostPort:  "temporal:7233",
//	        Namespace: "default",
//	    },
//	    WorkerOptions: temporal.WorkerOptions{
//	        TaskQueue: "pathplanner.planner",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
// # Worker vs Client Mode
//
// The same engine can operate in two modes:
//
//   - Worker mode: polls task queues and executes the planner workflow locally.
//     Used by the planner process.
//
//   - Client mode: submits workflows (or sends signals) without local execution.
//     No binary in this repository uses it; the client CLI publishes its
//     requests on the event bus instead.
//
// # Workflow Determinism
//
// The planner workflow handler must be deterministic: given the same signal
// and activity-result history, it must produce the same sequence of commands
// applied to the aggregate. This package exposes only deterministic operations
// through WorkflowContext:
//
//   - Now() returns workflow time, not wall-clock time
//   - ExecuteActivity / ExecuteActivityAsync schedule the append/publish activities
//   - SignalChannel returns deterministic, replay-safe signal receivers
//
// # OpenTelemetry Integration
//
// The engine installs OTEL interceptors on the Temporal client and worker,
// propagating trace context through workflow and activity boundaries unless
// InstrumentationOptions.DisableTracing is set.
package temporal

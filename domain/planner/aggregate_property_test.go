package planner

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

// TestAutoDispatchNeverExceedsWorkerCapacityProperty verifies that no
// matter how many idle capable workers and pending plans exist, handling a
// single RequestPathPlan never assigns more plans than there are idle
// workers — auto-dispatch exhausts one side or the other, it never
// over-commits.
func TestAutoDispatchNeverExceedsWorkerCapacityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("assigned count never exceeds idle worker count", prop.ForAll(
		func(workerCount int) bool {
			state := NewState("planner-1")
			now := time.Unix(0, 0)
			evts, _ := HandleCommand(state, CreatePlanner{PlannerID: "planner-1", Algorithm: geom.AStar, Workspace: testWorkspace}, now)
			for _, e := range evts {
				state = ApplyEvent(state, e)
			}

			for i := 0; i < workerCount; i++ {
				workerID := rune('a' + i)
				evts, _ = HandleCommand(state, RegisterWorker{WorkerID: string(workerID), Capabilities: []geom.Algorithm{geom.AStar}}, now)
				for _, e := range evts {
					state = ApplyEvent(state, e)
				}
				evts, _ = HandleCommand(state, MarkWorkerReady{WorkerID: string(workerID)}, now)
				for _, e := range evts {
					state = ApplyEvent(state, e)
				}
			}

			evts, err := HandleCommand(state, RequestPathPlan{
				PlanID: "plan-1", AgentID: "agent-1",
				Start: geom.Position{X: 1, Y: 1}, Goal: geom.Position{X: 2, Y: 2},
				RequestedAt: now,
			}, now)
			if err != nil {
				return false
			}
			for _, e := range evts {
				state = ApplyEvent(state, e)
			}
			return len(state.Assignments) <= 1 && len(state.Assignments) <= workerCount
		},
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

// TestVersionIncreasesByExactlyOnePerAppliedEventProperty verifies the
// optimistic-concurrency invariant the log depends on: applying N events
// advances Version by exactly N, regardless of which variants they are.
func TestVersionIncreasesByExactlyOnePerAppliedEventProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("version tracks applied event count", prop.ForAll(
		func(workerCount int) bool {
			state := NewState("planner-1")
			now := time.Unix(0, 0)
			applied := uint64(0)

			evts, _ := HandleCommand(state, CreatePlanner{PlannerID: "planner-1", Algorithm: geom.AStar, Workspace: testWorkspace}, now)
			for _, e := range evts {
				state = ApplyEvent(state, e)
				applied++
			}

			for i := 0; i < workerCount; i++ {
				workerID := rune('a' + i)
				evts, _ = HandleCommand(state, RegisterWorker{WorkerID: string(workerID), Capabilities: []geom.Algorithm{geom.AStar}}, now)
				for _, e := range evts {
					state = ApplyEvent(state, e)
					applied++
				}
			}

			return state.Version == applied
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

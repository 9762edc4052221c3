package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
	"github.com/pathplanhq/pathplanner/eventbus"
	busInmem "github.com/pathplanhq/pathplanner/eventbus/inmem"
	"github.com/pathplanhq/pathplanner/runtime/worker"
)

const testTimeout = 5 * time.Second

func TestRunCompletesAssignedPlanWithStraightLineCapability(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := busInmem.New()
	const plannerID, workerID, planID = "planner-1", "w1", "plan-1"

	obs, err := bus.Subscribe(ctx, eventbus.Filter{AggregateID: plannerID})
	require.NoError(t, err)
	defer obs.Close()

	runDone := make(chan error, 1)
	go func() {
		runDone <- worker.Run(ctx, worker.Options{
			PlannerID:    plannerID,
			WorkerID:     workerID,
			Capabilities: []geom.Algorithm{geom.AStar},
			Capability:   worker.StraightLineCapability,
			Bus:          bus,
		})
	}()

	waitForType(t, obs, event.WorkerRegistered)
	waitForType(t, obs, event.WorkerReady)

	publish(t, ctx, bus, event.NewPathPlanRequestedEvent(plannerID, planID, "agent-1",
		geom.Position{X: 0, Y: 0}, geom.Position{X: 5, Y: 5}, geom.Orientation{}, geom.Orientation{}, time.Now(), time.Time{}))
	publish(t, ctx, bus, event.NewPlanAssignedEvent(plannerID, planID, workerID, 30, time.Now(), time.Time{}))

	completedEnv := waitForType(t, obs, event.PlanCompleted)
	var completed event.PlanCompletedEvent
	require.NoError(t, json.Unmarshal(completedEnv.Payload, &completed))
	require.Equal(t, planID, completed.PlanID)
	require.Equal(t, []geom.Position{{X: 0, Y: 0}, {X: 5, Y: 5}}, completed.Waypoints)

	cancel()
	select {
	case <-runDone:
	case <-time.After(testTimeout):
		t.Fatal("worker did not shut down after context cancellation")
	}
}

// TestRunIgnoresAssignmentsForOtherWorkers verifies a worker never acts on a
// PlanAssigned addressed to a different worker_id.
func TestRunIgnoresAssignmentsForOtherWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := busInmem.New()
	const plannerID, workerID, planID = "planner-1", "w1", "plan-1"

	obs, err := bus.Subscribe(ctx, eventbus.Filter{AggregateID: plannerID})
	require.NoError(t, err)
	defer obs.Close()

	runDone := make(chan error, 1)
	go func() {
		runDone <- worker.Run(ctx, worker.Options{
			PlannerID:    plannerID,
			WorkerID:     workerID,
			Capabilities: []geom.Algorithm{geom.AStar},
			Capability:   worker.StraightLineCapability,
			Bus:          bus,
		})
	}()

	waitForType(t, obs, event.WorkerRegistered)
	waitForType(t, obs, event.WorkerReady)

	publish(t, ctx, bus, event.NewPathPlanRequestedEvent(plannerID, planID, "agent-1",
		geom.Position{X: 0, Y: 0}, geom.Position{X: 5, Y: 5}, geom.Orientation{}, geom.Orientation{}, time.Now(), time.Time{}))
	publish(t, ctx, bus, event.NewPlanAssignedEvent(plannerID, planID, "some-other-worker", 30, time.Now(), time.Time{}))

	requireNoEventWithin(t, obs, event.PlanCompleted, 200*time.Millisecond)

	cancel()
	select {
	case <-runDone:
	case <-time.After(testTimeout):
		t.Fatal("worker did not shut down after context cancellation")
	}
}

func TestRunReportsPlanFailedWhenCapabilityErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := busInmem.New()
	const plannerID, workerID, planID = "planner-1", "w1", "plan-1"

	obs, err := bus.Subscribe(ctx, eventbus.Filter{AggregateID: plannerID})
	require.NoError(t, err)
	defer obs.Close()

	failingCapability := func(_ context.Context, _, _ geom.Position) ([]geom.Position, error) {
		return nil, errors.New("no route found")
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- worker.Run(ctx, worker.Options{
			PlannerID:    plannerID,
			WorkerID:     workerID,
			Capabilities: []geom.Algorithm{geom.AStar},
			Capability:   failingCapability,
			Bus:          bus,
		})
	}()

	waitForType(t, obs, event.WorkerRegistered)
	waitForType(t, obs, event.WorkerReady)

	publish(t, ctx, bus, event.NewPathPlanRequestedEvent(plannerID, planID, "agent-1",
		geom.Position{X: 0, Y: 0}, geom.Position{X: 5, Y: 5}, geom.Orientation{}, geom.Orientation{}, time.Now(), time.Time{}))
	publish(t, ctx, bus, event.NewPlanAssignedEvent(plannerID, planID, workerID, 30, time.Now(), time.Time{}))

	failedEnv := waitForType(t, obs, event.PlanFailed)
	var failed event.PlanFailedEvent
	require.NoError(t, json.Unmarshal(failedEnv.Payload, &failed))
	require.Equal(t, planID, failed.PlanID)
	require.Equal(t, "no route found", failed.Reason)

	cancel()
	select {
	case <-runDone:
	case <-time.After(testTimeout):
		t.Fatal("worker did not shut down after context cancellation")
	}
}

func publish(t *testing.T, ctx context.Context, bus eventbus.Bus, evt event.Event) {
	t.Helper()
	env, err := event.Encode(event.NewEventID(), evt, event.Metadata{Source: "test"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, env))
}

func waitForType(t *testing.T, obs eventbus.Subscription, eventType event.Type) *event.Envelope {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case env, ok := <-obs.Events():
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", eventType)
			}
			if env.EventType == eventType {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event type %s", eventType)
		}
	}
}

func requireNoEventWithin(t *testing.T, obs eventbus.Subscription, eventType event.Type, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case env, ok := <-obs.Events():
			if !ok {
				return
			}
			require.NotEqual(t, eventType, env.EventType)
		case <-deadline:
			return
		}
	}
}

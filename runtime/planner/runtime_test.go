package planner_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
	"github.com/pathplanhq/pathplanner/eventbus"
	busInmem "github.com/pathplanhq/pathplanner/eventbus/inmem"
	logInmem "github.com/pathplanhq/pathplanner/eventlog/inmem"
	engineInmem "github.com/pathplanhq/pathplanner/internal/engine/inmem"
	"github.com/pathplanhq/pathplanner/runtime/planner"
)

const testTimeout = 5 * time.Second

func TestRuntimeDispatchesPathPlanToRegisteredWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engineInmem.New()
	log := logInmem.New()
	bus := busInmem.New()

	rt := planner.New(planner.Options{Engine: eng, Log: log, Bus: bus})
	require.NoError(t, rt.Register(ctx, "planner"))

	const plannerID = "planner-1"
	workspace := geom.Bounds{MinX: 0, MaxX: 100, MinY: 0, MaxY: 100}

	obs, err := bus.Subscribe(ctx, eventbus.Filter{AggregateID: plannerID})
	require.NoError(t, err)
	defer obs.Close()

	runDone := make(chan error, 1)
	go func() {
		runDone <- rt.Run(ctx, planner.RunOptions{
			PlannerID:    plannerID,
			Algorithm:    geom.AStar,
			Workspace:    workspace,
			TaskQueue:    "planner",
			TickInterval: 20 * time.Millisecond,
		})
	}()

	waitForType(t, obs, event.PlannerCreated)

	publish(t, ctx, bus, event.NewWorkerRegisteredEvent(plannerID, "w1", []geom.Algorithm{geom.AStar}, time.Time{}))
	waitForType(t, obs, event.WorkerRegistered)

	publish(t, ctx, bus, event.NewWorkerReadyEvent(plannerID, "w1", time.Time{}))
	waitForType(t, obs, event.WorkerReady)

	publish(t, ctx, bus, event.NewPathPlanRequestedEvent(plannerID, "plan-1", "agent-1",
		geom.Position{X: 1, Y: 1}, geom.Position{X: 2, Y: 2}, geom.Orientation{}, geom.Orientation{}, time.Now(), time.Time{}))
	waitForType(t, obs, event.PathPlanRequested)

	assignedEnv := waitForType(t, obs, event.PlanAssigned)
	var assigned event.PlanAssignedEvent
	require.NoError(t, json.Unmarshal(assignedEnv.Payload, &assigned))
	require.Equal(t, "w1", assigned.WorkerID)
	require.Equal(t, "plan-1", assigned.PlanID)

	cancel()
	select {
	case <-runDone:
	case <-time.After(testTimeout):
		t.Fatal("runtime did not shut down after context cancellation")
	}
}

// TestRuntimeOutOfBoundsRequestIsRejectedWithoutAssignment verifies the
// command-rejection path end to end: an out-of-bounds request fails the
// aggregate command and no PlanAssigned reaches the bus.
func TestRuntimeOutOfBoundsRequestIsRejectedWithoutAssignment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engineInmem.New()
	log := logInmem.New()
	bus := busInmem.New()

	rt := planner.New(planner.Options{Engine: eng, Log: log, Bus: bus})
	require.NoError(t, rt.Register(ctx, "planner"))

	const plannerID = "planner-2"
	workspace := geom.Bounds{MinX: 0, MaxX: 100, MinY: 0, MaxY: 100}

	obs, err := bus.Subscribe(ctx, eventbus.Filter{AggregateID: plannerID})
	require.NoError(t, err)
	defer obs.Close()

	runDone := make(chan error, 1)
	go func() {
		runDone <- rt.Run(ctx, planner.RunOptions{
			PlannerID:    plannerID,
			Algorithm:    geom.AStar,
			Workspace:    workspace,
			TaskQueue:    "planner",
			TickInterval: 20 * time.Millisecond,
		})
	}()

	waitForType(t, obs, event.PlannerCreated)

	publish(t, ctx, bus, event.NewPathPlanRequestedEvent(plannerID, "plan-1", "agent-1",
		geom.Position{X: -5, Y: 1}, geom.Position{X: 2, Y: 2}, geom.Orientation{}, geom.Orientation{}, time.Now(), time.Time{}))
	requireNoEventWithin(t, obs, event.PlanAssigned, 200*time.Millisecond)

	cancel()
	select {
	case <-runDone:
	case <-time.After(testTimeout):
		t.Fatal("runtime did not shut down after context cancellation")
	}
}

func publish(t *testing.T, ctx context.Context, bus eventbus.Bus, evt event.Event) {
	t.Helper()
	env, err := event.Encode(event.NewEventID(), evt, event.Metadata{Source: "test"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, env))
}

// requireNoEventWithin drains obs for d and fails the test if an envelope of
// eventType arrives in that window.
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

// waitForType drains obs until an envelope of the given type arrives, or
// fails the test after testTimeout.
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

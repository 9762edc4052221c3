package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
)

var testWorkspace = geom.Bounds{MinX: 0, MaxX: 100, MinY: 0, MaxY: 100}

func newCreatedPlanner(t *testing.T) *State {
	t.Helper()
	state := NewState("planner-1")
	evts, err := HandleCommand(state, CreatePlanner{
		PlannerID: "planner-1",
		Algorithm: geom.AStar,
		Workspace: testWorkspace,
	}, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, evts, 1)
	for _, e := range evts {
		state = ApplyEvent(state, e)
	}
	return state
}

func TestCreatePlannerTwiceIsInvalid(t *testing.T) {
	state := newCreatedPlanner(t)
	_, err := HandleCommand(state, CreatePlanner{PlannerID: "planner-1", Algorithm: geom.AStar, Workspace: testWorkspace}, time.Now())
	require.Error(t, err)
	var target *InvalidCommandError
	require.ErrorAs(t, err, &target)
}

func TestRegisterWorkerThenReadyThenRequestAutoDispatches(t *testing.T) {
	state := newCreatedPlanner(t)
	now := time.Unix(100, 0)

	evts, err := HandleCommand(state, RegisterWorker{WorkerID: "w1", Capabilities: []geom.Algorithm{geom.AStar}}, now)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	require.Equal(t, "WorkerRegistered", string(evts[0].Type()))
	for _, e := range evts {
		state = ApplyEvent(state, e)
	}
	require.Equal(t, WorkerOffline, state.Workers["w1"].Status)

	evts, err = HandleCommand(state, MarkWorkerReady{WorkerID: "w1"}, now)
	require.NoError(t, err)
	require.Len(t, evts, 1) // ready, no plans to dispatch yet
	for _, e := range evts {
		state = ApplyEvent(state, e)
	}
	require.Equal(t, WorkerIdle, state.Workers["w1"].Status)

	evts, err = HandleCommand(state, RequestPathPlan{
		PlanID: "plan-1", AgentID: "agent-1",
		Start: geom.Position{X: 1, Y: 1}, Goal: geom.Position{X: 2, Y: 2},
		RequestedAt: now,
	}, now)
	require.NoError(t, err)
	// PathPlanRequested then auto-dispatch's PlanAssigned.
	require.Len(t, evts, 2)
	require.Equal(t, "PathPlanRequested", string(evts[0].Type()))
	require.Equal(t, "PlanAssigned", string(evts[1].Type()))
	for _, e := range evts {
		state = ApplyEvent(state, e)
	}
	require.Equal(t, PlanAssigned, state.Plans["plan-1"].Status)
	require.Equal(t, "w1", state.Assignments["plan-1"].WorkerID)
	require.Equal(t, "plan-1", state.Workers["w1"].CurrentPlanID)
}

func TestRequestPathPlanOutOfBoundsFailsWithoutEvent(t *testing.T) {
	state := newCreatedPlanner(t)
	before := state.clone()
	now := time.Unix(200, 0)

	evts, err := HandleCommand(state, RequestPathPlan{
		PlanID: "plan-1", AgentID: "agent-1",
		Start: geom.Position{X: -1, Y: 1}, Goal: geom.Position{X: 2, Y: 2},
		RequestedAt: now,
	}, now)
	require.Error(t, err)
	var target *PositionOutOfBoundsError
	require.ErrorAs(t, err, &target)
	require.Equal(t, geom.WhichStart, target.Which)
	require.Nil(t, evts)
	require.Equal(t, before, state)
}

func TestAcceptAssignmentWithoutLiveAssignmentFails(t *testing.T) {
	state := newCreatedPlanner(t)
	_, err := HandleCommand(state, AcceptAssignment{WorkerID: "w1", PlanID: "plan-1"}, time.Now())
	require.Error(t, err)
	var target *NoLiveAssignmentError
	require.ErrorAs(t, err, &target)
}

func TestWorkerOfflineRevertsInProgressPlanToPlanning(t *testing.T) {
	state := newCreatedPlanner(t)
	now := time.Unix(300, 0)

	for _, cmd := range []Command{
		RegisterWorker{WorkerID: "w1", Capabilities: []geom.Algorithm{geom.AStar}},
		MarkWorkerReady{WorkerID: "w1"},
		RequestPathPlan{PlanID: "plan-1", AgentID: "agent-1", Start: geom.Position{X: 1, Y: 1}, Goal: geom.Position{X: 2, Y: 2}, RequestedAt: now},
		AcceptAssignment{WorkerID: "w1", PlanID: "plan-1"},
	} {
		evts, err := HandleCommand(state, cmd, now)
		require.NoError(t, err)
		for _, e := range evts {
			state = ApplyEvent(state, e)
		}
	}
	require.Equal(t, PlanInProgress, state.Plans["plan-1"].Status)

	evts, err := HandleCommand(state, MarkWorkerOffline{WorkerID: "w1"}, now)
	require.NoError(t, err)
	for _, e := range evts {
		state = ApplyEvent(state, e)
	}
	require.Equal(t, PlanPlanning, state.Plans["plan-1"].Status)
	require.NotContains(t, state.Assignments, "plan-1")
	require.Equal(t, WorkerOffline, state.Workers["w1"].Status)
}

func TestCompletePlanRequiresOwnedActivePlan(t *testing.T) {
	state := newCreatedPlanner(t)
	_, err := HandleCommand(state, CompletePlan{WorkerID: "w1", PlanID: "plan-1"}, time.Now())
	require.Error(t, err)
	var target *PlanNotInStateError
	require.ErrorAs(t, err, &target)
}

// TestHandleCommandNeverMutatesInputState asserts the documented contract:
// HandleCommand works on a scratch clone, leaving the caller's state
// argument untouched regardless of how many events auto-dispatch chains.
func TestHandleCommandNeverMutatesInputState(t *testing.T) {
	state := newCreatedPlanner(t)
	before := state.Version

	_, err := HandleCommand(state, RegisterWorker{WorkerID: "w1", Capabilities: []geom.Algorithm{geom.AStar}}, time.Now())
	require.NoError(t, err)
	require.Equal(t, before, state.Version)
	require.Empty(t, state.Workers)
}

// TestApplyEventReplayIsDeterministic folds the same event sequence twice
// from a fresh state and requires identical resulting versions and plan
// status — the replay-equivalence law the event-sourced design depends on.
func TestApplyEventReplayIsDeterministic(t *testing.T) {
	state := newCreatedPlanner(t)
	now := time.Unix(400, 0)
	var all []event.Event
	for _, cmd := range []Command{
		RegisterWorker{WorkerID: "w1", Capabilities: []geom.Algorithm{geom.AStar}},
		MarkWorkerReady{WorkerID: "w1"},
		RequestPathPlan{PlanID: "plan-1", AgentID: "agent-1", Start: geom.Position{X: 1, Y: 1}, Goal: geom.Position{X: 2, Y: 2}, RequestedAt: now},
	} {
		evts, err := HandleCommand(state, cmd, now)
		require.NoError(t, err)
		all = append(all, evts...)
		for _, e := range evts {
			state = ApplyEvent(state, e)
		}
	}

	replay := NewState("planner-1")
	seedEvts, err := HandleCommand(replay, CreatePlanner{PlannerID: "planner-1", Algorithm: geom.AStar, Workspace: testWorkspace}, time.Unix(0, 0))
	require.NoError(t, err)
	for _, e := range seedEvts {
		replay = ApplyEvent(replay, e)
	}
	for _, e := range all {
		replay = ApplyEvent(replay, e)
	}

	require.Equal(t, state.Version, replay.Version)
	require.Equal(t, state.Plans["plan-1"].Status, replay.Plans["plan-1"].Status)
}

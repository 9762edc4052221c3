package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	cases := []event.Event{
		event.NewPlannerCreatedEvent("planner-1", geom.AStar, geom.Bounds{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}, now),
		event.NewPathPlanRequestedEvent("planner-1", "plan-1", "agent-1",
			geom.Position{X: 1, Y: 2}, geom.Position{X: 3, Y: 4},
			geom.Orientation{Radians: 0.5}, geom.Orientation{Radians: 1.5}, now, now),
		event.NewWorkerRegisteredEvent("planner-1", "w1", []geom.Algorithm{geom.AStar, geom.RRT}, now),
		event.NewWorkerReadyEvent("planner-1", "w1", now),
		event.NewWorkerBusyEvent("planner-1", "w1", "plan-1", now),
		event.NewWorkerOfflineEvent("planner-1", "w1", now),
		event.NewPlanAssignedEvent("planner-1", "plan-1", "w1", 300, now, now),
		event.NewPlanAssignmentAcceptedEvent("planner-1", "plan-1", "w1", now),
		event.NewPlanAssignmentRejectedEvent("planner-1", "plan-1", "w1", "busy", now),
		event.NewPlanAssignmentTimedOutEvent("planner-1", "plan-1", "w1", now),
		event.NewPlanCompletedEvent("planner-1", "plan-1", "w1", []geom.Position{{X: 1, Y: 2}, {X: 3, Y: 4}}, now),
		event.NewPlanFailedEvent("planner-1", "plan-1", "w1", "unreachable", now),
	}

	for _, evt := range cases {
		evt := evt
		t.Run(string(evt.Type()), func(t *testing.T) {
			env, err := event.Encode(event.NewEventID(), evt, event.Metadata{Source: "test"})
			require.NoError(t, err)
			require.Equal(t, evt.Type(), env.EventType)
			require.Equal(t, "planner-1", env.AggregateID)
			require.Equal(t, event.AggregateTypePlanner, env.AggregateType)

			require.NoError(t, event.ValidatePayload(env))

			decoded, err := event.Decode(env)
			require.NoError(t, err)
			require.Equal(t, evt, decoded)
		})
	}
}

// TestEnvelopePayloadUsesSnakeCaseFieldNames locks in the wire format spec
// §6 requires: event_data keys must match §3's field names, not Go's default
// PascalCase identifiers.
func TestEnvelopePayloadUsesSnakeCaseFieldNames(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	evt := event.NewPathPlanRequestedEvent("planner-1", "plan-1", "agent-1",
		geom.Position{X: 1, Y: 2}, geom.Position{X: 3, Y: 4},
		geom.Orientation{Radians: 0.5}, geom.Orientation{Radians: 1.5}, now, now)

	env, err := event.Encode(event.NewEventID(), evt, event.Metadata{})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &raw))
	for _, key := range []string{"plan_id", "agent_id", "start", "goal", "start_orientation", "goal_orientation", "requested_at"} {
		require.Contains(t, raw, key)
	}
	for _, key := range []string{"PlanID", "AgentID", "Start", "Goal"} {
		require.NotContains(t, raw, key)
	}
}

func TestDecodeUnknownEventTypeErrors(t *testing.T) {
	env := &event.Envelope{
		AggregateID: "planner-1",
		EventType:   event.Type("NotARealEvent"),
		Payload:     json.RawMessage(`{}`),
	}
	_, err := event.Decode(env)
	require.Error(t, err)
}

func TestValidatePayloadRejectsMissingRequiredField(t *testing.T) {
	env := &event.Envelope{
		AggregateID: "planner-1",
		EventType:   event.PathPlanRequested,
		Payload:     json.RawMessage(`{"agent_id":"agent-1"}`),
	}
	err := event.ValidatePayload(env)
	require.Error(t, err)
	var infraErr *event.InfrastructureError
	require.ErrorAs(t, err, &infraErr)
	require.Equal(t, event.Serialization, infraErr.Kind)
}

func TestValidatePayloadRejectsMalformedJSON(t *testing.T) {
	env := &event.Envelope{
		AggregateID: "planner-1",
		EventType:   event.WorkerReady,
		Payload:     json.RawMessage(`not json`),
	}
	err := event.ValidatePayload(env)
	require.Error(t, err)
	var infraErr *event.InfrastructureError
	require.ErrorAs(t, err, &infraErr)
}

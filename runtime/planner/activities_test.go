package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
	"github.com/pathplanhq/pathplanner/eventbus"
	busInmem "github.com/pathplanhq/pathplanner/eventbus/inmem"
	logInmem "github.com/pathplanhq/pathplanner/eventlog/inmem"
	"github.com/pathplanhq/pathplanner/runtime/planner"
)

func newTestEnvelope(t *testing.T, plannerID string) *event.Envelope {
	t.Helper()
	evt := event.NewWorkerRegisteredEvent(plannerID, "w1", []geom.Algorithm{geom.AStar}, time.Unix(0, 0))
	env, err := event.Encode("", evt, event.Metadata{})
	require.NoError(t, err)
	return env
}

func TestAppendEventsThenLoadEventsRoundTrips(t *testing.T) {
	ctx := context.Background()
	acts := &planner.Activities{Log: logInmem.New(), Bus: busInmem.New()}

	pending := []*event.Envelope{newTestEnvelope(t, "planner-1")}
	rawOut, err := acts.AppendEvents(ctx, planner.AppendEventsInput{
		AggregateID: "planner-1", ExpectedVersion: 0, Source: "test", Pending: pending,
	})
	require.NoError(t, err)
	out := rawOut.(planner.AppendEventsOutput)
	require.False(t, out.Conflict)
	require.Len(t, out.Envelopes, 1)
	require.NotEmpty(t, out.Envelopes[0].EventID) // AppendEvents mints the id

	rawLoaded, err := acts.LoadEvents(ctx, planner.LoadEventsInput{AggregateID: "planner-1", FromVersion: 0})
	require.NoError(t, err)
	loaded := rawLoaded.(planner.LoadEventsOutput)
	require.Len(t, loaded.Envelopes, 1)
	require.Equal(t, out.Envelopes[0].EventID, loaded.Envelopes[0].EventID)
}

func TestAppendEventsReportsVersionConflict(t *testing.T) {
	ctx := context.Background()
	acts := &planner.Activities{Log: logInmem.New(), Bus: busInmem.New()}

	_, err := acts.AppendEvents(ctx, planner.AppendEventsInput{
		AggregateID: "planner-1", ExpectedVersion: 0, Source: "test",
		Pending: []*event.Envelope{newTestEnvelope(t, "planner-1")},
	})
	require.NoError(t, err)

	rawOut, err := acts.AppendEvents(ctx, planner.AppendEventsInput{
		AggregateID: "planner-1", ExpectedVersion: 0, Source: "test",
		Pending: []*event.Envelope{newTestEnvelope(t, "planner-1")},
	})
	require.NoError(t, err)
	out := rawOut.(planner.AppendEventsOutput)
	require.True(t, out.Conflict)
	require.Equal(t, uint64(1), out.ActualVersion)
}

func TestAppendEventsChainsCausationWithinBatch(t *testing.T) {
	ctx := context.Background()
	acts := &planner.Activities{Log: logInmem.New(), Bus: busInmem.New()}

	pending := []*event.Envelope{newTestEnvelope(t, "planner-1"), newTestEnvelope(t, "planner-1")}
	rawOut, err := acts.AppendEvents(ctx, planner.AppendEventsInput{
		AggregateID: "planner-1", ExpectedVersion: 0, RootCausationID: "root-1", Source: "test", Pending: pending,
	})
	require.NoError(t, err)
	out := rawOut.(planner.AppendEventsOutput)
	require.Len(t, out.Envelopes, 2)
	require.Equal(t, "root-1", out.Envelopes[0].Metadata.CausationID)
	require.Equal(t, out.Envelopes[0].EventID, out.Envelopes[1].Metadata.CausationID)
}

func TestPublishEventsFansOutOnBus(t *testing.T) {
	ctx := context.Background()
	bus := busInmem.New()
	acts := &planner.Activities{Log: logInmem.New(), Bus: bus}

	sub, err := bus.Subscribe(ctx, eventbus.Filter{})
	require.NoError(t, err)
	defer sub.Close()

	env := newTestEnvelope(t, "planner-1")
	_, err = acts.PublishEvents(ctx, planner.PublishEventsInput{Envelopes: []*event.Envelope{env}})
	require.NoError(t, err)

	select {
	case got := <-sub.Events():
		require.Equal(t, env.EventType, got.EventType)
	case <-time.After(time.Second):
		t.Fatal("expected envelope on bus")
	}
}

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pathplanhq/pathplanner/domain/event"
)

func TestDedupeSetEvictsOldestPastLimit(t *testing.T) {
	d := newDedupeSet(2)
	d.add("a")
	d.add("b")
	require.True(t, d.contains("a"))
	d.add("c")
	require.False(t, d.contains("a"))
	require.True(t, d.contains("b"))
	require.True(t, d.contains("c"))
}

func TestDedupeSetIgnoresEmptyID(t *testing.T) {
	d := newDedupeSet(2)
	d.add("")
	require.False(t, d.contains(""))
}

func TestRequestCachePutIsIdempotentPerPlanID(t *testing.T) {
	c := newRequestCache(2)
	c.put("plan-1", event.PathPlanRequestedEvent{AgentID: "agent-1"})
	c.put("plan-1", event.PathPlanRequestedEvent{AgentID: "agent-2"})

	got, ok := c.get("plan-1")
	require.True(t, ok)
	require.Equal(t, "agent-1", got.AgentID) // first write wins
}

func TestRequestCacheEvictsOldestPastLimit(t *testing.T) {
	c := newRequestCache(1)
	c.put("plan-1", event.PathPlanRequestedEvent{AgentID: "agent-1"})
	c.put("plan-2", event.PathPlanRequestedEvent{AgentID: "agent-2"})

	_, ok := c.get("plan-1")
	require.False(t, ok)
	_, ok = c.get("plan-2")
	require.True(t, ok)
}

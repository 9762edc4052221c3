package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
planner:
  id: planner-1
  algorithm: AStar
  workspace_bounds: {min_x: 0, max_x: 10, min_y: 0, max_y: 10}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, defaultAssignmentTimeoutSeconds, cfg.Planner.AssignmentTimeoutSeconds)
	require.Equal(t, defaultTickIntervalMS, cfg.Planner.TickIntervalMS)
	require.Equal(t, defaultHeartbeatMS, cfg.Worker.HeartbeatMS)
	require.Equal(t, "inmem", cfg.Engine.Backend)
}

func TestLoadDefaultsTemporalTaskQueueWhenBackendSelected(t *testing.T) {
	path := writeConfig(t, `
planner:
  id: planner-1
  algorithm: AStar
engine:
  backend: temporal
  temporal: {host_port: "temporal:7233"}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "planner", cfg.Engine.Temporal.TaskQueue)
	require.Equal(t, "temporal:7233", cfg.Engine.Temporal.HostPort)
}

func TestLoadDoesNotOverrideExplicitValues(t *testing.T) {
	path := writeConfig(t, `
planner:
  id: planner-1
  algorithm: AStar
  assignment_timeout_seconds: 42
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Planner.AssignmentTimeoutSeconds)
}

func TestEnvOverridesWinOverFileValues(t *testing.T) {
	path := writeConfig(t, `
event_bus:
  brokers: ["file-broker:6379"]
  topic: file-topic
log:
  connection_string: mongodb://file
`)
	t.Setenv("PATHPLANNER_EVENT_BUS_BROKERS", "env-a:6379,env-b:6379")
	t.Setenv("PATHPLANNER_EVENT_BUS_TOPIC", "env-topic")
	t.Setenv("PATHPLANNER_LOG_CONNECTION_STRING", "mongodb://env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"env-a:6379", "env-b:6379"}, cfg.EventBus.Brokers)
	require.Equal(t, "env-topic", cfg.EventBus.Topic)
	require.Equal(t, "mongodb://env", cfg.Log.ConnectionString)
}

func TestParsedAlgorithmRejectsUnknownValue(t *testing.T) {
	p := Planner{Algorithm: "NotARealAlgorithm"}
	_, err := p.ParsedAlgorithm()
	require.Error(t, err)
}

func TestParsedAlgorithmAcceptsKnownValue(t *testing.T) {
	p := Planner{Algorithm: "AStar"}
	a, err := p.ParsedAlgorithm()
	require.NoError(t, err)
	require.Equal(t, geom.AStar, a)
}

func TestParsedCapabilitiesRejectsUnknownValue(t *testing.T) {
	w := Worker{Capabilities: []string{"AStar", "NotReal"}}
	_, err := w.ParsedCapabilities()
	require.Error(t, err)
}

func TestBoundsConvertsWorkspaceBounds(t *testing.T) {
	p := Planner{WorkspaceBounds: WorkspaceBounds{MinX: 1, MaxX: 2, MinY: 3, MaxY: 4}}
	require.Equal(t, geom.Bounds{MinX: 1, MaxX: 2, MinY: 3, MaxY: 4}, p.Bounds())
}

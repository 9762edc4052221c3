// Package config loads the planner/worker YAML configuration files described
// in the external-interfaces section: event bus endpoints, the durable log
// connection string, and the planner's own identity/algorithm/workspace.
// A fixed set of fields (see applyEnvOverrides) may be overridden by an
// environment variable so deployments can inject secrets (connection
// strings, broker addresses) without writing them to disk; the other fields
// come from the file or the defaults only.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

type (
	// EventBus configures the dispatch stream.
	EventBus struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	}

	// Log configures the durable event log backend.
	Log struct {
		ConnectionString string `yaml:"connection_string"`
	}

	// Temporal configures the Temporal engine adapter, used only when
	// Engine.Backend is "temporal".
	Temporal struct {
		HostPort  string `yaml:"host_port"`
		Namespace string `yaml:"namespace"`
		TaskQueue string `yaml:"task_queue"`
	}

	// Engine selects and configures the workflow engine backend a planner
	// process runs its aggregate workflow on.
	Engine struct {
		// Backend is "inmem" (default, single-process) or "temporal"
		// (durable execution, survives process restarts).
		Backend  string   `yaml:"backend"`
		Temporal Temporal `yaml:"temporal"`
	}

	// WorkspaceBounds mirrors geom.Bounds with yaml tags matching the
	// config file's snake_case field names.
	WorkspaceBounds struct {
		MinX float64 `yaml:"min_x"`
		MaxX float64 `yaml:"max_x"`
		MinY float64 `yaml:"min_y"`
		MaxY float64 `yaml:"max_y"`
	}

	// Planner configures this process's planner aggregate.
	Planner struct {
		ID                       string          `yaml:"id"`
		Algorithm                string          `yaml:"algorithm"`
		WorkspaceBounds          WorkspaceBounds `yaml:"workspace_bounds"`
		AssignmentTimeoutSeconds int             `yaml:"assignment_timeout_seconds"`
		TickIntervalMS           int             `yaml:"tick_interval_ms"`
	}

	// Worker configures a worker process's registration.
	Worker struct {
		ID           string   `yaml:"id"`
		PlannerID    string   `yaml:"planner_id"`
		Capabilities []string `yaml:"capabilities"`
		HeartbeatMS  int      `yaml:"heartbeat_ms"`
	}

	// Config is the root of a planner or worker YAML configuration file.
	Config struct {
		EventBus EventBus `yaml:"event_bus"`
		Log      Log      `yaml:"log"`
		Engine   Engine   `yaml:"engine"`
		Planner  Planner  `yaml:"planner"`
		Worker   Worker   `yaml:"worker"`
	}
)

// defaults mirror spec §6's enumerated default values.
const (
	defaultAssignmentTimeoutSeconds = 300
	defaultTickIntervalMS           = 1000
	defaultHeartbeatMS              = 15000
)

// Load reads and parses the YAML file at path, applies defaults, then lets
// the environment variables read by applyEnvOverrides win over both.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Planner.AssignmentTimeoutSeconds == 0 {
		cfg.Planner.AssignmentTimeoutSeconds = defaultAssignmentTimeoutSeconds
	}
	if cfg.Planner.TickIntervalMS == 0 {
		cfg.Planner.TickIntervalMS = defaultTickIntervalMS
	}
	if cfg.Worker.HeartbeatMS == 0 {
		cfg.Worker.HeartbeatMS = defaultHeartbeatMS
	}
	if cfg.Engine.Backend == "" {
		cfg.Engine.Backend = "inmem"
	}
	if cfg.Engine.Backend == "temporal" && cfg.Engine.Temporal.TaskQueue == "" {
		cfg.Engine.Temporal.TaskQueue = "planner"
	}
}

// applyEnvOverrides lets PATHPLANNER_EVENT_BUS_BROKERS (comma-separated),
// PATHPLANNER_EVENT_BUS_TOPIC, PATHPLANNER_LOG_CONNECTION_STRING,
// PATHPLANNER_PLANNER_TICK_INTERVAL_MS (ignored unless an integer),
// PATHPLANNER_ENGINE_BACKEND, and PATHPLANNER_ENGINE_TEMPORAL_HOST_PORT win
// over file values and defaults — the settings most often injected as
// secrets or per-environment endpoints in a deployment pipeline.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PATHPLANNER_EVENT_BUS_BROKERS"); v != "" {
		cfg.EventBus.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PATHPLANNER_EVENT_BUS_TOPIC"); v != "" {
		cfg.EventBus.Topic = v
	}
	if v := os.Getenv("PATHPLANNER_LOG_CONNECTION_STRING"); v != "" {
		cfg.Log.ConnectionString = v
	}
	if v := os.Getenv("PATHPLANNER_PLANNER_TICK_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Planner.TickIntervalMS = n
		}
	}
	if v := os.Getenv("PATHPLANNER_ENGINE_BACKEND"); v != "" {
		cfg.Engine.Backend = v
	}
	if v := os.Getenv("PATHPLANNER_ENGINE_TEMPORAL_HOST_PORT"); v != "" {
		cfg.Engine.Temporal.HostPort = v
	}
}

// ParsedAlgorithm parses Planner.Algorithm into a geom.Algorithm, validating it
// against the closed set.
func (p Planner) ParsedAlgorithm() (geom.Algorithm, error) {
	a := geom.Algorithm(p.Algorithm)
	if !a.Valid() {
		return "", fmt.Errorf("planner.algorithm: unknown algorithm %q", p.Algorithm)
	}
	return a, nil
}

// Bounds converts the config's WorkspaceBounds into geom.Bounds.
func (p Planner) Bounds() geom.Bounds {
	return geom.Bounds{
		MinX: p.WorkspaceBounds.MinX,
		MaxX: p.WorkspaceBounds.MaxX,
		MinY: p.WorkspaceBounds.MinY,
		MaxY: p.WorkspaceBounds.MaxY,
	}
}

// ParsedCapabilities parses Worker.Capabilities into geom.Algorithm values,
// validating each against the closed set.
func (w Worker) ParsedCapabilities() ([]geom.Algorithm, error) {
	out := make([]geom.Algorithm, 0, len(w.Capabilities))
	for _, c := range w.Capabilities {
		a := geom.Algorithm(c)
		if !a.Valid() {
			return nil, fmt.Errorf("worker.capabilities: unknown algorithm %q", c)
		}
		out = append(out, a)
	}
	return out, nil
}

// Package wiring assembles the concrete log/bus/engine adapters a cmd/
// binary wants from its loaded Config, picking durable or in-memory
// backends the way the teacher's own cmd/demo wires a Runtime directly in
// main.
package wiring

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pathplanhq/pathplanner/eventbus"
	busInmem "github.com/pathplanhq/pathplanner/eventbus/inmem"
	buspulse "github.com/pathplanhq/pathplanner/eventbus/pulse"
	clientspulse "github.com/pathplanhq/pathplanner/eventbus/pulse/clients/pulse"
	"github.com/pathplanhq/pathplanner/eventlog"
	logInmem "github.com/pathplanhq/pathplanner/eventlog/inmem"
	"github.com/pathplanhq/pathplanner/eventlog/mongodoc"
	"github.com/pathplanhq/pathplanner/internal/config"
	"github.com/pathplanhq/pathplanner/internal/engine"
	engineInmem "github.com/pathplanhq/pathplanner/internal/engine/inmem"
	enginetemporal "github.com/pathplanhq/pathplanner/internal/engine/temporal"
	temporalclient "go.temporal.io/sdk/client"
)

// BuildBus constructs a Redis/Pulse-backed bus when cfg.EventBus.Brokers is
// set, else an in-memory bus (only useful when every component sharing the
// bus lives in this same process).
func BuildBus(cfg *config.Config) (eventbus.Bus, error) {
	if len(cfg.EventBus.Brokers) == 0 {
		return busInmem.New(), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.EventBus.Brokers[0]})
	client, err := clientspulse.New(clientspulse.Options{Redis: rdb})
	if err != nil {
		return nil, fmt.Errorf("build pulse client: %w", err)
	}
	topic := cfg.EventBus.Topic
	if topic == "" {
		topic = "pathplanner"
	}
	bus, err := buspulse.New(buspulse.Options{Client: client, Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("build pulse bus: %w", err)
	}
	return bus, nil
}

// BuildLog constructs a MongoDB-backed log when cfg.Log.ConnectionString is
// set, else an in-memory log (tests and single-process demos only).
func BuildLog(ctx context.Context, cfg *config.Config) (eventlog.Log, error) {
	if cfg.Log.ConnectionString == "" {
		return logInmem.New(), nil
	}
	client, err := mongodriver.Connect(options.Client().ApplyURI(cfg.Log.ConnectionString))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return mongodoc.New(ctx, mongodoc.Options{Client: client, Database: "pathplanner"})
}

// BuildEngine constructs the workflow engine a planner process hosts its
// aggregate workflow on. cfg.Engine.Backend == "temporal" durably executes
// the workflow against a Temporal cluster; anything else (including the
// zero value) falls back to the single-process in-memory engine used by
// tests and local demos. The returned close func releases engine resources
// (the Temporal client, for the durable backend) and is always non-nil.
func BuildEngine(cfg *config.Config) (engine.Engine, func(), error) {
	if cfg.Engine.Backend != "temporal" {
		return engineInmem.New(), func() {}, nil
	}
	if cfg.Engine.Temporal.HostPort == "" {
		return nil, nil, fmt.Errorf("engine.temporal.host_port is required for the temporal backend")
	}
	eng, err := enginetemporal.New(enginetemporal.Options{
		ClientOptions: &temporalclient.Options{
			HostPort:  cfg.Engine.Temporal.HostPort,
			Namespace: cfg.Engine.Temporal.Namespace,
		},
		WorkerOptions: enginetemporal.WorkerOptions{
			TaskQueue: cfg.Engine.Temporal.TaskQueue,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build temporal engine: %w", err)
	}
	return eng, func() { _ = eng.Close() }, nil
}

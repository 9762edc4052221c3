// Command worker runs a single worker process: it registers with a planner,
// executes assigned plans with a capability function, and reports results
// back over the event bus. The only capability wired in this binary is the
// trivial straight-line one; real capability functions are expected to be
// supplied by a caller importing runtime/worker directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathplanhq/pathplanner/internal/config"
	"github.com/pathplanhq/pathplanner/internal/wiring"
	runtimeworker "github.com/pathplanhq/pathplanner/runtime/worker"
)

func main() {
	configPath := flag.String("config", "", "path to worker YAML config")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "worker: --config is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("worker: load config: %v", err)
	}
	capabilities, err := cfg.Worker.ParsedCapabilities()
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	if cfg.Worker.PlannerID == "" {
		log.Fatalf("worker: worker.planner_id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := wiring.BuildBus(cfg)
	if err != nil {
		log.Fatalf("worker: build bus: %v", err)
	}

	err = runtimeworker.Run(ctx, runtimeworker.Options{
		PlannerID:         cfg.Worker.PlannerID,
		WorkerID:          cfg.Worker.ID,
		Capabilities:      capabilities,
		Capability:        runtimeworker.StraightLineCapability,
		Bus:               bus,
		AssignmentTimeout: time.Duration(cfg.Planner.AssignmentTimeoutSeconds) * time.Second,
		HeartbeatInterval: time.Duration(cfg.Worker.HeartbeatMS) * time.Millisecond,
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("worker: run: %v", err)
	}
}

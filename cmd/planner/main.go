// Command planner runs a single planner aggregate's engine-hosted workflow.
// All wiring happens here in main, mirroring the teacher demo's style of
// assembling a runtime and delegating immediately to its Run entry point.
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
	runtimeplanner "github.com/pathplanhq/pathplanner/runtime/planner"
)

func main() {
	configPath := flag.String("config", "", "path to planner YAML config")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "planner: --config is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("planner: load config: %v", err)
	}
	algorithm, err := cfg.Planner.ParsedAlgorithm()
	if err != nil {
		log.Fatalf("planner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evLog, err := wiring.BuildLog(ctx, cfg)
	if err != nil {
		log.Fatalf("planner: build log: %v", err)
	}
	bus, err := wiring.BuildBus(cfg)
	if err != nil {
		log.Fatalf("planner: build bus: %v", err)
	}
	eng, closeEngine, err := wiring.BuildEngine(cfg)
	if err != nil {
		log.Fatalf("planner: build engine: %v", err)
	}
	defer closeEngine()

	rt := runtimeplanner.New(runtimeplanner.Options{Engine: eng, Log: evLog, Bus: bus})
	taskQueue := cfg.Engine.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = "planner"
	}
	if err := rt.Register(ctx, taskQueue); err != nil {
		log.Fatalf("planner: register workflow: %v", err)
	}

	err = rt.Run(ctx, runtimeplanner.RunOptions{
		PlannerID:           cfg.Planner.ID,
		Algorithm:           algorithm,
		Workspace:           cfg.Planner.Bounds(),
		TaskQueue:           taskQueue,
		TickInterval:        time.Duration(cfg.Planner.TickIntervalMS) * time.Millisecond,
		HeartbeatStaleAfter: 60 * time.Second,
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("planner: run: %v", err)
	}
}

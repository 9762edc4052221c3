// Command client submits a single path plan request to a planner over the
// event bus. The client mints its own plan_id: workflow code can never
// generate one deterministically, so that responsibility falls to whatever
// process originates the request.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
	"github.com/pathplanhq/pathplanner/internal/config"
	"github.com/pathplanhq/pathplanner/internal/wiring"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config supplying event_bus settings")
	plannerID := flag.String("planner", "", "planner aggregate id")
	agentID := flag.String("agent", "", "requesting agent id")
	start := flag.String("start", "", "start position as x,y")
	goal := flag.String("goal", "", "goal position as x,y")
	startOrient := flag.Float64("start-theta", 0, "start orientation in radians")
	goalOrient := flag.Float64("goal-theta", 0, "goal orientation in radians")
	flag.Parse()

	if *configPath == "" || *plannerID == "" || *agentID == "" || *start == "" || *goal == "" {
		fmt.Fprintln(os.Stderr, "client: --config, --planner, --agent, --start, and --goal are required")
		os.Exit(2)
	}

	startPos, err := parsePosition(*start)
	if err != nil {
		log.Fatalf("client: --start: %v", err)
	}
	goalPos, err := parsePosition(*goal)
	if err != nil {
		log.Fatalf("client: --goal: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("client: load config: %v", err)
	}
	bus, err := wiring.BuildBus(cfg)
	if err != nil {
		log.Fatalf("client: build bus: %v", err)
	}

	planID := uuid.NewString()
	now := time.Now().UTC()
	evt := event.NewPathPlanRequestedEvent(
		*plannerID, planID, *agentID,
		startPos, goalPos,
		geom.Orientation{Radians: *startOrient}, geom.Orientation{Radians: *goalOrient},
		now, now,
	)
	env, err := event.Encode(event.NewEventID(), evt, event.Metadata{Source: "client:" + *agentID})
	if err != nil {
		log.Fatalf("client: encode request: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, env); err != nil {
		log.Fatalf("client: publish request: %v", err)
	}
	fmt.Println(planID)
}

func parsePosition(s string) (geom.Position, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return geom.Position{}, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geom.Position{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geom.Position{}, fmt.Errorf("invalid y: %w", err)
	}
	return geom.Position{X: x, Y: y}, nil
}

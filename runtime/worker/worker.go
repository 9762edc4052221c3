// Package worker implements the worker process: a plain concurrent Go
// service (not an engine-hosted workflow — a worker has no aggregate state
// of its own to replay) that registers with a planner, executes assigned
// plans one at a time, and reports back over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
	"github.com/pathplanhq/pathplanner/eventbus"
	"github.com/pathplanhq/pathplanner/internal/telemetry"
)

// Capability computes a sequence of waypoints from start to goal. This is
// the out-of-scope planning algorithm hook described in spec §1 — Run
// invokes whatever Capability the process is configured with.
type Capability func(ctx context.Context, start, goal geom.Position) ([]geom.Position, error)

// Options configures one worker process.
type Options struct {
	PlannerID    string
	WorkerID     string
	Capabilities []geom.Algorithm
	Capability   Capability
	Bus          eventbus.Bus

	// AssignmentTimeout is the planner's configured assignment_timeout; the
	// worker enforces 0.9x locally so its report always beats the planner's
	// own timeout scan.
	AssignmentTimeout time.Duration
	HeartbeatInterval time.Duration

	Logger telemetry.Logger
}

// dedupeCap bounds the processed-plan-id set so a long-running worker
// doesn't grow it unboundedly.
const dedupeCap = 4096

// Run executes the registration handshake, then the heartbeat and
// dispatch-consume loops, until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	source := "worker:" + opts.WorkerID

	if err := publish(ctx, opts.Bus, event.NewWorkerRegisteredEvent(opts.PlannerID, opts.WorkerID, opts.Capabilities, time.Time{}), source, ""); err != nil {
		return fmt.Errorf("registration handshake: %w", err)
	}
	if err := publish(ctx, opts.Bus, event.NewWorkerReadyEvent(opts.PlannerID, opts.WorkerID, time.Time{}), source, ""); err != nil {
		return fmt.Errorf("registration handshake: %w", err)
	}

	// The worker subscribes to PathPlanRequested too: PlanAssigned carries
	// only plan_id/worker_id/timeout, not the geometry the capability needs
	// to run. Requests are cached by plan_id until their assignment (or
	// forever discarded if this worker is never the one assigned).
	sub, err := opts.Bus.Subscribe(ctx, eventbus.Filter{
		AggregateID: opts.PlannerID,
		EventTypes:  []event.Type{event.PathPlanRequested, event.PlanAssigned},
	})
	if err != nil {
		return fmt.Errorf("subscribe plan assignments: %w", err)
	}
	defer sub.Close()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		heartbeat(ctx, opts, source, logger)
	}()

	seen := newDedupeSet(dedupeCap)
	requests := newRequestCache(dedupeCap)
	for {
		select {
		case <-ctx.Done():
			<-heartbeatDone
			return nil

		case env, ok := <-sub.Events():
			if !ok {
				<-heartbeatDone
				return nil
			}

			if err := event.ValidatePayload(env); err != nil {
				logger.Warn(ctx, "dropping envelope that failed schema validation", "event_type", env.EventType, "error", err.Error())
				continue
			}

			switch env.EventType {
			case event.PathPlanRequested:
				var req event.PathPlanRequestedEvent
				if err := json.Unmarshal(env.Payload, &req); err != nil {
					logger.Warn(ctx, "dropping malformed PathPlanRequested envelope", "error", err.Error())
					continue
				}
				requests.put(req.PlanID, req)

			case event.PlanAssigned:
				var p event.PlanAssignedEvent
				if err := json.Unmarshal(env.Payload, &p); err != nil {
					logger.Warn(ctx, "dropping malformed PlanAssigned envelope", "error", err.Error())
					continue
				}
				if p.WorkerID != opts.WorkerID {
					continue
				}
				if seen.contains(p.PlanID) {
					continue
				}
				req, ok := requests.get(p.PlanID)
				if !ok {
					logger.Warn(ctx, "assigned plan with no cached request, skipping", "plan_id", p.PlanID)
					continue
				}
				seen.add(p.PlanID)
				executeAndReport(ctx, opts, env.EventID, p, req, logger)
			}
		}
	}
}

// executeAndReport runs the capability under the 0.9x local timeout and
// publishes PlanCompleted or PlanFailed, causally linked to the triggering
// PlanAssigned envelope.
func executeAndReport(ctx context.Context, opts Options, causationID string, p event.PlanAssignedEvent, req event.PathPlanRequestedEvent, logger telemetry.Logger) {
	timeout := time.Duration(float64(opts.AssignmentTimeout) * 0.9)
	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	source := "worker:" + opts.WorkerID
	waypoints, err := opts.Capability(execCtx, req.Start, req.Goal)
	if err != nil {
		failEvt := event.NewPlanFailedEvent(opts.PlannerID, p.PlanID, opts.WorkerID, err.Error(), time.Time{})
		if perr := publish(ctx, opts.Bus, failEvt, source, causationID); perr != nil {
			logger.Error(ctx, "failed to report plan failure", "plan_id", p.PlanID, "error", perr.Error())
		}
		return
	}
	doneEvt := event.NewPlanCompletedEvent(opts.PlannerID, p.PlanID, opts.WorkerID, waypoints, time.Time{})
	if perr := publish(ctx, opts.Bus, doneEvt, source, causationID); perr != nil {
		logger.Error(ctx, "failed to report plan completion", "plan_id", p.PlanID, "error", perr.Error())
	}
}

func heartbeat(ctx context.Context, opts Options, source string, logger telemetry.Logger) {
	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	// warnOnFailure keeps a sustained bus outage from spamming one warning
	// line per missed heartbeat; it logs at most once every 30s regardless
	// of how many ticks fail in between.
	warnOnFailure := rate.Sometimes{Interval: 30 * time.Second}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			evt := event.NewWorkerReadyEvent(opts.PlannerID, opts.WorkerID, time.Time{})
			if err := publish(ctx, opts.Bus, evt, source, ""); err != nil {
				warnOnFailure.Do(func() { logger.Warn(ctx, "heartbeat publish failed", "error", err.Error()) })
			}
		}
	}
}

func publish(ctx context.Context, bus eventbus.Bus, evt event.Event, source, causationID string) error {
	env, err := event.Encode(event.NewEventID(), evt, event.Metadata{Source: source, CausationID: causationID})
	if err != nil {
		return err
	}
	return bus.Publish(ctx, env)
}

// StraightLineCapability is a trivial built-in Capability: a direct
// two-point path from start to goal. It exists only so the CLI demo and
// tests have something to execute; it is not a real planning algorithm.
func StraightLineCapability(_ context.Context, start, goal geom.Position) ([]geom.Position, error) {
	return []geom.Position{start, goal}, nil
}

// requestCache remembers PathPlanRequested geometry by plan_id until the
// corresponding PlanAssigned arrives (or the cache evicts it, for a request
// never assigned to this worker).
type requestCache struct {
	limit int
	order []string
	byID  map[string]event.PathPlanRequestedEvent
}

func newRequestCache(limit int) *requestCache {
	return &requestCache{limit: limit, byID: make(map[string]event.PathPlanRequestedEvent)}
}

func (c *requestCache) put(planID string, req event.PathPlanRequestedEvent) {
	if _, ok := c.byID[planID]; ok {
		return
	}
	c.byID[planID] = req
	c.order = append(c.order, planID)
	if len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.byID, oldest)
	}
}

func (c *requestCache) get(planID string) (event.PathPlanRequestedEvent, bool) {
	req, ok := c.byID[planID]
	return req, ok
}

type dedupeSet struct {
	limit int
	order []string
	seen  map[string]struct{}
}

func newDedupeSet(limit int) *dedupeSet {
	return &dedupeSet{limit: limit, seen: make(map[string]struct{})}
}

func (d *dedupeSet) contains(id string) bool {
	_, ok := d.seen[id]
	return ok
}

func (d *dedupeSet) add(id string) {
	if id == "" {
		return
	}
	if _, ok := d.seen[id]; ok {
		return
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	if len(d.order) > d.limit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
}

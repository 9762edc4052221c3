package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
	dplanner "github.com/pathplanhq/pathplanner/domain/planner"
	"github.com/pathplanhq/pathplanner/internal/engine"
)

// WorkflowName is the identifier registered with the engine for the planner
// aggregate's workflow.
const WorkflowName = "PlannerWorkflow"

// signalName is the single channel both the bus relay and the timeout-scan
// ticker deliver to. A single channel keeps the workflow loop to one
// blocking receive per iteration rather than a multi-channel select the
// engine abstraction does not expose.
const signalName = "inbound"

// dedupeWindow bounds the processed event_id set kept to absorb at-least-once
// bus redelivery of the same inbound envelope.
const dedupeWindow = 4096

type (
	// WorkflowInput starts a planner workflow for one planner_id. Algorithm
	// and Workspace are only consulted the first time this planner_id runs
	// (log empty); on every subsequent run bootstrap replays them from the
	// PlannerCreated event instead.
	WorkflowInput struct {
		PlannerID string
		Algorithm geom.Algorithm
		Workspace geom.Bounds
	}

	// InboundSignal is the inbound channel's payload. Exactly one field is
	// set: Envelope for a bus-relayed command-bearing event, Tick for a
	// host-process timeout-scan pulse.
	InboundSignal struct {
		Envelope *event.Envelope
		Tick     *TickSignal
	}

	// TickSignal drives the periodic scans the workflow cannot time itself
	// (WorkflowContext exposes no sleep/timer primitive, only Now).
	TickSignal struct {
		Now        time.Time
		StaleAfter time.Duration
	}
)

// Workflow is the engine-hosted workflow function for one planner aggregate.
// It bootstraps state from the log, then loops handling inbound signals
// until the workflow's context is cancelled.
func Workflow(wctx engine.WorkflowContext, rawInput any) (any, error) {
	input, ok := rawInput.(WorkflowInput)
	if !ok {
		return nil, fmt.Errorf("PlannerWorkflow: unexpected input type %T", rawInput)
	}

	state, err := bootstrap(wctx, input)
	if err != nil {
		return nil, fmt.Errorf("bootstrap planner %s: %w", input.PlannerID, err)
	}

	seen := newDedupeSet(dedupeWindow)
	sig := wctx.SignalChannel(signalName)

	for {
		var in InboundSignal
		if err := sig.Receive(wctx.Context(), &in); err != nil {
			if wctx.Context().Err() != nil {
				return struct{}{}, nil
			}
			return nil, err
		}

		switch {
		case in.Tick != nil:
			state = handleTick(wctx, input.PlannerID, state, in.Tick)

		case in.Envelope != nil:
			if seen.contains(in.Envelope.EventID) {
				continue
			}
			seen.add(in.Envelope.EventID)
			// The bus subscription also delivers the events this planner
			// persisted and published itself; they are outputs, not inbound
			// commands.
			if in.Envelope.Metadata.Source == "planner:"+input.PlannerID {
				continue
			}

			cmd, err := translateInbound(in.Envelope)
			if err != nil {
				wctx.Logger().Warn(wctx.Context(), "dropping unrecognized inbound envelope",
					"event_type", in.Envelope.EventType, "error", err.Error())
				continue
			}
			next, err := processCommand(wctx, input.PlannerID, state, cmd, in.Envelope.EventID)
			if err != nil {
				wctx.Logger().Error(wctx.Context(), "command processing failed", "error", err.Error())
				continue
			}
			state = next
		}
	}
}

// bootstrap loads the planner's full event history and replays it. An empty
// log means this planner_id has never run before; it issues CreatePlanner as
// the aggregate's first command to seed the stream.
func bootstrap(wctx engine.WorkflowContext, input WorkflowInput) (*dplanner.State, error) {
	state := dplanner.NewState(input.PlannerID)

	var loaded LoadEventsOutput
	req := engine.ActivityRequest{Name: ActivityLoadEvents, Input: LoadEventsInput{AggregateID: input.PlannerID, FromVersion: 0}}
	if err := wctx.ExecuteActivity(wctx.Context(), req, &loaded); err != nil {
		return nil, err
	}
	state = applyEnvelopes(state, loaded.Envelopes)

	if state.Version > 0 {
		return state, nil
	}

	next, err := processCommand(wctx, input.PlannerID, state,
		dplanner.CreatePlanner{PlannerID: input.PlannerID, Algorithm: input.Algorithm, Workspace: input.Workspace}, "")
	if err != nil {
		return nil, err
	}
	return next, nil
}

// handleTick runs the two periodic scans the timeout-scan tick drives: stale
// heartbeats first (a worker that has gone silent is marked offline, which
// also reverts any plan it was holding), then due assignment timeouts.
func handleTick(wctx engine.WorkflowContext, plannerID string, state *dplanner.State, tick *TickSignal) *dplanner.State {
	for _, workerID := range staleWorkers(state, tick.Now, tick.StaleAfter) {
		next, err := processCommand(wctx, plannerID, state, dplanner.MarkWorkerOffline{WorkerID: workerID}, "")
		if err != nil {
			wctx.Logger().Error(wctx.Context(), "mark worker offline on heartbeat staleness failed",
				"worker_id", workerID, "error", err.Error())
			continue
		}
		state = next
	}

	for _, planID := range dueAssignments(state, tick.Now) {
		a, ok := state.Assignments[planID]
		if !ok {
			continue
		}
		next, err := processCommand(wctx, plannerID, state, dplanner.TimeoutAssignment{WorkerID: a.WorkerID, PlanID: a.PlanID}, "")
		if err != nil {
			wctx.Logger().Error(wctx.Context(), "timeout assignment failed",
				"plan_id", planID, "error", err.Error())
			continue
		}
		state = next
	}
	return state
}

// processCommand runs one domain command through handle_command, persists and
// applies the resulting events (with a single refresh-and-retry on optimistic
// concurrency conflict), and publishes the persisted batch. causationID is
// the event_id of the inbound envelope this command was derived from, or ""
// for a timeout-scan-derived command.
func processCommand(wctx engine.WorkflowContext, plannerID string, state *dplanner.State, cmd dplanner.Command, causationID string) (*dplanner.State, error) {
	events, err := dplanner.HandleCommand(state, cmd, wctx.Now())
	if err != nil {
		var domainErr dplanner.DomainError
		if errors.As(err, &domainErr) {
			wctx.Logger().Info(wctx.Context(), "command rejected", "reason", domainErr.Error())
			return state, nil
		}
		return state, err
	}
	if len(events) == 0 {
		return state, nil
	}

	pending := make([]*event.Envelope, len(events))
	for i, evt := range events {
		env, err := event.Encode("", evt, event.Metadata{})
		if err != nil {
			return state, err
		}
		pending[i] = env
	}

	finalized, next, err := appendAndApply(wctx, plannerID, state, pending, causationID)
	if err != nil {
		return state, err
	}
	publishEvents(wctx, finalized)
	return next, nil
}

// appendAndApply persists pending through ActivityAppendEvents, retrying
// exactly once after reloading the tail if the planner's version moved
// between handle_command and append (another signal was processed by a
// concurrent run, or after a crash the log already contains what bootstrap
// missed).
func appendAndApply(wctx engine.WorkflowContext, plannerID string, state *dplanner.State, pending []*event.Envelope, causationID string) ([]*event.Envelope, *dplanner.State, error) {
	req := AppendEventsInput{
		AggregateID:     plannerID,
		ExpectedVersion: state.Version,
		RootCausationID: causationID,
		Source:          "planner:" + plannerID,
		Pending:         pending,
	}

	var out AppendEventsOutput
	if err := wctx.ExecuteActivity(wctx.Context(), engine.ActivityRequest{Name: ActivityAppendEvents, Input: req}, &out); err != nil {
		return nil, state, err
	}
	if !out.Conflict {
		return out.Envelopes, applyEnvelopes(state, out.Envelopes), nil
	}

	refreshed, err := refreshState(wctx, plannerID, state)
	if err != nil {
		return nil, state, err
	}
	req.ExpectedVersion = refreshed.Version

	var retry AppendEventsOutput
	if err := wctx.ExecuteActivity(wctx.Context(), engine.ActivityRequest{Name: ActivityAppendEvents, Input: req}, &retry); err != nil {
		return nil, refreshed, err
	}
	if retry.Conflict {
		return nil, refreshed, fmt.Errorf("version conflict persists for %s after refresh-and-retry", plannerID)
	}
	return retry.Envelopes, applyEnvelopes(refreshed, retry.Envelopes), nil
}

// refreshState loads and replays any events appended to the log past state's
// version.
func refreshState(wctx engine.WorkflowContext, plannerID string, state *dplanner.State) (*dplanner.State, error) {
	var out LoadEventsOutput
	req := engine.ActivityRequest{Name: ActivityLoadEvents, Input: LoadEventsInput{AggregateID: plannerID, FromVersion: state.Version}}
	if err := wctx.ExecuteActivity(wctx.Context(), req, &out); err != nil {
		return nil, err
	}
	return applyEnvelopes(state, out.Envelopes), nil
}

func applyEnvelopes(state *dplanner.State, envs []*event.Envelope) *dplanner.State {
	cur := state
	for _, env := range envs {
		evt, err := event.Decode(env)
		if err != nil {
			continue
		}
		cur = dplanner.ApplyEvent(cur, evt)
	}
	return cur
}

// publishEvents fans the persisted batch out on the bus. A publish failure
// is logged, not retried by the workflow itself — the activity's own retry
// policy covers transient bus errors, and the log is already durable.
func publishEvents(wctx engine.WorkflowContext, envs []*event.Envelope) {
	if len(envs) == 0 {
		return
	}
	req := engine.ActivityRequest{Name: ActivityPublishEvents, Input: PublishEventsInput{Envelopes: envs}}
	if err := wctx.ExecuteActivity(wctx.Context(), req, new(struct{})); err != nil {
		wctx.Logger().Warn(wctx.Context(), "publish failed", "error", err.Error())
	}
}

// translateInbound derives the domain command a bus-delivered envelope
// represents. Plan ids are minted by the submitting client, not here —
// deriving them inside the workflow would call into a non-deterministic id
// generator on every replay.
func translateInbound(env *event.Envelope) (dplanner.Command, error) {
	if err := event.ValidatePayload(env); err != nil {
		return nil, err
	}
	switch env.EventType {
	case event.PathPlanRequested:
		var p event.PathPlanRequestedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.RequestPathPlan{
			PlanID: p.PlanID, AgentID: p.AgentID,
			Start: p.Start, Goal: p.Goal,
			StartOrientation: p.StartOrientation, GoalOrientation: p.GoalOrientation,
			RequestedAt: p.RequestedAt,
		}, nil

	case event.WorkerRegistered:
		var p event.WorkerRegisteredEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.RegisterWorker{WorkerID: p.WorkerID, Capabilities: p.Capabilities}, nil

	case event.WorkerReady:
		var p event.WorkerReadyEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.MarkWorkerReady{WorkerID: p.WorkerID}, nil

	case event.WorkerOffline:
		var p event.WorkerOfflineEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.MarkWorkerOffline{WorkerID: p.WorkerID}, nil

	case event.PlanAssignmentAccepted:
		var p event.PlanAssignmentAcceptedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.AcceptAssignment{WorkerID: p.WorkerID, PlanID: p.PlanID}, nil

	case event.PlanAssignmentRejected:
		var p event.PlanAssignmentRejectedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.RejectAssignment{WorkerID: p.WorkerID, PlanID: p.PlanID, Reason: p.Reason}, nil

	case event.PlanCompleted:
		var p event.PlanCompletedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.CompletePlan{WorkerID: p.WorkerID, PlanID: p.PlanID, Waypoints: p.Waypoints}, nil

	case event.PlanFailed:
		var p event.PlanFailedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return dplanner.FailPlan{WorkerID: p.WorkerID, PlanID: p.PlanID, Reason: p.Reason}, nil

	default:
		return nil, fmt.Errorf("no command derivable from event type %q", env.EventType)
	}
}

// dueAssignments returns plan ids whose assignment timeout has elapsed as of
// now, oldest first.
func dueAssignments(state *dplanner.State, now time.Time) []string {
	var due []string
	for planID, a := range state.Assignments {
		if !a.TimeoutAt.After(now) {
			due = append(due, planID)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ai, aj := state.Assignments[due[i]], state.Assignments[due[j]]
		if !ai.AssignedAt.Equal(aj.AssignedAt) {
			return ai.AssignedAt.Before(aj.AssignedAt)
		}
		return due[i] < due[j]
	})
	return due
}

// staleWorkers returns worker ids that have not sent a WorkerReady heartbeat
// within staleAfter. A worker that has never sent one (LastHeartbeat zero)
// is not yet considered stale — it may simply not have finished registering.
func staleWorkers(state *dplanner.State, now time.Time, staleAfter time.Duration) []string {
	if staleAfter <= 0 {
		return nil
	}
	var stale []string
	for id, w := range state.Workers {
		if w.Status == dplanner.WorkerOffline || w.LastHeartbeat.IsZero() {
			continue
		}
		if now.Sub(w.LastHeartbeat) > staleAfter {
			stale = append(stale, id)
		}
	}
	return stale
}

// dedupeSet is a bounded FIFO set of recently processed event ids, used to
// absorb at-least-once bus redelivery of the same inbound envelope.
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

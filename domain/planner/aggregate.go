package planner

import (
	"time"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/domain/geom"
)

// HandleCommand validates cmd against state and returns the ordered sequence
// of events it produces. It never mutates state: internally it works on a
// scratch clone so that auto-dispatch (which may chain several events within
// one command) sees each prior event's effect, while the caller's state
// argument is left untouched. now and any minted ids travel in through cmd
// or the now parameter — handle_command never reads the clock itself.
func HandleCommand(state *State, cmd Command, now time.Time) ([]event.Event, error) {
	scratch := state.clone()
	var events []event.Event

	switch c := cmd.(type) {
	case CreatePlanner:
		if state.Version > 0 {
			return nil, &InvalidCommandError{Reason: "planner already created"}
		}
		events = append(events, event.NewPlannerCreatedEvent(c.PlannerID, c.Algorithm, c.Workspace, now))

	case RegisterWorker:
		if _, ok := scratch.Workers[c.WorkerID]; ok {
			return nil, &DuplicateWorkerError{WorkerID: c.WorkerID}
		}
		events = append(events, event.NewWorkerRegisteredEvent(scratch.PlannerID, c.WorkerID, c.Capabilities, now))

	case MarkWorkerReady:
		if _, ok := scratch.Workers[c.WorkerID]; !ok {
			return nil, &UnknownWorkerError{WorkerID: c.WorkerID}
		}
		ready := event.NewWorkerReadyEvent(scratch.PlannerID, c.WorkerID, now)
		events = append(events, ready)
		applyInto(scratch, ready)
		events = append(events, autoDispatch(scratch, now)...)

	case RequestPathPlan:
		which, ok := outOfBounds(scratch.Workspace, c.Start, c.Goal)
		if !ok {
			return nil, &PositionOutOfBoundsError{Which: which}
		}
		requested := event.NewPathPlanRequestedEvent(scratch.PlannerID, c.PlanID, c.AgentID,
			c.Start, c.Goal, c.StartOrientation, c.GoalOrientation, c.RequestedAt, now)
		events = append(events, requested)
		applyInto(scratch, requested)
		events = append(events, autoDispatch(scratch, now)...)

	case AcceptAssignment:
		a, ok := scratch.Assignments[c.PlanID]
		if !ok || a.WorkerID != c.WorkerID {
			return nil, &NoLiveAssignmentError{WorkerID: c.WorkerID, PlanID: c.PlanID}
		}
		accepted := event.NewPlanAssignmentAcceptedEvent(scratch.PlannerID, c.PlanID, c.WorkerID, now)
		events = append(events, accepted)
		applyInto(scratch, accepted)
		busy := event.NewWorkerBusyEvent(scratch.PlannerID, c.WorkerID, c.PlanID, now)
		events = append(events, busy)
		applyInto(scratch, busy)

	case CompletePlan:
		if err := requireOwnedActivePlan(scratch, c.PlanID, c.WorkerID); err != nil {
			return nil, err
		}
		completed := event.NewPlanCompletedEvent(scratch.PlannerID, c.PlanID, c.WorkerID, c.Waypoints, now)
		events = append(events, completed)
		applyInto(scratch, completed)
		ready := event.NewWorkerReadyEvent(scratch.PlannerID, c.WorkerID, now)
		events = append(events, ready)
		applyInto(scratch, ready)
		events = append(events, autoDispatch(scratch, now)...)

	case FailPlan:
		if err := requireOwnedActivePlan(scratch, c.PlanID, c.WorkerID); err != nil {
			return nil, err
		}
		failed := event.NewPlanFailedEvent(scratch.PlannerID, c.PlanID, c.WorkerID, c.Reason, now)
		events = append(events, failed)
		applyInto(scratch, failed)
		ready := event.NewWorkerReadyEvent(scratch.PlannerID, c.WorkerID, now)
		events = append(events, ready)
		applyInto(scratch, ready)
		events = append(events, autoDispatch(scratch, now)...)

	case RejectAssignment:
		a, ok := scratch.Assignments[c.PlanID]
		if !ok || a.WorkerID != c.WorkerID {
			return nil, &NoLiveAssignmentError{WorkerID: c.WorkerID, PlanID: c.PlanID}
		}
		rejected := event.NewPlanAssignmentRejectedEvent(scratch.PlannerID, c.PlanID, c.WorkerID, c.Reason, now)
		events = append(events, rejected)
		applyInto(scratch, rejected)
		events = append(events, autoDispatch(scratch, now)...)

	case TimeoutAssignment:
		a, ok := scratch.Assignments[c.PlanID]
		if !ok || a.WorkerID != c.WorkerID {
			return nil, &NoLiveAssignmentError{WorkerID: c.WorkerID, PlanID: c.PlanID}
		}
		timedOut := event.NewPlanAssignmentTimedOutEvent(scratch.PlannerID, c.PlanID, c.WorkerID, now)
		events = append(events, timedOut)
		applyInto(scratch, timedOut)
		events = append(events, autoDispatch(scratch, now)...)

	case MarkWorkerOffline:
		if _, ok := scratch.Workers[c.WorkerID]; !ok {
			return nil, &UnknownWorkerError{WorkerID: c.WorkerID}
		}
		offline := event.NewWorkerOfflineEvent(scratch.PlannerID, c.WorkerID, now)
		events = append(events, offline)
		applyInto(scratch, offline)
		events = append(events, autoDispatch(scratch, now)...)

	default:
		return nil, &InvalidCommandError{Reason: "unrecognized command"}
	}

	return events, nil
}

// requireOwnedActivePlan enforces CompletePlan/FailPlan's guard: the plan
// must be Assigned or InProgress and currently assigned to workerID.
func requireOwnedActivePlan(s *State, planID, workerID string) error {
	p, ok := s.Plans[planID]
	if !ok || (p.Status != PlanAssigned && p.Status != PlanInProgress) {
		actual := PlanStatus("unknown")
		if ok {
			actual = p.Status
		}
		return &PlanNotInStateError{PlanID: planID, Required: "Assigned|InProgress", Actual: actual}
	}
	a, ok := s.Assignments[planID]
	if !ok || a.WorkerID != workerID {
		return &PlanNotInStateError{PlanID: planID, Required: "Assigned|InProgress", Actual: p.Status}
	}
	return nil
}

// outOfBounds reports the first of start/goal that falls outside bounds, if
// any. ok is true when both positions are valid.
func outOfBounds(bounds geom.Bounds, start, goal geom.Position) (which geom.Which, ok bool) {
	if !bounds.Contains(start) {
		return geom.WhichStart, false
	}
	if !bounds.Contains(goal) {
		return geom.WhichGoal, false
	}
	return "", true
}

// autoDispatch repeatedly matches the oldest Planning plan to the
// lowest-worker_id idle, capable worker, applying each PlanAssigned event to
// scratch as it's produced so the next iteration sees updated eligibility.
// Returns when either side is exhausted.
func autoDispatch(scratch *State, now time.Time) []event.Event {
	var events []event.Event
	for {
		plans := scratch.planningPlans()
		workers := scratch.capableIdleWorkers()
		if len(plans) == 0 || len(workers) == 0 {
			return events
		}
		plan, worker := plans[0], workers[0]
		assigned := event.NewPlanAssignedEvent(scratch.PlannerID, plan.PlanID, worker.WorkerID,
			int(DefaultAssignmentTimeout.Seconds()), now, now)
		events = append(events, assigned)
		applyInto(scratch, assigned)
	}
}

// ApplyEvent is the total function apply_event: it returns a new aggregate
// state with evt folded in. Unknown variants are a programming error, not a
// recoverable condition — the event taxonomy is closed by construction.
func ApplyEvent(state *State, evt event.Event) *State {
	next := state.clone()
	applyInto(next, evt)
	return next
}

// applyInto mutates s in place; used both by ApplyEvent's public clone-then-
// mutate contract and internally by handle_command's auto-dispatch chaining.
func applyInto(s *State, evt event.Event) {
	s.Version++

	switch e := evt.(type) {
	case *event.PlannerCreatedEvent:
		s.PlannerID = e.PlannerID()
		s.Algorithm = e.Algorithm
		s.Workspace = e.Workspace

	case *event.PathPlanRequestedEvent:
		s.Plans[e.PlanID] = &Plan{
			PlanID:           e.PlanID,
			AgentID:          e.AgentID,
			Start:            e.Start,
			Goal:             e.Goal,
			StartOrientation: e.StartOrientation,
			GoalOrientation:  e.GoalOrientation,
			Status:           PlanPlanning,
			CreatedAt:        e.RequestedAt,
		}

	case *event.WorkerRegisteredEvent:
		s.Workers[e.WorkerID] = &Worker{
			WorkerID:     e.WorkerID,
			Status:       WorkerOffline,
			Capabilities: e.Capabilities,
		}

	case *event.WorkerReadyEvent:
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.Status = WorkerIdle
			w.LastHeartbeat = e.OccurredAt()
		}

	case *event.WorkerBusyEvent:
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.Status = WorkerBusy
			w.CurrentPlanID = e.PlanID
		}

	case *event.WorkerOfflineEvent:
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.Status = WorkerOffline
			planID := w.CurrentPlanID
			w.CurrentPlanID = ""
			if planID != "" {
				revertPlanToPlanning(s, planID)
				delete(s.Assignments, planID)
			}
		}

	case *event.PlanAssignedEvent:
		if p, ok := s.Plans[e.PlanID]; ok {
			p.Status = PlanAssigned
		}
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.CurrentPlanID = e.PlanID
		}
		s.Assignments[e.PlanID] = &Assignment{
			PlanID:     e.PlanID,
			WorkerID:   e.WorkerID,
			AssignedAt: e.AssignedAt,
			TimeoutAt:  e.AssignedAt.Add(time.Duration(e.TimeoutSeconds) * time.Second),
		}

	case *event.PlanAssignmentAcceptedEvent:
		if p, ok := s.Plans[e.PlanID]; ok {
			p.Status = PlanInProgress
		}

	case *event.PlanAssignmentRejectedEvent:
		revertPlanToPlanning(s, e.PlanID)
		delete(s.Assignments, e.PlanID)
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.Status = WorkerIdle
			w.CurrentPlanID = ""
		}

	case *event.PlanAssignmentTimedOutEvent:
		revertPlanToPlanning(s, e.PlanID)
		delete(s.Assignments, e.PlanID)
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.Status = WorkerOffline
			w.CurrentPlanID = ""
		}

	case *event.PlanCompletedEvent:
		if p, ok := s.Plans[e.PlanID]; ok {
			p.Status = PlanComplete
			p.Waypoints = e.Waypoints
		}
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.CurrentPlanID = ""
		}
		delete(s.Assignments, e.PlanID)

	case *event.PlanFailedEvent:
		if p, ok := s.Plans[e.PlanID]; ok {
			p.Status = PlanFailed
			p.FailReason = e.Reason
		}
		if w, ok := s.Workers[e.WorkerID]; ok {
			w.CurrentPlanID = ""
		}
		delete(s.Assignments, e.PlanID)

	default:
		panic("planner: apply_event: unknown event variant")
	}
}

// revertPlanToPlanning moves planID back to Planning if it's still active
// (Assigned or InProgress); terminal plans are never reverted.
func revertPlanToPlanning(s *State, planID string) {
	p, ok := s.Plans[planID]
	if !ok {
		return
	}
	if p.Status == PlanAssigned || p.Status == PlanInProgress {
		p.Status = PlanPlanning
	}
}

// clone returns a deep-enough copy of s for handle_command's scratch
// workspace: entity maps are copied key-by-key with fresh struct values so
// mutating the clone never touches the caller's state.
func (s *State) clone() *State {
	next := &State{
		PlannerID:   s.PlannerID,
		Algorithm:   s.Algorithm,
		Workspace:   s.Workspace,
		Plans:       make(map[string]*Plan, len(s.Plans)),
		Workers:     make(map[string]*Worker, len(s.Workers)),
		Assignments: make(map[string]*Assignment, len(s.Assignments)),
		Version:     s.Version,
	}
	for id, p := range s.Plans {
		cp := *p
		cp.Waypoints = append([]geom.Position(nil), p.Waypoints...)
		next.Plans[id] = &cp
	}
	for id, w := range s.Workers {
		cw := *w
		cw.Capabilities = append([]geom.Algorithm(nil), w.Capabilities...)
		next.Workers[id] = &cw
	}
	for id, a := range s.Assignments {
		ca := *a
		next.Assignments[id] = &ca
	}
	return next
}

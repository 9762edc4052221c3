// Package planner implements the pure, event-sourced planner aggregate: the
// plan/worker/assignment state machine and the auto-dispatch scheduler that
// matches pending plans to idle, capable workers. Nothing in this package
// touches the clock, the log, or the bus — callers inject "now" and any
// minted ids through the command, which is what makes the aggregate's laws
// (determinism, replay-equivalence) testable without a runtime.
package planner

import (
	"sort"
	"time"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

// PlanStatus is the lifecycle state of a single PathPlan.
type PlanStatus string

const (
	PlanPlanning   PlanStatus = "Planning"
	PlanAssigned   PlanStatus = "Assigned"
	PlanInProgress PlanStatus = "InProgress"
	PlanComplete   PlanStatus = "Complete"
	PlanFailed     PlanStatus = "Failed"
)

// WorkerStatus is the lifecycle state of a single Worker.
type WorkerStatus string

const (
	WorkerIdle    WorkerStatus = "Idle"
	WorkerBusy    WorkerStatus = "Busy"
	WorkerOffline WorkerStatus = "Offline"
)

// DefaultAssignmentTimeout is the timeout_seconds stamped on every
// PlanAssigned event. Auto-dispatch takes no override: the
// planner.assignment_timeout_seconds config value does not reach the
// aggregate and leaves this timeout unchanged.
const DefaultAssignmentTimeout = 300 * time.Second

type (
	// Plan is a PathPlan owned by exactly one Planner aggregate. Waypoints
	// stay empty until the plan reaches Complete; FailReason is set only in
	// Failed.
	Plan struct {
		PlanID           string
		AgentID          string
		Start            geom.Position
		Goal             geom.Position
		StartOrientation geom.Orientation
		GoalOrientation  geom.Orientation
		Waypoints        []geom.Position
		Status           PlanStatus
		FailReason       string
		CreatedAt        time.Time
	}

	// Worker is owned by exactly one Planner aggregate. CurrentPlanID is set
	// as soon as PlanAssigned is applied (before the worker has accepted or
	// gone Busy) and cleared whenever the assignment stops being live:
	// rejected, timed out, completed, failed, or the worker goes Offline.
	Worker struct {
		WorkerID      string
		Status        WorkerStatus
		Capabilities  []geom.Algorithm
		LastHeartbeat time.Time
		CurrentPlanID string
	}

	// Assignment is the bijection between a live plan and the worker
	// executing it. Removed (not just marked) when the pair stops being
	// live; the events that created and dissolved it remain in the log.
	Assignment struct {
		PlanID     string
		WorkerID   string
		AssignedAt time.Time
		TimeoutAt  time.Time
	}

	// State is the planner aggregate: plans, workers, and assignments keyed
	// by their natural ids, plus the event-count version used as the
	// optimistic-concurrency token.
	State struct {
		PlannerID string
		Algorithm geom.Algorithm
		Workspace geom.Bounds

		Plans       map[string]*Plan
		Workers     map[string]*Worker
		Assignments map[string]*Assignment // keyed by plan_id

		Version uint64
	}
)

// NewState returns a zero-value aggregate ready to receive a CreatePlanner
// command. PlannerID, Algorithm, and Workspace are populated by apply_event
// when PlannerCreated is applied, not here.
func NewState(plannerID string) *State {
	return &State{
		PlannerID:   plannerID,
		Plans:       make(map[string]*Plan),
		Workers:     make(map[string]*Worker),
		Assignments: make(map[string]*Assignment),
	}
}

func (s *State) assignmentByWorker(workerID string) *Assignment {
	for _, a := range s.Assignments {
		if a.WorkerID == workerID {
			return a
		}
	}
	return nil
}

// capableIdleWorkers returns workers eligible for auto-dispatch: Idle, no
// live assignment, capable of the planner's configured algorithm — ordered
// by worker_id ascending.
func (s *State) capableIdleWorkers() []*Worker {
	var out []*Worker
	for _, w := range s.Workers {
		if w.Status != WorkerIdle {
			continue
		}
		if s.assignmentByWorker(w.WorkerID) != nil {
			continue
		}
		if !hasCapability(w.Capabilities, s.Algorithm) {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}

// planningPlans returns plans in Planning status ordered by created_at
// ascending, ties broken by plan_id.
func (s *State) planningPlans() []*Plan {
	var out []*Plan
	for _, p := range s.Plans {
		if p.Status == PlanPlanning {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].PlanID < out[j].PlanID
	})
	return out
}

func hasCapability(caps []geom.Algorithm, a geom.Algorithm) bool {
	for _, c := range caps {
		if c == a {
			return true
		}
	}
	return false
}

package planner

import (
	"time"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

// Command is the closed set of inputs to handle_command. Commands are
// internal to the runtime: they are never serialized or persisted, only
// the events they produce are.
type Command interface {
	command()
}

type (
	// CreatePlanner yields PlannerCreated. Fails if the aggregate already
	// has a version greater than zero.
	CreatePlanner struct {
		PlannerID string
		Algorithm geom.Algorithm
		Workspace geom.Bounds
	}

	// RegisterWorker yields WorkerRegistered. Fails with DuplicateWorker if
	// WorkerID is already known.
	RegisterWorker struct {
		WorkerID     string
		Capabilities []geom.Algorithm
	}

	// MarkWorkerReady yields WorkerReady then attempts auto-dispatch. Fails
	// with UnknownWorker if WorkerID was never registered.
	MarkWorkerReady struct {
		WorkerID string
	}

	// RequestPathPlan validates Start and Goal against workspace bounds,
	// yields PathPlanRequested carrying the command's PlanID, then attempts
	// auto-dispatch. Fails with PositionOutOfBounds otherwise.
	RequestPathPlan struct {
		PlanID           string // minted by the submitting client, not the aggregate
		AgentID          string
		Start            geom.Position
		Goal             geom.Position
		StartOrientation geom.Orientation
		GoalOrientation  geom.Orientation
		RequestedAt      time.Time
	}

	// AcceptAssignment yields PlanAssignmentAccepted. Fails with
	// NoLiveAssignment if the (WorkerID, PlanID) pair has no current
	// assignment.
	AcceptAssignment struct {
		WorkerID string
		PlanID   string
	}

	// CompletePlan yields PlanCompleted then WorkerReady for WorkerID, then
	// attempts auto-dispatch. Fails with PlanNotInState unless the plan is
	// Assigned or InProgress to WorkerID.
	CompletePlan struct {
		WorkerID  string
		PlanID    string
		Waypoints []geom.Position
	}

	// FailPlan yields PlanFailed then WorkerReady, then attempts
	// auto-dispatch. Same guard as CompletePlan.
	FailPlan struct {
		WorkerID string
		PlanID   string
		Reason   string
	}

	// RejectAssignment yields PlanAssignmentRejected; the plan returns to
	// Planning and auto-dispatch runs.
	RejectAssignment struct {
		WorkerID string
		PlanID   string
		Reason   string
	}

	// TimeoutAssignment yields PlanAssignmentTimedOut; the plan returns to
	// Planning and auto-dispatch runs. Issued by the runtime's periodic
	// scan, never by an external signal.
	TimeoutAssignment struct {
		WorkerID string
		PlanID   string
	}

	// MarkWorkerOffline yields WorkerOffline; any plan the worker owned
	// returns to Planning and auto-dispatch runs.
	MarkWorkerOffline struct {
		WorkerID string
	}
)

func (CreatePlanner) command()      {}
func (RegisterWorker) command()     {}
func (MarkWorkerReady) command()    {}
func (RequestPathPlan) command()    {}
func (AcceptAssignment) command()   {}
func (CompletePlan) command()       {}
func (FailPlan) command()           {}
func (RejectAssignment) command()   {}
func (TimeoutAssignment) command()  {}
func (MarkWorkerOffline) command()  {}

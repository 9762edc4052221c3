package planner

import (
	"fmt"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

// DomainError is returned by handle_command when a command is rejected by
// the aggregate's own rules — never for infrastructure failures, which
// belong to the adapters, not the pure core.
type DomainError interface {
	error
	domainError()
}

type (
	// InvalidCommandError reports a command that is malformed or
	// structurally inapplicable to the current aggregate (a CreatePlanner
	// for a planner that already exists, or a command type HandleCommand
	// does not recognize).
	InvalidCommandError struct {
		Reason string
	}

	// PositionOutOfBoundsError reports that RequestPathPlan's start or goal
	// fell outside workspace.bounds.
	PositionOutOfBoundsError struct {
		Which geom.Which
	}

	// DuplicateWorkerError reports RegisterWorker for a worker_id already
	// known to the aggregate.
	DuplicateWorkerError struct {
		WorkerID string
	}

	// UnknownWorkerError reports a command referencing a worker_id the
	// aggregate has never registered.
	UnknownWorkerError struct {
		WorkerID string
	}

	// NoLiveAssignmentError reports AcceptAssignment/RejectAssignment for a
	// (worker_id, plan_id) pair with no current assignment.
	NoLiveAssignmentError struct {
		WorkerID string
		PlanID   string
	}

	// PlanNotInStateError reports CompletePlan/FailPlan targeting a plan
	// that isn't in a status the command accepts.
	PlanNotInStateError struct {
		PlanID   string
		Required string
		Actual   PlanStatus
	}
)

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command: %s", e.Reason)
}

func (e *PositionOutOfBoundsError) Error() string {
	return fmt.Sprintf("position out of bounds: %s", e.Which)
}

func (e *DuplicateWorkerError) Error() string {
	return fmt.Sprintf("worker %s already registered", e.WorkerID)
}

func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("worker %s not registered", e.WorkerID)
}

func (e *NoLiveAssignmentError) Error() string {
	return fmt.Sprintf("no live assignment for worker %s, plan %s", e.WorkerID, e.PlanID)
}

func (e *PlanNotInStateError) Error() string {
	return fmt.Sprintf("plan %s not in required state %s (actual %s)", e.PlanID, e.Required, e.Actual)
}

func (*InvalidCommandError) domainError()       {}
func (*PositionOutOfBoundsError) domainError()  {}
func (*DuplicateWorkerError) domainError()      {}
func (*UnknownWorkerError) domainError()        {}
func (*NoLiveAssignmentError) domainError()     {}
func (*PlanNotInStateError) domainError()       {}

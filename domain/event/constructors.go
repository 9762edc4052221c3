package event

import (
	"time"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

func NewPlannerCreatedEvent(plannerID string, algorithm geom.Algorithm, workspace geom.Bounds, occurredAt time.Time) *PlannerCreatedEvent {
	return &PlannerCreatedEvent{baseEvent: newBaseEvent(plannerID, occurredAt), Algorithm: algorithm, Workspace: workspace}
}

func NewPathPlanRequestedEvent(plannerID, planID, agentID string, start, goal geom.Position, startOrient, goalOrient geom.Orientation, requestedAt, occurredAt time.Time) *PathPlanRequestedEvent {
	return &PathPlanRequestedEvent{
		baseEvent:        newBaseEvent(plannerID, occurredAt),
		PlanID:           planID,
		AgentID:          agentID,
		Start:            start,
		Goal:             goal,
		StartOrientation: startOrient,
		GoalOrientation:  goalOrient,
		RequestedAt:      requestedAt,
	}
}

func NewWorkerRegisteredEvent(plannerID, workerID string, capabilities []geom.Algorithm, occurredAt time.Time) *WorkerRegisteredEvent {
	return &WorkerRegisteredEvent{baseEvent: newBaseEvent(plannerID, occurredAt), WorkerID: workerID, Capabilities: capabilities}
}

func NewWorkerReadyEvent(plannerID, workerID string, occurredAt time.Time) *WorkerReadyEvent {
	return &WorkerReadyEvent{baseEvent: newBaseEvent(plannerID, occurredAt), WorkerID: workerID}
}

func NewWorkerBusyEvent(plannerID, workerID, planID string, occurredAt time.Time) *WorkerBusyEvent {
	return &WorkerBusyEvent{baseEvent: newBaseEvent(plannerID, occurredAt), WorkerID: workerID, PlanID: planID}
}

func NewWorkerOfflineEvent(plannerID, workerID string, occurredAt time.Time) *WorkerOfflineEvent {
	return &WorkerOfflineEvent{baseEvent: newBaseEvent(plannerID, occurredAt), WorkerID: workerID}
}

func NewPlanAssignedEvent(plannerID, planID, workerID string, timeoutSeconds int, assignedAt, occurredAt time.Time) *PlanAssignedEvent {
	return &PlanAssignedEvent{
		baseEvent:      newBaseEvent(plannerID, occurredAt),
		PlanID:         planID,
		WorkerID:       workerID,
		TimeoutSeconds: timeoutSeconds,
		AssignedAt:     assignedAt,
	}
}

func NewPlanAssignmentAcceptedEvent(plannerID, planID, workerID string, occurredAt time.Time) *PlanAssignmentAcceptedEvent {
	return &PlanAssignmentAcceptedEvent{baseEvent: newBaseEvent(plannerID, occurredAt), PlanID: planID, WorkerID: workerID}
}

func NewPlanAssignmentRejectedEvent(plannerID, planID, workerID, reason string, occurredAt time.Time) *PlanAssignmentRejectedEvent {
	return &PlanAssignmentRejectedEvent{baseEvent: newBaseEvent(plannerID, occurredAt), PlanID: planID, WorkerID: workerID, Reason: reason}
}

func NewPlanAssignmentTimedOutEvent(plannerID, planID, workerID string, occurredAt time.Time) *PlanAssignmentTimedOutEvent {
	return &PlanAssignmentTimedOutEvent{baseEvent: newBaseEvent(plannerID, occurredAt), PlanID: planID, WorkerID: workerID}
}

func NewPlanCompletedEvent(plannerID, planID, workerID string, waypoints []geom.Position, occurredAt time.Time) *PlanCompletedEvent {
	return &PlanCompletedEvent{baseEvent: newBaseEvent(plannerID, occurredAt), PlanID: planID, WorkerID: workerID, Waypoints: waypoints}
}

func NewPlanFailedEvent(plannerID, planID, workerID, reason string, occurredAt time.Time) *PlanFailedEvent {
	return &PlanFailedEvent{baseEvent: newBaseEvent(plannerID, occurredAt), PlanID: planID, WorkerID: workerID, Reason: reason}
}

// Package event defines the planner's domain event taxonomy: the tagged
// variants that make up the append-only log and the fan-out bus, plus the
// envelope that carries routing metadata around a serialized event.
package event

import (
	"time"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

// Type identifies a domain event variant. Subscribers switch on Type rather
// than using type assertions so routing logic stays exhaustive and cheap.
type Type string

const (
	PlannerCreated         Type = "PlannerCreated"
	PathPlanRequested      Type = "PathPlanRequested"
	WorkerRegistered       Type = "WorkerRegistered"
	WorkerReady            Type = "WorkerReady"
	WorkerBusy             Type = "WorkerBusy"
	WorkerOffline          Type = "WorkerOffline"
	PlanAssigned           Type = "PlanAssigned"
	PlanAssignmentAccepted Type = "PlanAssignmentAccepted"
	PlanAssignmentRejected Type = "PlanAssignmentRejected"
	PlanAssignmentTimedOut Type = "PlanAssignmentTimedOut"
	PlanCompleted          Type = "PlanCompleted"
	PlanFailed             Type = "PlanFailed"
)

// eventVersion is stamped on every envelope; only version 1 exists today.
const eventVersion = 1

type (
	// Event is the interface every domain event variant implements. The
	// planner runtime publishes events through the bus and persists them to
	// the log; subscribers switch on Type to access variant-specific fields.
	Event interface {
		// Type returns the event's tag, used for routing and the envelope's
		// event_type field.
		Type() Type
		// PlannerID returns the planner aggregate this event belongs to —
		// the partitioning / aggregate_id key for the log and bus.
		PlannerID() string
		// OccurredAt returns when the event was produced.
		OccurredAt() time.Time
	}

	baseEvent struct {
		plannerID  string
		occurredAt time.Time
	}

	// PlannerCreatedEvent fires once, when a planner aggregate is first
	// created. Fails (no event) if the aggregate already has a version > 0.
	PlannerCreatedEvent struct {
		baseEvent
		Algorithm geom.Algorithm `json:"algorithm"`
		Workspace geom.Bounds    `json:"workspace"`
	}

	// PathPlanRequestedEvent fires when a client submits a path-plan request
	// that passes the workspace-bounds check. It carries the plan_id the
	// submitting client minted.
	PathPlanRequestedEvent struct {
		baseEvent
		PlanID           string           `json:"plan_id"`
		AgentID          string           `json:"agent_id"`
		Start            geom.Position    `json:"start"`
		Goal             geom.Position    `json:"goal"`
		StartOrientation geom.Orientation `json:"start_orientation"`
		GoalOrientation  geom.Orientation `json:"goal_orientation"`
		RequestedAt      time.Time        `json:"requested_at"`
	}

	// WorkerRegisteredEvent fires when a worker self-registers with a set of
	// planning-algorithm capabilities.
	WorkerRegisteredEvent struct {
		baseEvent
		WorkerID     string          `json:"worker_id"`
		Capabilities []geom.Algorithm `json:"capabilities"`
	}

	// WorkerReadyEvent fires on registration-handshake completion, on
	// heartbeat republish, and after a worker finishes a plan.
	WorkerReadyEvent struct {
		baseEvent
		WorkerID string `json:"worker_id"`
	}

	// WorkerBusyEvent marks a worker entering Busy status. It fires alongside
	// PlanAssignmentAccepted — the cascade that moves a worker from Idle to
	// Busy — mirroring the WorkerReady cascade that follows
	// PlanCompleted/PlanFailed.
	WorkerBusyEvent struct {
		baseEvent
		WorkerID string `json:"worker_id"`
		PlanID   string `json:"plan_id"`
	}

	// WorkerOfflineEvent fires when a worker misses its heartbeat deadline.
	// Heartbeat timeout is the canonical producer (see DESIGN.md, Open
	// Question "worker-offline detection").
	WorkerOfflineEvent struct {
		baseEvent
		WorkerID string `json:"worker_id"`
	}

	// PlanAssignedEvent fires when auto-dispatch matches a Planning plan to
	// an Idle, capable worker.
	PlanAssignedEvent struct {
		baseEvent
		PlanID         string    `json:"plan_id"`
		WorkerID       string    `json:"worker_id"`
		TimeoutSeconds int       `json:"timeout_seconds"`
		AssignedAt     time.Time `json:"assigned_at"`
	}

	// PlanAssignmentAcceptedEvent fires when a worker acknowledges its
	// assignment and begins executing.
	PlanAssignmentAcceptedEvent struct {
		baseEvent
		PlanID   string `json:"plan_id"`
		WorkerID string `json:"worker_id"`
	}

	// PlanAssignmentRejectedEvent fires when a worker declines an
	// assignment; the plan returns to Planning.
	PlanAssignmentRejectedEvent struct {
		baseEvent
		PlanID   string `json:"plan_id"`
		WorkerID string `json:"worker_id"`
		Reason   string `json:"reason"`
	}

	// PlanAssignmentTimedOutEvent fires when the planner's periodic tick
	// finds an assignment past its deadline without acceptance/completion.
	PlanAssignmentTimedOutEvent struct {
		baseEvent
		PlanID   string `json:"plan_id"`
		WorkerID string `json:"worker_id"`
	}

	// PlanCompletedEvent fires when a worker successfully finishes a plan.
	PlanCompletedEvent struct {
		baseEvent
		PlanID    string          `json:"plan_id"`
		WorkerID  string          `json:"worker_id"`
		Waypoints []geom.Position `json:"waypoints"`
	}

	// PlanFailedEvent fires when a worker's planning call errors out.
	PlanFailedEvent struct {
		baseEvent
		PlanID   string `json:"plan_id"`
		WorkerID string `json:"worker_id"`
		Reason   string `json:"reason"`
	}
)

func newBaseEvent(plannerID string, occurredAt time.Time) baseEvent {
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return baseEvent{plannerID: plannerID, occurredAt: occurredAt}
}

func (e baseEvent) PlannerID() string     { return e.plannerID }
func (e baseEvent) OccurredAt() time.Time { return e.occurredAt }

func (e *PlannerCreatedEvent) Type() Type { return PlannerCreated }
func (e *PathPlanRequestedEvent) Type() Type { return PathPlanRequested }
func (e *WorkerRegisteredEvent) Type() Type { return WorkerRegistered }
func (e *WorkerReadyEvent) Type() Type { return WorkerReady }
func (e *WorkerBusyEvent) Type() Type { return WorkerBusy }
func (e *WorkerOfflineEvent) Type() Type { return WorkerOffline }
func (e *PlanAssignedEvent) Type() Type { return PlanAssigned }
func (e *PlanAssignmentAcceptedEvent) Type() Type { return PlanAssignmentAccepted }
func (e *PlanAssignmentRejectedEvent) Type() Type { return PlanAssignmentRejected }
func (e *PlanAssignmentTimedOutEvent) Type() Type { return PlanAssignmentTimedOut }
func (e *PlanCompletedEvent) Type() Type { return PlanCompleted }
func (e *PlanFailedEvent) Type() Type { return PlanFailed }

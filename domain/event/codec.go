package event

import (
	"encoding/json"
	"fmt"
)

// Encode wraps evt in an Envelope ready for the log/bus. meta.Source and
// causation/correlation fields are set by the caller before encoding; id is
// the envelope's own event_id (pass NewEventID() for a fresh one).
func Encode(id string, evt Event, meta Metadata) (*Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", evt.Type(), err)
	}
	return &Envelope{
		EventID:       id,
		AggregateID:   evt.PlannerID(),
		AggregateType: AggregateTypePlanner,
		EventType:     evt.Type(),
		EventVersion:  eventVersion,
		Payload:       payload,
		Metadata:      meta,
		OccurredAt:    evt.OccurredAt(),
	}, nil
}

// Decode reconstructs the concrete Event variant named by env.EventType from
// its serialized payload. Unknown event types are a programming/schema error,
// not a domain error — apply_event-style code that forgets a variant should
// fail loudly rather than silently drop data.
func Decode(env *Envelope) (Event, error) {
	plannerID := env.AggregateID
	occurredAt := env.OccurredAt

	switch env.EventType {
	case PlannerCreated:
		var p PlannerCreatedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPlannerCreatedEvent(plannerID, p.Algorithm, p.Workspace, occurredAt), nil

	case PathPlanRequested:
		var p PathPlanRequestedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPathPlanRequestedEvent(plannerID, p.PlanID, p.AgentID, p.Start, p.Goal, p.StartOrientation, p.GoalOrientation, p.RequestedAt, occurredAt), nil

	case WorkerRegistered:
		var p WorkerRegisteredEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewWorkerRegisteredEvent(plannerID, p.WorkerID, p.Capabilities, occurredAt), nil

	case WorkerReady:
		var p WorkerReadyEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewWorkerReadyEvent(plannerID, p.WorkerID, occurredAt), nil

	case WorkerBusy:
		var p WorkerBusyEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewWorkerBusyEvent(plannerID, p.WorkerID, p.PlanID, occurredAt), nil

	case WorkerOffline:
		var p WorkerOfflineEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewWorkerOfflineEvent(plannerID, p.WorkerID, occurredAt), nil

	case PlanAssigned:
		var p PlanAssignedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPlanAssignedEvent(plannerID, p.PlanID, p.WorkerID, p.TimeoutSeconds, p.AssignedAt, occurredAt), nil

	case PlanAssignmentAccepted:
		var p PlanAssignmentAcceptedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPlanAssignmentAcceptedEvent(plannerID, p.PlanID, p.WorkerID, occurredAt), nil

	case PlanAssignmentRejected:
		var p PlanAssignmentRejectedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPlanAssignmentRejectedEvent(plannerID, p.PlanID, p.WorkerID, p.Reason, occurredAt), nil

	case PlanAssignmentTimedOut:
		var p PlanAssignmentTimedOutEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPlanAssignmentTimedOutEvent(plannerID, p.PlanID, p.WorkerID, occurredAt), nil

	case PlanCompleted:
		var p PlanCompletedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPlanCompletedEvent(plannerID, p.PlanID, p.WorkerID, p.Waypoints, occurredAt), nil

	case PlanFailed:
		var p PlanFailedEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return NewPlanFailedEvent(plannerID, p.PlanID, p.WorkerID, p.Reason, occurredAt), nil

	default:
		return nil, fmt.Errorf("decode: unknown event type %q", env.EventType)
	}
}

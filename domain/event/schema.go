package event

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// InfrastructureErrorKind classifies an InfrastructureError. Only
// Serialization exists today; the type exists so a future Kind (a log
// adapter's connection failure, say) doesn't force a new error shape.
type InfrastructureErrorKind string

// Serialization reports that an envelope's payload failed either decoding
// or schema validation — a malformed message from a peer, not a bug in the
// aggregate applying it.
const Serialization InfrastructureErrorKind = "serialization"

// InfrastructureError reports a failure at the system boundary (wire
// format, storage, transport) as distinct from planner.DomainError, which
// reports the aggregate's own rules rejecting a well-formed command.
type InfrastructureError struct {
	Kind InfrastructureErrorKind
	Err  error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure error (%s): %v", e.Kind, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// schemas holds one JSON Schema per event_type, keyed by Type, describing
// only the fields a producer outside this process (a client, a worker) is
// trusted to supply. Fields the aggregate itself computes (e.g.
// PlanAssigned.timeout_seconds) are still listed so a replayed log or a
// test fixture is held to the same shape.
var schemas = map[Type]string{
	PlannerCreated: `{
		"type": "object",
		"required": ["algorithm", "workspace"],
		"properties": {
			"algorithm": {"type": "string"},
			"workspace": {"type": "object", "required": ["min_x", "max_x", "min_y", "max_y"]}
		}
	}`,
	PathPlanRequested: `{
		"type": "object",
		"required": ["plan_id", "agent_id", "start", "goal", "requested_at"],
		"properties": {
			"plan_id": {"type": "string", "minLength": 1},
			"agent_id": {"type": "string", "minLength": 1},
			"start": {"type": "object", "required": ["x", "y"]},
			"goal": {"type": "object", "required": ["x", "y"]}
		}
	}`,
	WorkerRegistered: `{
		"type": "object",
		"required": ["worker_id", "capabilities"],
		"properties": {
			"worker_id": {"type": "string", "minLength": 1},
			"capabilities": {"type": "array"}
		}
	}`,
	WorkerReady: `{
		"type": "object",
		"required": ["worker_id"],
		"properties": {"worker_id": {"type": "string", "minLength": 1}}
	}`,
	WorkerBusy: `{
		"type": "object",
		"required": ["worker_id", "plan_id"],
		"properties": {
			"worker_id": {"type": "string", "minLength": 1},
			"plan_id": {"type": "string", "minLength": 1}
		}
	}`,
	WorkerOffline: `{
		"type": "object",
		"required": ["worker_id"],
		"properties": {"worker_id": {"type": "string", "minLength": 1}}
	}`,
	PlanAssigned: `{
		"type": "object",
		"required": ["plan_id", "worker_id", "timeout_seconds", "assigned_at"],
		"properties": {
			"plan_id": {"type": "string", "minLength": 1},
			"worker_id": {"type": "string", "minLength": 1},
			"timeout_seconds": {"type": "integer"}
		}
	}`,
	PlanAssignmentAccepted: `{
		"type": "object",
		"required": ["plan_id", "worker_id"],
		"properties": {
			"plan_id": {"type": "string", "minLength": 1},
			"worker_id": {"type": "string", "minLength": 1}
		}
	}`,
	PlanAssignmentRejected: `{
		"type": "object",
		"required": ["plan_id", "worker_id", "reason"],
		"properties": {
			"plan_id": {"type": "string", "minLength": 1},
			"worker_id": {"type": "string", "minLength": 1},
			"reason": {"type": "string", "minLength": 1}
		}
	}`,
	PlanAssignmentTimedOut: `{
		"type": "object",
		"required": ["plan_id", "worker_id"],
		"properties": {
			"plan_id": {"type": "string", "minLength": 1},
			"worker_id": {"type": "string", "minLength": 1}
		}
	}`,
	PlanCompleted: `{
		"type": "object",
		"required": ["plan_id", "worker_id", "waypoints"],
		"properties": {
			"plan_id": {"type": "string", "minLength": 1},
			"worker_id": {"type": "string", "minLength": 1},
			"waypoints": {"type": "array"}
		}
	}`,
	PlanFailed: `{
		"type": "object",
		"required": ["plan_id", "worker_id", "reason"],
		"properties": {
			"plan_id": {"type": "string", "minLength": 1},
			"worker_id": {"type": "string", "minLength": 1},
			"reason": {"type": "string", "minLength": 1}
		}
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[Type]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	compiled = make(map[Type]*jsonschema.Schema, len(schemas))
	for t, text := range schemas {
		url := "mem://pathplanner/" + string(t) + ".json"
		if err := compiler.AddResource(url, strings.NewReader(text)); err != nil {
			compileErr = fmt.Errorf("add schema resource for %s: %w", t, err)
			return
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("compile schema for %s: %w", t, err)
			return
		}
		compiled[t] = schema
	}
}

// ValidatePayload checks env.Payload against the JSON Schema registered for
// env.EventType before Decode is attempted. A malformed envelope — missing
// required fields, wrong shape — is reported as *InfrastructureError with
// Kind Serialization rather than surfacing as a decode panic or an opaque
// unmarshal error deep in a type switch.
func ValidatePayload(env *Envelope) error {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return &InfrastructureError{Kind: Serialization, Err: compileErr}
	}
	schema, ok := compiled[env.EventType]
	if !ok {
		return &InfrastructureError{Kind: Serialization, Err: fmt.Errorf("no schema registered for event type %q", env.EventType)}
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(env.Payload))
	if err != nil {
		return &InfrastructureError{Kind: Serialization, Err: fmt.Errorf("payload is not valid JSON: %w", err)}
	}
	if err := schema.Validate(instance); err != nil {
		return &InfrastructureError{Kind: Serialization, Err: err}
	}
	return nil
}

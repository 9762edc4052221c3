// Package planner hosts the planner process's engine-driven workflow: one
// execution per planner_id that bootstraps the aggregate from the log,
// relays bus-delivered commands and periodic timeout ticks into durable
// execution, and persists/publishes the events handle_command produces.
// All log and bus I/O happens inside activities — the workflow function
// itself touches neither directly, keeping it replay-deterministic.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/eventbus"
	"github.com/pathplanhq/pathplanner/eventlog"
)

// Activity name constants registered with the engine.
const (
	ActivityLoadEvents    = "LoadEventsActivity"
	ActivityAppendEvents  = "AppendEventsActivity"
	ActivityPublishEvents = "PublishEventsActivity"
)

// Activities bundles the log/bus adapters behind the three activities the
// planner workflow calls. One instance is registered per process.
type Activities struct {
	Log eventlog.Log
	Bus eventbus.Bus
}

type (
	// LoadEventsInput requests a forward slice of an aggregate's log.
	LoadEventsInput struct {
		AggregateID string
		FromVersion uint64
	}

	// LoadEventsOutput is the resulting envelope slice, in append order.
	LoadEventsOutput struct {
		Envelopes []*event.Envelope
	}
)

// LoadEvents implements ActivityLoadEvents.
func (a *Activities) LoadEvents(ctx context.Context, input any) (any, error) {
	in, ok := input.(LoadEventsInput)
	if !ok {
		return nil, fmt.Errorf("LoadEvents: unexpected input type %T", input)
	}
	envs, err := a.Log.Load(ctx, in.AggregateID, in.FromVersion)
	if err != nil {
		return nil, err
	}
	return LoadEventsOutput{Envelopes: envs}, nil
}

type (
	// AppendEventsInput asks the log to persist a batch produced by one
	// handle_command call. Pending envelopes carry an empty EventID;
	// AppendEvents mints one per envelope and threads causation: the first
	// envelope's causation_id is RootCausationID (the inbound envelope that
	// triggered this command, or "" for a timeout-scan-derived command);
	// each subsequent envelope in the batch chains to the previous one's
	// freshly minted id, per the cascade-event causation rule.
	AppendEventsInput struct {
		AggregateID     string
		ExpectedVersion uint64
		RootCausationID string
		Source          string
		Pending         []*event.Envelope
	}

	// AppendEventsOutput reports success with the finalized envelopes, or a
	// version conflict for the workflow's refresh-and-retry-once logic.
	AppendEventsOutput struct {
		Conflict      bool
		ActualVersion uint64
		Envelopes     []*event.Envelope
	}
)

// AppendEvents implements ActivityAppendEvents.
func (a *Activities) AppendEvents(ctx context.Context, input any) (any, error) {
	in, ok := input.(AppendEventsInput)
	if !ok {
		return nil, fmt.Errorf("AppendEvents: unexpected input type %T", input)
	}

	finalized := make([]*event.Envelope, len(in.Pending))
	causation := in.RootCausationID
	for i, env := range in.Pending {
		e := *env
		e.EventID = event.NewEventID()
		e.Metadata.CausationID = causation
		e.Metadata.Source = in.Source
		finalized[i] = &e
		causation = e.EventID
	}

	err := a.Log.Append(ctx, in.AggregateID, in.ExpectedVersion, finalized)
	if err != nil {
		var conflict *eventlog.VersionConflictError
		if errors.As(err, &conflict) {
			return AppendEventsOutput{Conflict: true, ActualVersion: conflict.Actual}, nil
		}
		return nil, err
	}
	return AppendEventsOutput{Envelopes: finalized}, nil
}

// PublishEventsInput is the already-persisted batch to fan out on the bus.
type PublishEventsInput struct {
	Envelopes []*event.Envelope
}

// PublishEvents implements ActivityPublishEvents. Publish failures are
// returned as activity errors (subject to the activity's retry policy) but
// never roll back the preceding append — the log is already durable, and
// subscribers catch up via replay from it.
func (a *Activities) PublishEvents(ctx context.Context, input any) (any, error) {
	in, ok := input.(PublishEventsInput)
	if !ok {
		return nil, fmt.Errorf("PublishEvents: unexpected input type %T", input)
	}
	for _, env := range in.Envelopes {
		if err := a.Bus.Publish(ctx, env); err != nil {
			return nil, fmt.Errorf("publish %s: %w", env.EventID, err)
		}
	}
	return struct{}{}, nil
}

// Package eventbus defines the fan-out publication port. Publish is
// best-effort — the bus carries no durability guarantee, that's the log's
// job (eventlog). Subscribe returns a stream of envelopes matching a filter;
// replay-capable adapters (eventbus/pulse) can additionally backfill from an
// offset, but the in-memory adapter only delivers events published after the
// subscription is registered.
package eventbus

import (
	"context"

	"github.com/pathplanhq/pathplanner/domain/event"
)

// Filter selects which published envelopes a subscription receives. A zero
// value Filter matches everything. Non-empty AggregateID/EventTypes narrow
// the stream; when both are set an envelope must satisfy both.
type Filter struct {
	AggregateID string
	EventTypes  []event.Type
}

// Matches reports whether env satisfies f.
func (f Filter) Matches(env *event.Envelope) bool {
	if f.AggregateID != "" && env.AggregateID != f.AggregateID {
		return false
	}
	if len(f.EventTypes) == 0 {
		return true
	}
	for _, t := range f.EventTypes {
		if env.EventType == t {
			return true
		}
	}
	return false
}

type (
	// Bus is the fan-out publication port.
	Bus interface {
		// Publish delivers env to every subscription whose filter matches.
		// Best-effort: a slow or absent subscriber never blocks or fails the
		// publisher.
		Publish(ctx context.Context, env *event.Envelope) error

		// Subscribe registers a new stream matching filter. Callers must
		// call Subscription.Close when done to release the channel.
		Subscribe(ctx context.Context, filter Filter) (Subscription, error)
	}

	// Subscription is an active registration on a Bus.
	Subscription interface {
		// Events is the channel of matching envelopes. It is closed when the
		// subscription is closed.
		Events() <-chan *event.Envelope

		// Close unregisters the subscription. Idempotent.
		Close() error
	}
)

// Package inmem provides an in-memory implementation of eventbus.Bus.
//
// The in-memory bus is intended for tests and single-process deployments. It
// implements a synchronous fan-out: Publish hands env to each matching
// subscription's channel without waiting for a consumer, dropping the event
// for any subscription whose buffer is full. This keeps a stalled subscriber
// from ever blocking the publisher, consistent with the bus's best-effort
// contract.
package inmem

import (
	"context"
	"sync"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/eventbus"
)

// subscriptionBuffer is the channel capacity given to each subscription.
// Past this, Publish drops rather than blocks.
const subscriptionBuffer = 256

type (
	// Bus implements eventbus.Bus in memory.
	Bus struct {
		mu   sync.RWMutex
		subs map[*subscription]struct{}
	}

	subscription struct {
		bus    *Bus
		filter eventbus.Filter
		ch     chan *event.Envelope
		once   sync.Once
	}
)

// New constructs a new in-memory event bus, ready for immediate use.
func New() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

// Publish implements eventbus.Bus.
func (b *Bus) Publish(_ context.Context, env *event.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.filter.Matches(env) {
			continue
		}
		select {
		case s.ch <- env:
		default:
			// Best-effort: a full subscriber buffer means a dropped event,
			// never a blocked publisher.
		}
	}
	return nil
}

// Subscribe implements eventbus.Bus.
func (b *Bus) Subscribe(_ context.Context, filter eventbus.Filter) (eventbus.Subscription, error) {
	s := &subscription{
		bus:    b,
		filter: filter,
		ch:     make(chan *event.Envelope, subscriptionBuffer),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

func (s *subscription) Events() <-chan *event.Envelope { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
	return nil
}

// Package pulse implements eventbus.Bus durably over goa.design/pulse Redis
// streams. All planner aggregates share one configured stream topic;
// subscriptions filter client-side after decoding, since Pulse consumer
// groups don't support server-side field filtering.
package pulse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/eventbus"
	clientspulse "github.com/pathplanhq/pathplanner/eventbus/pulse/clients/pulse"
)

// Options configures the Pulse-backed bus.
type Options struct {
	// Client is the Pulse client used to publish/consume. Required.
	Client clientspulse.Client
	// Topic names the shared Pulse stream every planner publishes to and
	// subscribes from (spec §6's event_bus.topic).
	Topic string
}

// Bus implements eventbus.Bus against a single Pulse stream.
type Bus struct {
	client clientspulse.Client
	stream clientspulse.Stream
}

// New opens (creating if needed) the configured Pulse stream.
func New(opts Options) (*Bus, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("pulse client is required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	stream, err := opts.Client.Stream(opts.Topic)
	if err != nil {
		return nil, fmt.Errorf("open pulse stream %s: %w", opts.Topic, err)
	}
	return &Bus{client: opts.Client, stream: stream}, nil
}

// Publish implements eventbus.Bus.
func (b *Bus) Publish(ctx context.Context, env *event.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", env.EventID, err)
	}
	if _, err := b.stream.Add(ctx, string(env.EventType), payload); err != nil {
		return fmt.Errorf("publish %s: %w", env.EventID, err)
	}
	return nil
}

// Subscribe implements eventbus.Bus. Each call opens a fresh Pulse consumer
// group so every subscriber sees every matching event independently
// (fan-out), not competing-consumer delivery.
func (b *Bus) Subscribe(ctx context.Context, filter eventbus.Filter) (eventbus.Subscription, error) {
	sink, err := b.stream.NewSink(ctx, "planner-bus-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("new pulse sink: %w", err)
	}

	sub := &subscription{
		sink:   sink,
		filter: filter,
		ch:     make(chan *event.Envelope, 256),
	}
	runCtx, cancel := context.WithCancel(ctx)
	sub.cancel = cancel
	go sub.consume(runCtx)
	return sub, nil
}

// Close releases the bus's own Pulse client.
func (b *Bus) Close(ctx context.Context) error {
	return b.client.Close(ctx)
}

type subscription struct {
	sink   clientspulse.Sink
	filter eventbus.Filter
	ch     chan *event.Envelope
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) consume(ctx context.Context) {
	defer close(s.ch)
	in := s.sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			var env event.Envelope
			if err := json.Unmarshal(raw.Payload, &env); err != nil {
				_ = s.sink.Ack(ctx, raw)
				continue
			}
			if s.filter.Matches(&env) {
				select {
				case s.ch <- &env:
				case <-ctx.Done():
					return
				}
			}
			_ = s.sink.Ack(ctx, raw)
		}
	}
}

func (s *subscription) Events() <-chan *event.Envelope { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.sink.Close(context.Background())
	})
	return nil
}

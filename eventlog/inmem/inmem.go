// Package inmem provides an in-memory implementation of eventlog.Log.
//
// The in-memory log is intended for tests and local development. It is not
// durable and should not be used in production.
package inmem

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/eventlog"
)

// Log implements eventlog.Log in memory.
type Log struct {
	mu   sync.Mutex
	logs map[string][]*event.Envelope
}

// New returns a new in-memory event log.
func New() *Log {
	return &Log{logs: make(map[string][]*event.Envelope)}
}

// Append implements eventlog.Log.
func (l *Log) Append(_ context.Context, aggregateID string, expectedVersion uint64, events []*event.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing := l.logs[aggregateID]

	if uint64(len(existing)) != expectedVersion {
		// A duplicate retry of an already-applied batch looks identical to the
		// tail of the log: treat it as idempotent success rather than a
		// conflict (spec §7, DuplicateAppend).
		if duplicateSuffix(existing, events) {
			return nil
		}
		return &eventlog.VersionConflictError{
			AggregateID: aggregateID,
			Expected:    expectedVersion,
			Actual:      uint64(len(existing)),
		}
	}

	l.logs[aggregateID] = append(existing, events...)
	return nil
}

// Load implements eventlog.Log.
func (l *Log) Load(_ context.Context, aggregateID string, fromVersion uint64) ([]*event.Envelope, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.logs[aggregateID]
	if fromVersion >= uint64(len(all)) {
		return nil, nil
	}
	out := make([]*event.Envelope, len(all)-int(fromVersion))
	copy(out, all[fromVersion:])
	return out, nil
}

// LoadByType implements eventlog.Log.
func (l *Log) LoadByType(_ context.Context, eventType event.Type, fromTimestampUnixNano int64) ([]*event.Envelope, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*event.Envelope
	for _, envs := range l.logs {
		for _, env := range envs {
			if env.EventType != eventType {
				continue
			}
			if env.OccurredAt.UnixNano() < fromTimestampUnixNano {
				continue
			}
			out = append(out, env)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// duplicateSuffix reports whether the tail of existing, of length
// len(events), is payload-equal to events — the case where a retried
// append lands after its own events were already committed.
func duplicateSuffix(existing []*event.Envelope, events []*event.Envelope) bool {
	if len(events) == 0 || len(existing) < len(events) {
		return false
	}
	tail := existing[len(existing)-len(events):]
	for i, env := range events {
		if tail[i].AggregateID != env.AggregateID || tail[i].EventType != env.EventType {
			return false
		}
		if !bytes.Equal(tail[i].Payload, env.Payload) {
			return false
		}
	}
	return true
}

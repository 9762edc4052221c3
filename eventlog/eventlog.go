// Package eventlog defines the append-only, per-aggregate event log port.
// Adapters implement Log against an in-memory map (tests), a durable store
// (eventlog/mongodoc), or any other backing with the same append-order and
// optimistic-concurrency guarantees.
package eventlog

import (
	"context"
	"fmt"

	"github.com/pathplanhq/pathplanner/domain/event"
)

// Log is the append-only per-aggregate event log port.
type Log interface {
	// Append writes events to aggregateID's log, atomically, only if the
	// currently stored length equals expectedVersion. Otherwise it returns
	// *VersionConflictError and writes nothing. A duplicate insert — same
	// aggregate id and payload as an already-stored event — must be treated
	// as idempotent success, not an error (see DuplicateAppend in spec §7).
	Append(ctx context.Context, aggregateID string, expectedVersion uint64, events []*event.Envelope) error

	// Load returns aggregateID's envelopes with index >= fromVersion, in
	// append order.
	Load(ctx context.Context, aggregateID string, fromVersion uint64) ([]*event.Envelope, error)

	// LoadByType scans across aggregates for envelopes of eventType,
	// returned sorted by occurred_at ascending. fromTimestamp is exclusive
	// of nothing in particular — it is a lower bound in Unix-nanosecond
	// form; pass 0 for no lower bound.
	LoadByType(ctx context.Context, eventType event.Type, fromTimestampUnixNano int64) ([]*event.Envelope, error)
}

// VersionConflictError reports that Append's expectedVersion did not match
// the log's current length for the aggregate. Nothing was written.
type VersionConflictError struct {
	AggregateID string
	Expected    uint64
	Actual      uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, actual %d", e.AggregateID, e.Expected, e.Actual)
}

// Package mongodoc implements eventlog.Log durably against MongoDB. Each
// envelope is stored as its own document, keyed by (aggregate_id, version)
// under a unique index so a concurrent double-append can never silently
// corrupt the log: the loser's insert fails the unique constraint and is
// reported back as a version conflict, exactly like the in-memory adapter's
// compare-and-append.
package mongodoc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/pathplanhq/pathplanner/domain/event"
	"github.com/pathplanhq/pathplanner/eventlog"
)

const (
	defaultCollection = "planner_events"
	defaultTimeout    = 5 * time.Second
)

type (
	// Options configures the Mongo-backed log.
	Options struct {
		Client     *mongo.Client
		Database   string
		Collection string
		Timeout    time.Duration
	}

	// Log implements eventlog.Log against a MongoDB collection.
	Log struct {
		coll    *mongo.Collection
		client  *mongo.Client
		timeout time.Duration
	}

	envelopeDocument struct {
		ID            bson.ObjectID `bson:"_id,omitempty"`
		AggregateID   string        `bson:"aggregate_id"`
		Version       uint64        `bson:"version"`
		EventID       string        `bson:"event_id"`
		AggregateType string        `bson:"aggregate_type"`
		EventType     string        `bson:"event_type"`
		EventVersion  int           `bson:"event_version"`
		Payload       []byte        `bson:"payload"`
		CorrelationID string        `bson:"correlation_id"`
		CausationID   string        `bson:"causation_id"`
		UserID        string        `bson:"user_id"`
		Source        string        `bson:"source"`
		OccurredAt    time.Time     `bson:"occurred_at"`
	}
)

// New connects the log to an existing database/collection, creating the
// indexes it relies on if they don't already exist.
func New(ctx context.Context, opts Options) (*Log, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	coll := opts.Client.Database(opts.Database).Collection(collName)
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(ictx, coll); err != nil {
		return nil, err
	}
	return &Log{coll: coll, client: opts.Client, timeout: timeout}, nil
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "aggregate_id", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "occurred_at", Value: 1}},
		},
	})
	return err
}

// Ping reports whether the backing Mongo deployment is reachable.
func (l *Log) Ping(ctx context.Context) error {
	return l.client.Ping(ctx, readpref.Primary())
}

// Append implements eventlog.Log.
func (l *Log) Append(ctx context.Context, aggregateID string, expectedVersion uint64, events []*event.Envelope) error {
	if len(events) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	actual, err := l.currentVersion(ctx, aggregateID)
	if err != nil {
		return err
	}
	if actual != expectedVersion {
		dup, err := l.isDuplicateSuffix(ctx, aggregateID, expectedVersion, events)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
		return &eventlog.VersionConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: actual}
	}

	docs := make([]any, len(events))
	for i, env := range events {
		docs[i] = toDocument(aggregateID, expectedVersion+uint64(i)+1, env)
	}
	if _, err := l.coll.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			refreshed, verr := l.currentVersion(ctx, aggregateID)
			if verr != nil {
				return verr
			}
			return &eventlog.VersionConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: refreshed}
		}
		return fmt.Errorf("insert events for %s: %w", aggregateID, err)
	}
	return nil
}

// Load implements eventlog.Log.
func (l *Log) Load(ctx context.Context, aggregateID string, fromVersion uint64) ([]*event.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	filter := bson.D{{Key: "aggregate_id", Value: aggregateID}, {Key: "version", Value: bson.D{{Key: "$gt", Value: fromVersion}}}}
	cur, err := l.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", aggregateID, err)
	}
	defer cur.Close(ctx)

	var out []*event.Envelope
	for cur.Next(ctx) {
		var doc envelopeDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		out = append(out, fromDocument(doc))
	}
	return out, cur.Err()
}

// LoadByType implements eventlog.Log.
func (l *Log) LoadByType(ctx context.Context, eventType event.Type, fromTimestampUnixNano int64) ([]*event.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	from := time.Unix(0, fromTimestampUnixNano).UTC()
	filter := bson.D{
		{Key: "event_type", Value: string(eventType)},
		{Key: "occurred_at", Value: bson.D{{Key: "$gte", Value: from}}},
	}
	cur, err := l.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("load events by type %s: %w", eventType, err)
	}
	defer cur.Close(ctx)

	var out []*event.Envelope
	for cur.Next(ctx) {
		var doc envelopeDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		out = append(out, fromDocument(doc))
	}
	return out, cur.Err()
}

func (l *Log) currentVersion(ctx context.Context, aggregateID string) (uint64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var doc envelopeDocument
	err := l.coll.FindOne(ctx, bson.D{{Key: "aggregate_id", Value: aggregateID}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current version for %s: %w", aggregateID, err)
	}
	return doc.Version, nil
}

// isDuplicateSuffix is this adapter's retry-is-idempotent check: if the
// events just past expectedVersion already on the log are payload-identical
// to the batch being appended, this Append call is a redelivered retry, not
// a genuine conflict. (The in-memory adapter compares the log's tail
// instead; the two agree when nothing was appended after the retried batch.)
func (l *Log) isDuplicateSuffix(ctx context.Context, aggregateID string, expectedVersion uint64, events []*event.Envelope) (bool, error) {
	filter := bson.D{
		{Key: "aggregate_id", Value: aggregateID},
		{Key: "version", Value: bson.D{{Key: "$gt", Value: expectedVersion}}},
	}
	cur, err := l.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}).SetLimit(int64(len(events))))
	if err != nil {
		return false, err
	}
	defer cur.Close(ctx)

	for _, want := range events {
		if !cur.Next(ctx) {
			return false, cur.Err()
		}
		var doc envelopeDocument
		if err := cur.Decode(&doc); err != nil {
			return false, err
		}
		if doc.AggregateID != want.AggregateID || doc.EventType != string(want.EventType) || string(doc.Payload) != string(want.Payload) {
			return false, nil
		}
	}
	return true, nil
}

func toDocument(aggregateID string, version uint64, env *event.Envelope) envelopeDocument {
	return envelopeDocument{
		AggregateID:   aggregateID,
		Version:       version,
		EventID:       env.EventID,
		AggregateType: env.AggregateType,
		EventType:     string(env.EventType),
		EventVersion:  env.EventVersion,
		Payload:       append([]byte(nil), env.Payload...),
		CorrelationID: env.Metadata.CorrelationID,
		CausationID:   env.Metadata.CausationID,
		UserID:        env.Metadata.UserID,
		Source:        env.Metadata.Source,
		OccurredAt:    env.OccurredAt.UTC(),
	}
}

func fromDocument(doc envelopeDocument) *event.Envelope {
	return &event.Envelope{
		EventID:       doc.EventID,
		AggregateID:   doc.AggregateID,
		AggregateType: doc.AggregateType,
		EventType:     event.Type(doc.EventType),
		EventVersion:  doc.EventVersion,
		Payload:       append([]byte(nil), doc.Payload...),
		Metadata: event.Metadata{
			CorrelationID: doc.CorrelationID,
			CausationID:   doc.CausationID,
			UserID:        doc.UserID,
			Source:        doc.Source,
		},
		OccurredAt: doc.OccurredAt,
	}
}

package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type (
	// Metadata carries routing and causal-tracing fields alongside an event.
	// Source identifies the producing process ("planner", "worker:w1",
	// "client"); CausationID threads the event that directly produced this
	// one (see DESIGN.md on causation threading).
	Metadata struct {
		CorrelationID string `json:"correlation_id,omitempty"`
		CausationID   string `json:"causation_id,omitempty"`
		UserID        string `json:"user_id,omitempty"`
		Source        string `json:"source,omitempty"`
	}

	// Envelope is the outer record written to the log and published to the
	// bus. Payload is the serialized domain event; the envelope itself never
	// changes once appended.
	Envelope struct {
		EventID       string          `json:"event_id"`
		AggregateID   string          `json:"aggregate_id"`
		AggregateType string          `json:"aggregate_type"`
		EventType     Type            `json:"event_type"`
		EventVersion  int             `json:"event_version"`
		Payload       json.RawMessage `json:"event_data"`
		Metadata      Metadata        `json:"metadata"`
		OccurredAt    time.Time       `json:"occurred_at"`
	}
)

// AggregateTypePlanner is the aggregate_type stamped on every planner
// aggregate's envelopes (see spec §6 wire format).
const AggregateTypePlanner = "PathPlanner"

// NewEventID mints a fresh, random event identifier. Exposed so the runtime
// can attach causation chains before envelopes are constructed.
func NewEventID() string {
	return uuid.NewString()
}

// Package eventstream defines the transport-neutral envelope for completion
// metrics and the Publisher interface that ships it to an event backend.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/difyvoice/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMetricsCollected is emitted once per streaming completion.
	EventTypeMetricsCollected = "difyvoice.llm.metrics_collected"
)

// MetricsCollectedEvent is a transport-neutral event payload for one
// completion's metrics.
type MetricsCollectedEvent struct {
	SchemaVersion int                   `json:"schema_version"`
	EventType     string                `json:"event_type"`
	EventID       string                `json:"event_id"`
	EmittedAt     time.Time             `json:"emitted_at"`
	Source        EventSource           `json:"source"`
	Metrics       llm.CompletionMetrics `json:"metrics"`
}

// EventSource identifies which agent produced the metrics.
type EventSource struct {
	AgentName string `json:"agent_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Label     string `json:"label"`
}

// NewMetricsCollectedEvent wraps m in a v1 envelope with a fresh event ID.
// The source label is taken from m.
func NewMetricsCollectedEvent(source EventSource, m llm.CompletionMetrics) *MetricsCollectedEvent {
	source.Label = m.Label
	return &MetricsCollectedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMetricsCollected,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Metrics:       m,
	}
}

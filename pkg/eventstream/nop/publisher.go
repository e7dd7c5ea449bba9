package nop

import (
	"context"

	"github.com/papercomputeco/difyvoice/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishMetrics validates input and otherwise does nothing.
func (p *Publisher) PublishMetrics(_ context.Context, event *eventstream.MetricsCollectedEvent) error {
	if event == nil {
		return eventstream.ErrNilMetricsEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

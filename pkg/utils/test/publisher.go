package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/difyvoice/pkg/eventstream"
)

// RecordingPublisher is an eventstream.Publisher that keeps every event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.MetricsCollectedEvent
	closed bool

	// Err, when set, is returned from PublishMetrics instead of recording.
	Err error
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) PublishMetrics(_ context.Context, event *eventstream.MetricsCollectedEvent) error {
	if event == nil {
		return eventstream.ErrNilMetricsEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("publisher closed")
	}
	if p.Err != nil {
		return p.Err
	}

	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of recorded events.
func (p *RecordingPublisher) Events() []*eventstream.MetricsCollectedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.MetricsCollectedEvent(nil), p.events...)
}

func (p *RecordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

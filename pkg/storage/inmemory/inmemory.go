// Package inmemory provides a map-backed storage driver for tests and
// ephemeral runs.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the records and their order
	mu sync.RWMutex

	// records is keyed by request ID
	records map[string]*llm.CompletionMetrics

	// order holds request IDs in insertion order
	order []string
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*llm.CompletionMetrics),
	}
}

// Put stores a copy of m. Returns false if the request ID is already stored.
func (d *Driver) Put(_ context.Context, m *llm.CompletionMetrics) (bool, error) {
	if m == nil {
		return false, storage.ErrNilRecord
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[m.RequestID]; ok {
		return false, nil
	}

	stored := *m
	d.records[m.RequestID] = &stored
	d.order = append(d.order, m.RequestID)
	return true, nil
}

// Get retrieves a record by request ID.
func (d *Driver) Get(_ context.Context, requestID string) (*llm.CompletionMetrics, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.records[requestID]
	if !ok {
		return nil, storage.NotFoundError{RequestID: requestID}
	}

	out := *m
	return &out, nil
}

// List returns records newest first.
func (d *Driver) List(_ context.Context, opts storage.ListOptions) ([]*llm.CompletionMetrics, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	limit := opts.EffectiveLimit()
	result := make([]*llm.CompletionMetrics, 0, min(limit, len(d.order)))
	for i := len(d.order) - 1; i >= 0 && len(result) < limit; i-- {
		m := d.records[d.order[i]]
		if opts.Label != "" && m.Label != opts.Label {
			continue
		}
		out := *m
		result = append(result, &out)
	}

	return result, nil
}

// Stats aggregates all records, or only those with the given label.
func (d *Driver) Stats(_ context.Context, label string) (*storage.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := make([]*llm.CompletionMetrics, 0, len(d.records))
	for _, m := range d.records {
		if label != "" && m.Label != label {
			continue
		}
		records = append(records, m)
	}

	return storage.ComputeStats(records), nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

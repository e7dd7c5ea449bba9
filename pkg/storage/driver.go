// Package storage defines persistence for per-call completion metrics.
package storage

import (
	"context"

	"github.com/papercomputeco/difyvoice/pkg/llm"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Driver defines the interface for persisting and querying completion
// metrics records in a storage backend.
type Driver interface {
	// Put stores a record. Returns true if it was newly inserted, false if a
	// record with the same RequestID already exists (a no-op).
	Put(ctx context.Context, m *llm.CompletionMetrics) (bool, error)

	// Get retrieves a record by request ID. Returns NotFoundError when absent.
	Get(ctx context.Context, requestID string) (*llm.CompletionMetrics, error)

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*llm.CompletionMetrics, error)

	// Stats aggregates records, optionally restricted to one label.
	Stats(ctx context.Context, label string) (*Stats, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ListOptions filters List.
type ListOptions struct {
	// Label restricts results to one backend label. Empty means all.
	Label string

	// Limit caps the number of results. Zero or negative uses DefaultListLimit.
	Limit int
}

// EffectiveLimit returns the limit List should apply.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// Stats summarizes stored records.
type Stats struct {
	Count          int `json:"count"`
	ErrorCount     int `json:"error_count"`
	CancelledCount int `json:"cancelled_count"`
	TotalTokens    int `json:"total_tokens"`

	AvgDuration        float64 `json:"avg_duration"`
	AvgTokensPerSecond float64 `json:"avg_tokens_per_second"`

	// AvgTTFT only considers calls that produced at least one fragment.
	AvgTTFT float64 `json:"avg_ttft"`
}

// ComputeStats aggregates records in memory.
func ComputeStats(records []*llm.CompletionMetrics) *Stats {
	stats := &Stats{}

	var duration, tps, ttft float64
	ttftCount := 0
	for _, m := range records {
		stats.Count++
		if m.Failed() {
			stats.ErrorCount++
		}
		if m.Cancelled {
			stats.CancelledCount++
		}
		stats.TotalTokens += m.TotalTokens
		duration += m.Duration
		tps += m.TokensPerSecond
		if m.TTFT > 0 {
			ttft += m.TTFT
			ttftCount++
		}
	}

	if stats.Count > 0 {
		stats.AvgDuration = duration / float64(stats.Count)
		stats.AvgTokensPerSecond = tps / float64(stats.Count)
	}
	if ttftCount > 0 {
		stats.AvgTTFT = ttft / float64(ttftCount)
	}

	return stats
}

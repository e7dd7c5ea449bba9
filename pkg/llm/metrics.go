package llm

import (
	"sync"
	"sync/atomic"
)

// CompletionMetrics is the per-call performance record emitted exactly once
// for every streaming completion, whether it succeeded or not.
type CompletionMetrics struct {
	// Duration is the wall-clock time of the call in seconds.
	Duration float64 `json:"duration"`

	// Label names the backend that served the call, e.g. "dify".
	Label string `json:"label"`

	// Cancelled is true when the consumer stopped reading or the context was
	// cancelled before the stream finished.
	Cancelled bool `json:"cancelled"`

	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// TokensPerSecond is TotalTokens / Duration, or 0 when Duration <= 0.
	TokensPerSecond float64 `json:"tokens_per_second"`

	// Error is the message of the last error observed, or "".
	Error string `json:"error"`

	RequestID string `json:"request_id"`

	// Timestamp is the call start in epoch seconds.
	Timestamp int64 `json:"timestamp"`

	// TTFT is the time to first token in seconds, 0 when no fragment arrived.
	TTFT float64 `json:"ttft"`
}

// Failed reports whether the call ended with an error.
func (m *CompletionMetrics) Failed() bool {
	return m.Error != ""
}

// MetricsObserver receives completion metrics.
// Implementations must not block for long: they run on the caller's
// goroutine before an error is handed back to the consumer.
type MetricsObserver interface {
	OnMetricsCollected(m CompletionMetrics)
}

// MetricsObserverFunc adapts a function to MetricsObserver.
type MetricsObserverFunc func(m CompletionMetrics)

// OnMetricsCollected calls f(m).
func (f MetricsObserverFunc) OnMetricsCollected(m CompletionMetrics) {
	f(m)
}

// Emitter fans metrics out to registered observers in registration order.
// The zero value is ready to use.
type Emitter struct {
	mu        sync.RWMutex
	nextID    uint64
	observers []registration
}

type registration struct {
	id  uint64
	obs MetricsObserver
}

// OnMetrics registers obs and returns a func that removes it again.
func (e *Emitter) OnMetrics(obs MetricsObserver) (unsubscribe func()) {
	if obs == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.observers = append(e.observers, registration{id: id, obs: obs})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, r := range e.observers {
				if r.id == id {
					e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// EmitMetrics delivers m to every registered observer.
func (e *Emitter) EmitMetrics(m CompletionMetrics) {
	e.mu.RLock()
	snapshot := make([]MetricsObserver, len(e.observers))
	for i, r := range e.observers {
		snapshot[i] = r.obs
	}
	e.mu.RUnlock()

	for _, obs := range snapshot {
		obs.OnMetricsCollected(m)
	}
}

// MetricsQueue is an observer backed by a buffered channel that an
// orchestrator can poll. Sends never block: when the buffer is full the
// record is dropped and counted.
type MetricsQueue struct {
	ch      chan CompletionMetrics
	dropped atomic.Uint64
}

// NewMetricsQueue returns a queue with the given buffer size (minimum 1).
func NewMetricsQueue(size int) *MetricsQueue {
	if size < 1 {
		size = 1
	}
	return &MetricsQueue{ch: make(chan CompletionMetrics, size)}
}

// OnMetricsCollected enqueues m or drops it when the buffer is full.
func (q *MetricsQueue) OnMetricsCollected(m CompletionMetrics) {
	select {
	case q.ch <- m:
	default:
		q.dropped.Add(1)
	}
}

// C returns the receive side of the queue.
func (q *MetricsQueue) C() <-chan CompletionMetrics {
	return q.ch
}

// Dropped returns how many records were discarded because the queue was full.
func (q *MetricsQueue) Dropped() uint64 {
	return q.dropped.Load()
}

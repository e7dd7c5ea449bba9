// Package worker provides an asynchronous worker pool that persists completion
// metrics using the provided storage.Driver and publishes them using the
// provided eventstream.Publisher.
//
// The pool decouples storage and publishing from the streaming hot path so
// that metrics observers return immediately.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/difyvoice/pkg/eventstream"
	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/logger"
	"github.com/papercomputeco/difyvoice/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Metrics llm.CompletionMetrics

	// Source is stamped on the published event.
	Source eventstream.EventSource
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the optional storage backend for persisting records.
	Driver storage.Driver

	// Publisher is the optional event stream for metrics events.
	Publisher eventstream.Publisher

	// Source is the initial event source. See Pool.SetSource.
	Source eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds storage and publishing for one job (defaults to 10s).
	JobTimeout time.Duration

	// Logger is the provided slog logger.
	Logger *slog.Logger
}

// Pool processes metrics jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	sourceMu sync.RWMutex
	source   eventstream.EventSource

	closeOnce sync.Once
}

var _ llm.MetricsObserver = (*Pool)(nil)

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		source: c.Source,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// OnMetricsCollected enqueues m with the current source. It never blocks.
func (p *Pool) OnMetricsCollected(m llm.CompletionMetrics) {
	p.sourceMu.RLock()
	src := p.source
	p.sourceMu.RUnlock()

	p.Enqueue(Job{Metrics: m, Source: src})
}

// SetSource changes the source stamped on metrics collected from now on.
// Jobs already queued keep the source they were collected with.
func (p *Pool) SetSource(src eventstream.EventSource) {
	p.sourceMu.Lock()
	defer p.sourceMu.Unlock()
	p.source = src
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"request_id", job.Metrics.RequestID,
			"label", job.Metrics.Label,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"request_id", job.Metrics.RequestID,
			"label", job.Metrics.Label,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown once no more metrics can be emitted.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
	})
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("metrics worker stopped", "worker_id", id)
}

// processJob stores the record and then publishes it. Failures are logged and
// never retried.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	m := job.Metrics

	if p.config.Driver != nil {
		isNew, err := p.config.Driver.Put(ctx, &m)
		if err != nil {
			p.logger.Error("async metrics storage failed",
				"request_id", m.RequestID,
				"error", err,
			)
		} else {
			p.logger.Debug("metrics stored",
				"request_id", m.RequestID,
				"is_new", isNew,
			)
		}
	}

	if p.config.Publisher != nil {
		event := eventstream.NewMetricsCollectedEvent(job.Source, m)
		if err := p.config.Publisher.PublishMetrics(ctx, event); err != nil {
			p.logger.Warn("metrics event publish failed",
				"request_id", m.RequestID,
				"event_id", event.EventID,
				"error", err,
			)
			return
		}
	}

	p.logger.Info("completion metrics recorded",
		"request_id", m.RequestID,
		"label", m.Label,
		"duration", m.Duration,
		"ttft", m.TTFT,
		"total_tokens", m.TotalTokens,
		"tokens_per_second", m.TokensPerSecond,
		"cancelled", m.Cancelled,
		"error", m.Error,
	)
}

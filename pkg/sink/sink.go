// Package sink assembles the metrics pipeline behind the Dify adapter: a
// storage driver, an event publisher and the worker pool feeding both.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/difyvoice/pkg/eventstream"
	"github.com/papercomputeco/difyvoice/pkg/eventstream/kafka"
	"github.com/papercomputeco/difyvoice/pkg/eventstream/nop"
	"github.com/papercomputeco/difyvoice/pkg/logger"
	"github.com/papercomputeco/difyvoice/pkg/storage"
	"github.com/papercomputeco/difyvoice/pkg/storage/inmemory"
	"github.com/papercomputeco/difyvoice/pkg/storage/postgres"
	"github.com/papercomputeco/difyvoice/pkg/storage/sqlite"
	"github.com/papercomputeco/difyvoice/pkg/worker"
)

// Options selects the pipeline backends.
type Options struct {
	// PostgresDSN wins over SQLitePath. With neither, records stay in memory.
	PostgresDSN string
	SQLitePath  string

	// KafkaBrokers enables the Kafka publisher when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	NumWorkers uint
	QueueSize  uint

	Source eventstream.EventSource
	Logger *slog.Logger
}

// Sink owns the pipeline components. Register Pool as a metrics observer.
type Sink struct {
	Driver    storage.Driver
	Publisher eventstream.Publisher
	Pool      *worker.Pool
}

// OpenDriver opens the storage driver selected by opts.
func OpenDriver(ctx context.Context, opts Options) (storage.Driver, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	switch {
	case opts.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	case opts.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Info("using SQLite storage", "path", opts.SQLitePath)
		return driver, nil

	default:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

// OpenPublisher creates the event publisher selected by opts.
func OpenPublisher(opts Options) (eventstream.Publisher, error) {
	if len(opts.KafkaBrokers) == 0 {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: opts.KafkaBrokers,
		Topic:   opts.KafkaTopic,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}
	return pub, nil
}

// Open builds the whole pipeline. On error, anything already opened is closed.
func Open(ctx context.Context, opts Options) (*Sink, error) {
	driver, err := OpenDriver(ctx, opts)
	if err != nil {
		return nil, err
	}

	pub, err := OpenPublisher(opts)
	if err != nil {
		_ = driver.Close()
		return nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  pub,
		Source:     opts.Source,
		NumWorkers: opts.NumWorkers,
		QueueSize:  opts.QueueSize,
		Logger:     opts.Logger,
	})
	if err != nil {
		_ = pub.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &Sink{
		Driver:    driver,
		Publisher: pub,
		Pool:      pool,
	}, nil
}

// Close drains the pool, then closes the publisher and the driver.
func (s *Sink) Close() error {
	s.Pool.Close()
	return errors.Join(s.Publisher.Close(), s.Driver.Close())
}

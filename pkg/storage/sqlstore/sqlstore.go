// Package sqlstore implements storage.Driver on top of database/sql. The
// sqlite and postgres drivers open their own *sql.DB and delegate here.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/storage"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// NumberedPlaceholders rewrites "?" to "$1", "$2", ...
	NumberedPlaceholders bool
}

var (
	// SQLite is the dialect for github.com/mattn/go-sqlite3.
	SQLite = Dialect{Name: "sqlite"}

	// Postgres is the dialect for github.com/jackc/pgx/v5/stdlib.
	Postgres = Dialect{Name: "postgres", NumberedPlaceholders: true}
)

const schema = `CREATE TABLE IF NOT EXISTS completion_metrics (
	request_id        TEXT PRIMARY KEY,
	label             TEXT NOT NULL,
	started_at        BIGINT NOT NULL,
	recorded_at       BIGINT NOT NULL,
	duration          DOUBLE PRECISION NOT NULL,
	ttft              DOUBLE PRECISION NOT NULL,
	cancelled         BOOLEAN NOT NULL,
	completion_tokens INTEGER NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	tokens_per_second DOUBLE PRECISION NOT NULL,
	error             TEXT NOT NULL
)`

const labelIndex = `CREATE INDEX IF NOT EXISTS completion_metrics_label_recorded_at
	ON completion_metrics (label, recorded_at)`

const columns = `request_id, label, started_at, duration, ttft, cancelled,
	completion_tokens, prompt_tokens, total_tokens, tokens_per_second, error`

// Store is a storage.Driver backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ storage.Driver = (*Store)(nil)

// New wraps db. Call Migrate before use.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the schema if it doesn't exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, labelIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// Put inserts m unless its request ID already exists.
func (s *Store) Put(ctx context.Context, m *llm.CompletionMetrics) (bool, error) {
	if m == nil {
		return false, storage.ErrNilRecord
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO completion_metrics (
		request_id, label, started_at, recorded_at, duration, ttft, cancelled,
		completion_tokens, prompt_tokens, total_tokens, tokens_per_second, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (request_id) DO NOTHING`),
		m.RequestID, m.Label, m.Timestamp, time.Now().UnixNano(), m.Duration, m.TTFT, m.Cancelled,
		m.CompletionTokens, m.PromptTokens, m.TotalTokens, m.TokensPerSecond, m.Error,
	)
	if err != nil {
		return false, fmt.Errorf("inserting metrics record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading insert result: %w", err)
	}

	return n > 0, nil
}

// Get retrieves a record by request ID.
func (s *Store) Get(ctx context.Context, requestID string) (*llm.CompletionMetrics, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+columns+` FROM completion_metrics WHERE request_id = ?`),
		requestID,
	)

	m, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{RequestID: requestID}
	}
	if err != nil {
		return nil, fmt.Errorf("querying metrics record: %w", err)
	}

	return m, nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*llm.CompletionMetrics, error) {
	query := `SELECT ` + columns + ` FROM completion_metrics`
	args := []any{}
	if opts.Label != "" {
		query += ` WHERE label = ?`
		args = append(args, opts.Label)
	}
	query += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, opts.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing metrics records: %w", err)
	}
	defer rows.Close()

	var result []*llm.CompletionMetrics
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning metrics record: %w", err)
		}
		result = append(result, m)
	}

	return result, rows.Err()
}

// Stats aggregates records in the database.
func (s *Store) Stats(ctx context.Context, label string) (*storage.Stats, error) {
	query := `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN error <> '' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN cancelled THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(total_tokens), 0),
		COALESCE(AVG(duration), 0),
		COALESCE(AVG(tokens_per_second), 0),
		COALESCE(AVG(CASE WHEN ttft > 0 THEN ttft END), 0)
	FROM completion_metrics`
	args := []any{}
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}

	var count, errCount, cancelled, tokens int64
	stats := &storage.Stats{}
	err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(
		&count, &errCount, &cancelled, &tokens,
		&stats.AvgDuration, &stats.AvgTokensPerSecond, &stats.AvgTTFT,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating metrics records: %w", err)
	}

	stats.Count = int(count)
	stats.ErrorCount = int(errCount)
	stats.CancelledCount = int(cancelled)
	stats.TotalTokens = int(tokens)
	return stats, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*llm.CompletionMetrics, error) {
	m := &llm.CompletionMetrics{}
	err := row.Scan(
		&m.RequestID, &m.Label, &m.Timestamp, &m.Duration, &m.TTFT, &m.Cancelled,
		&m.CompletionTokens, &m.PromptTokens, &m.TotalTokens, &m.TokensPerSecond, &m.Error,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// rebind rewrites "?" placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedPlaceholders {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

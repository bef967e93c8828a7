// Package store is the append-only event log and its windowed reader.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/benedict2310/storepulse/internal/db"
	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/metrics"
)

var ErrClosed = errors.New("event store is closed")

// Order selects how a range read is sorted on (occurredAt, id).
type Order int

const (
	NewestFirst Order = iota
	Chronological
)

type RangeQuery struct {
	Window events.Window
	// Now anchors the trailing window; zero means time.Now().
	Now   time.Time
	Limit int
	Order Order
}

// Store appends envelopes and reads them back by trailing window.
type Store interface {
	Append(ctx context.Context, env events.Envelope) (int64, error)
	Range(ctx context.Context, q RangeQuery) ([]events.Envelope, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Truncate(ctx context.Context) error
}

type SQLStore struct {
	db      *sql.DB
	dialect dbpkg.Dialect
	owned   bool
}

func NewSQLStore(db *sql.DB, dialect dbpkg.Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// Open connects to the configured database, applies migrations, and returns
// a store that owns the connection.
func Open(ctx context.Context, opts dbpkg.Options) (*SQLStore, error) {
	sqlDB, err := dbpkg.Open(opts)
	if err != nil {
		return nil, err
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = dbpkg.DialectSQLite
	}
	if err := dbpkg.RunMigrations(ctx, sqlDB, dialect); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &SQLStore{db: sqlDB, dialect: dialect, owned: true}, nil
}

// Close releases the connection when the store opened it.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil || !s.owned {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("close %s db: %w", s.dialect, err)
	}
	return nil
}

func (s *SQLStore) queries() (*dbpkg.Queries, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	return dbpkg.NewQueries(s.db, s.dialect), nil
}

// Append stores env as-is; OccurredAt must already be stamped by the caller.
func (s *SQLStore) Append(ctx context.Context, env events.Envelope) (int64, error) {
	defer metrics.ObserveStoreOp("append", time.Now())
	q, err := s.queries()
	if err != nil {
		return 0, err
	}
	if env.OccurredAt.IsZero() {
		return 0, fmt.Errorf("append event: occurredAt is required")
	}
	payload, err := env.Payload.Encode()
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return q.InsertEvent(ctx, dbpkg.EventRow{
		OccurredAt:  env.OccurredAt,
		IP:          optionalString(env.ClientIP),
		UserAgent:   optionalString(env.UserAgent),
		PayloadJSON: payload,
	})
}

func (s *SQLStore) Range(ctx context.Context, rq RangeQuery) ([]events.Envelope, error) {
	defer metrics.ObserveStoreOp("range", time.Now())
	q, err := s.queries()
	if err != nil {
		return nil, err
	}
	now := rq.Now
	if now.IsZero() {
		now = time.Now()
	}
	rows, err := q.ListEvents(ctx, dbpkg.ListEventsParams{
		Since:     rq.Window.Since(now),
		Limit:     rq.Limit,
		Ascending: rq.Order == Chronological,
	})
	if err != nil {
		return nil, err
	}

	out := make([]events.Envelope, 0, len(rows))
	for _, row := range rows {
		payload, err := events.ParsePayload(row.PayloadJSON)
		if err != nil {
			// Rows are written by Append, so a bad payload means outside tampering.
			return nil, fmt.Errorf("decode event %d: %w", row.ID, err)
		}
		out = append(out, events.Envelope{
			ID:         row.ID,
			OccurredAt: row.OccurredAt,
			ClientIP:   derefString(row.IP),
			UserAgent:  derefString(row.UserAgent),
			Payload:    payload,
		})
	}
	return out, nil
}

func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer metrics.ObserveStoreOp("delete", time.Now())
	q, err := s.queries()
	if err != nil {
		return 0, err
	}
	return q.DeleteEventsBefore(ctx, cutoff)
}

// Count reports how many envelopes are stored in total.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	q, err := s.queries()
	if err != nil {
		return 0, err
	}
	return q.CountEvents(ctx)
}

func (s *SQLStore) Truncate(ctx context.Context) error {
	defer metrics.ObserveStoreOp("truncate", time.Now())
	q, err := s.queries()
	if err != nil {
		return err
	}
	return q.TruncateEvents(ctx)
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

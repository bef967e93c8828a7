package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sqliteTimestampLayout is fixed width so lexical order equals time order.
const sqliteTimestampLayout = "2006-01-02T15:04:05.000000000Z"

type queryer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db      queryer
	dialect Dialect
}

func NewQueries(db queryer, dialect Dialect) *Queries {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) InsertEvent(ctx context.Context, in EventRow) (int64, error) {
	payload := in.PayloadJSON
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}
	var id int64
	err := q.db.QueryRowContext(ctx,
		q.bind(`INSERT INTO events(occurred_at, ip, user_agent, payload) VALUES(?, ?, ?, ?) RETURNING id`),
		q.timeArg(in.OccurredAt), in.IP, in.UserAgent, payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// ListEvents returns events ordered by (occurred_at, id), newest first unless
// Ascending is set. A non-positive Limit returns the whole range.
func (q *Queries) ListEvents(ctx context.Context, params ListEventsParams) ([]EventRow, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT id, occurred_at, ip, user_agent, `)
	if q.dialect == DialectPostgres {
		b.WriteString(`payload::text`)
	} else {
		b.WriteString(`payload`)
	}
	b.WriteString(` FROM events`)
	if params.Since != nil {
		b.WriteString(` WHERE occurred_at >= ?`)
		args = append(args, q.timeArg(*params.Since))
	}
	if params.Ascending {
		b.WriteString(` ORDER BY occurred_at ASC, id ASC`)
	} else {
		b.WriteString(` ORDER BY occurred_at DESC, id DESC`)
	}
	if params.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, params.Limit)
	}

	rows, err := q.db.QueryContext(ctx, q.bind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []EventRow{}
	for rows.Next() {
		var (
			row        EventRow
			occurredAt any
		)
		if err := rows.Scan(&row.ID, &occurredAt, &row.IP, &row.UserAgent, &row.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ts, err := parseTimeValue(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan event %d occurred_at: %w", row.ID, err)
		}
		row.OccurredAt = ts
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}

func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, q.bind(`DELETE FROM events WHERE occurred_at < ?`), q.timeArg(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete events before %s: %w", cutoff.UTC().Format(time.RFC3339), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete events rows affected: %w", err)
	}
	return n, nil
}

// TruncateEvents wipes the log and restarts id assignment.
func (q *Queries) TruncateEvents(ctx context.Context) error {
	if q.dialect == DialectPostgres {
		if _, err := q.db.ExecContext(ctx, `TRUNCATE TABLE events RESTART IDENTITY`); err != nil {
			return fmt.Errorf("truncate events: %w", err)
		}
		return nil
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("truncate events: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'events'`); err != nil {
		return fmt.Errorf("reset events sequence: %w", err)
	}
	return nil
}

func (q *Queries) timeArg(t time.Time) any {
	if q.dialect == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimestampLayout)
}

func (q *Queries) bind(query string) string {
	return rebind(q.dialect, query)
}

// rebind rewrites ? placeholders into $n for postgres.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func parseTimeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimeText(t)
	case []byte:
		return parseTimeText(string(t))
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is null")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTimeText(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

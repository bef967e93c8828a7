package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupDB(t *testing.T) (*Queries, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := Open(DefaultOptions(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := RunMigrations(context.Background(), db, DialectSQLite); err != nil {
		_ = db.Close()
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return NewQueries(db, DialectSQLite), func() { _ = db.Close() }
}

func strPtr(v string) *string { return &v }

func TestQueriesInsertAndListEvents(t *testing.T) {
	q, cleanup := setupDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ids := make([]int64, 0, 3)
	for i, typ := range []string{"pageview", "view_product", "add_to_cart"} {
		id, err := q.InsertEvent(ctx, EventRow{
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
			IP:          strPtr("203.0.113.0"),
			UserAgent:   strPtr("test-agent"),
			PayloadJSON: `{"type":"` + typ + `"}`,
		})
		if err != nil {
			t.Fatalf("InsertEvent(%s) error = %v", typ, err)
		}
		ids = append(ids, id)
	}
	if !(ids[0] < ids[1] && ids[1] < ids[2]) {
		t.Fatalf("expected increasing ids, got %v", ids)
	}

	rows, err := q.ListEvents(ctx, ListEventsParams{})
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != ids[2] || rows[2].ID != ids[0] {
		t.Fatalf("expected newest-first order, got %d..%d", rows[0].ID, rows[2].ID)
	}
	if !rows[0].OccurredAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected occurred_at %v", rows[0].OccurredAt)
	}
	if rows[0].IP == nil || *rows[0].IP != "203.0.113.0" {
		t.Fatalf("unexpected ip %v", rows[0].IP)
	}
	if rows[0].PayloadJSON != `{"type":"add_to_cart"}` {
		t.Fatalf("unexpected payload %q", rows[0].PayloadJSON)
	}

	since := base.Add(time.Minute)
	rows, err = q.ListEvents(ctx, ListEventsParams{Since: &since, Ascending: true})
	if err != nil {
		t.Fatalf("ListEvents(since) error = %v", err)
	}
	if len(rows) != 2 || rows[0].ID != ids[1] || rows[1].ID != ids[2] {
		t.Fatalf("unexpected windowed rows: %#v", rows)
	}

	rows, err = q.ListEvents(ctx, ListEventsParams{Limit: 1})
	if err != nil {
		t.Fatalf("ListEvents(limit) error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != ids[2] {
		t.Fatalf("expected only the newest row, got %#v", rows)
	}
}

func TestQueriesTiesBreakByID(t *testing.T) {
	q, cleanup := setupDB(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	first, err := q.InsertEvent(ctx, EventRow{OccurredAt: ts, PayloadJSON: `{"n":1}`})
	if err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	second, err := q.InsertEvent(ctx, EventRow{OccurredAt: ts, PayloadJSON: `{"n":2}`})
	if err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}

	rows, err := q.ListEvents(ctx, ListEventsParams{})
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if rows[0].ID != second || rows[1].ID != first {
		t.Fatalf("expected id tie-break newest-first, got %d then %d", rows[0].ID, rows[1].ID)
	}
}

func TestQueriesEmptyPayloadDefaultsToObject(t *testing.T) {
	q, cleanup := setupDB(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := q.InsertEvent(ctx, EventRow{OccurredAt: time.Now()}); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	rows, err := q.ListEvents(ctx, ListEventsParams{})
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if rows[0].PayloadJSON != "{}" || rows[0].IP != nil || rows[0].UserAgent != nil {
		t.Fatalf("unexpected defaults: %#v", rows[0])
	}
}

func TestQueriesDeleteAndTruncate(t *testing.T) {
	q, cleanup := setupDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		if _, err := q.InsertEvent(ctx, EventRow{OccurredAt: now.Add(-age), PayloadJSON: `{}`}); err != nil {
			t.Fatalf("InsertEvent() error = %v", err)
		}
	}

	deleted, err := q.DeleteEventsBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteEventsBefore() error = %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", deleted)
	}
	n, err := q.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining row, got %d", n)
	}

	if err := q.TruncateEvents(ctx); err != nil {
		t.Fatalf("TruncateEvents() error = %v", err)
	}
	if n, _ := q.CountEvents(ctx); n != 0 {
		t.Fatalf("expected empty table after truncate, got %d", n)
	}
	id, err := q.InsertEvent(ctx, EventRow{OccurredAt: now, PayloadJSON: `{}`})
	if err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id sequence restart at 1, got %d", id)
	}
}

func TestParseTimeValue(t *testing.T) {
	want := time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)
	for _, v := range []any{want, want.Format(sqliteTimestampLayout), []byte(want.Format(time.RFC3339Nano))} {
		got, err := parseTimeValue(v)
		if err != nil {
			t.Fatalf("parseTimeValue(%T) error = %v", v, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parseTimeValue(%T) = %v, want %v", v, got, want)
		}
	}
	if _, err := parseTimeValue(nil); err == nil {
		t.Fatalf("expected error for null timestamp")
	}
	if _, err := parseTimeValue(42); err == nil {
		t.Fatalf("expected error for integer timestamp")
	}
}

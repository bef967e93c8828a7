package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dbpkg "github.com/benedict2310/storepulse/internal/db"
	"github.com/benedict2310/storepulse/internal/events"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	st, err := Open(context.Background(), dbpkg.DefaultOptions(filepath.Join(t.TempDir(), "events.sqlite")))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAppendAndRangeWindowed(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	ages := []time.Duration{400 * 24 * time.Hour, 20 * 24 * time.Hour, 3 * 24 * time.Hour, time.Hour}
	for i, age := range ages {
		_, err := st.Append(ctx, events.Envelope{
			OccurredAt: now.Add(-age),
			ClientIP:   "198.51.100.0",
			UserAgent:  "Mozilla/5.0",
			Payload:    events.Payload{"type": "pageview", "n": float64(i)},
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	cases := []struct {
		raw  string
		want int
	}{
		{raw: "1", want: 1},
		{raw: "7", want: 2},
		{raw: "30", want: 3},
		{raw: "365", want: 3},
		{raw: "all", want: 4},
	}
	for _, tc := range cases {
		w, err := events.ParseListWindow(tc.raw)
		if err != nil {
			t.Fatalf("ParseListWindow(%q) error = %v", tc.raw, err)
		}
		got, err := st.Range(ctx, RangeQuery{Window: w, Now: now})
		if err != nil {
			t.Fatalf("Range(%s) error = %v", tc.raw, err)
		}
		if len(got) != tc.want {
			t.Fatalf("Range(%s) returned %d envelopes, want %d", tc.raw, len(got), tc.want)
		}
	}

	all, err := st.Range(ctx, RangeQuery{Window: events.AllTime, Now: now})
	if err != nil {
		t.Fatalf("Range(all) error = %v", err)
	}
	if all[0].Payload.Text("n") != "3" || all[3].Payload.Text("n") != "0" {
		t.Fatalf("expected newest-first order, got first n=%s last n=%s", all[0].Payload.Text("n"), all[3].Payload.Text("n"))
	}
	if all[0].ClientIP != "198.51.100.0" || all[0].UserAgent != "Mozilla/5.0" {
		t.Fatalf("unexpected envelope metadata: %#v", all[0])
	}

	chrono, err := st.Range(ctx, RangeQuery{Window: events.AllTime, Now: now, Order: Chronological, Limit: 2})
	if err != nil {
		t.Fatalf("Range(chronological) error = %v", err)
	}
	if len(chrono) != 2 || chrono[0].Payload.Text("n") != "0" {
		t.Fatalf("unexpected chronological read: %#v", chrono)
	}
}

func TestAppendRequiresTimestamp(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.Append(context.Background(), events.Envelope{Payload: events.Payload{"type": "pageview"}}); err == nil {
		t.Fatalf("expected error for zero occurredAt")
	}
}

func TestConcurrentAppends(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := st.Append(ctx, events.Envelope{OccurredAt: now, Payload: events.Payload{"type": "timeonpage"}}); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent Append() error = %v", err)
	}

	got, err := st.Range(ctx, RangeQuery{Window: events.AllTime})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != writers*perWriter {
		t.Fatalf("expected %d envelopes, got %d", writers*perWriter, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].ID <= got[i].ID {
			t.Fatalf("expected strictly decreasing ids for equal timestamps at %d", i)
		}
	}
}

func TestClosedStoreErrors(t *testing.T) {
	st := openTestStore(t)
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := st.Append(context.Background(), events.Envelope{OccurredAt: time.Now()}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := st.Range(context.Background(), RangeQuery{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestTruncateAndDeleteBefore(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, ts := range []time.Time{now.Add(-48 * time.Hour), now} {
		if _, err := st.Append(ctx, events.Envelope{OccurredAt: ts, Payload: events.Payload{}}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	deleted, err := st.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteBefore() = %d, %v; want 1, nil", deleted, err)
	}
	if err := st.Truncate(ctx); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}
	got, err := st.Range(ctx, RangeQuery{Window: events.AllTime})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty store after truncate, got %d", len(got))
	}
}

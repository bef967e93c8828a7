package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	dbpkg "github.com/benedict2310/storepulse/internal/db"
	"github.com/benedict2310/storepulse/internal/dedup"
	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/store"
)

var errStoreDown = errors.New("store is down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore rejects every operation.
type failingStore struct{}

func (failingStore) Append(context.Context, events.Envelope) (int64, error) {
	return 0, errStoreDown
}

func (failingStore) Range(context.Context, store.RangeQuery) ([]events.Envelope, error) {
	return nil, errStoreDown
}

func (failingStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, errStoreDown
}

func (failingStore) Truncate(context.Context) error {
	return errStoreDown
}

// failingFilter reports an error for every lookup.
type failingFilter struct{}

func (failingFilter) Seen(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("filter unavailable")
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.DataDir = t.TempDir()
	cfg.RateLimit.Requests = 0
	cfg.AdminSecret = "s3cret"
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a server around a real sqlite store without binding a
// listener. The clock starts at a fixed instant.
func newTestServer(t *testing.T, cfg Config) (*Server, *store.SQLStore, *fakeClock) {
	t.Helper()
	srv, err := New(cfg, discardLogger(), "v-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	st, err := store.Open(context.Background(), dbpkg.DefaultOptions(filepath.Join(t.TempDir(), "events.sqlite")))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	clock := newFakeClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	srv.nowFn = clock.Now
	srv.store = st
	srv.memFilter = dedup.NewMemory(cfg.Dedup.Window)
	srv.filter = srv.memFilter
	return srv, st, clock
}

func serve(srv *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func allEvents(t *testing.T, st store.Store) []events.Envelope {
	t.Helper()
	envs, err := st.Range(context.Background(), store.RangeQuery{Window: events.AllTime, Order: store.Chronological})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	return envs
}

func seedEvent(t *testing.T, st store.Store, at time.Time, p events.Payload) {
	t.Helper()
	if _, err := st.Append(context.Background(), events.Envelope{OccurredAt: at, ClientIP: "192.0.2.0", Payload: p}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d body=%s", want, rec.Code, rec.Body.String())
	}
}

package server

import (
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewRequestIDUniqueAndSortedByTime(t *testing.T) {
	first := newRequestID(time.Unix(1700000000, 0))
	second := newRequestID(time.Unix(1700000001, 0))
	if first == second {
		t.Fatalf("expected unique IDs, got identical %q", first)
	}
	ids := []string{second, first}
	sort.Strings(ids)
	if ids[0] != first || ids[1] != second {
		t.Fatalf("expected lexicographic time order, got %#v", ids)
	}
	if _, err := ulid.Parse(first); err != nil {
		t.Fatalf("expected a valid ULID, got %q: %v", first, err)
	}
}

func TestRequestIDHeaderOnEveryResponse(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig(t))
	seen := map[string]bool{}
	for _, target := range []string{"/healthz", "/api/events?days=bogus", "/admin/export", "/missing"} {
		rec := serve(srv, http.MethodGet, target, "", nil)
		id := rec.Header().Get(requestIDHeader)
		if id == "" {
			t.Fatalf("%s: missing %s header", target, requestIDHeader)
		}
		if seen[id] {
			t.Fatalf("%s: duplicate request id %q", target, id)
		}
		seen[id] = true
	}
}

package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/benedict2310/storepulse/internal/metrics"
)

// Memory is a process-local Filter. Entries older than the window are
// removed by Sweep.
type Memory struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{window: window, seen: make(map[string]time.Time)}
}

func (m *Memory) Seen(_ context.Context, key string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.seen[key]; ok && now.Sub(last) < m.window {
		return true, nil
	}
	m.seen[key] = now
	metrics.DedupEntries.Set(float64(len(m.seen)))
	return false, nil
}

// Sweep evicts keys whose last acceptance is at least one window old and
// returns how many were removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, last := range m.seen {
		if now.Sub(last) >= m.window {
			delete(m.seen, key)
			removed++
		}
	}
	metrics.DedupEntries.Set(float64(len(m.seen)))
	return removed
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

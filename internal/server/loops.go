package server

import (
	"context"
	"time"

	"github.com/benedict2310/storepulse/internal/metrics"
)

const (
	retentionCleanupInterval = time.Hour
	retentionCleanupTimeout  = 30 * time.Second
)

// loop runs fn on a ticker until stopped.
type loop struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func startLoop(interval time.Duration, runFirst bool, fn func()) *loop {
	l := &loop{stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	go func() {
		defer close(l.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if runFirst {
			fn()
		}
		for {
			select {
			case <-ticker.C:
				fn()
			case <-l.stopCh:
				return
			}
		}
	}()
	return l
}

// stop is safe on a nil loop.
func (l *loop) stop(ctx context.Context) error {
	if l == nil {
		return nil
	}
	close(l.stopCh)
	select {
	case <-l.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) startRetentionLoop() {
	if s.cfg.RetentionDays <= 0 || s.store == nil {
		return
	}
	s.retention = startLoop(retentionCleanupInterval, true, s.runRetentionCleanup)
}

func (s *Server) runRetentionCleanup() {
	days := s.cfg.RetentionDays
	if days <= 0 || s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), retentionCleanupTimeout)
	defer cancel()

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	deleted, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn("retention cleanup failed", "retention_days", days, "error", err)
		return
	}
	metrics.RetentionDeleted.Add(float64(deleted))
	if deleted > 0 {
		s.logger.Info("retention cleanup complete", "retention_days", days, "deleted", deleted)
	}
}

func (s *Server) startDedupSweepLoop() {
	if s.memFilter == nil || s.cfg.Dedup.SweepInterval <= 0 {
		return
	}
	s.sweeper = startLoop(s.cfg.Dedup.SweepInterval, false, s.runDedupSweep)
}

func (s *Server) runDedupSweep() {
	if s.memFilter == nil {
		return
	}
	if removed := s.memFilter.Sweep(s.now()); removed > 0 {
		s.logger.Debug("dedup sweep complete", "removed", removed, "remaining", s.memFilter.Len())
	}
}

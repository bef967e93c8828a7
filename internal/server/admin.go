package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/export"
	"github.com/benedict2310/storepulse/internal/store"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return
	}
	envs, err := s.store.Range(r.Context(), store.RangeQuery{
		Window: events.AllTime,
		Order:  store.Chronological,
	})
	if err != nil {
		s.writeInternalAPIError(w, r, "export failed", err)
		return
	}

	// Buffer so a late encode error can still become a 500.
	var buf bytes.Buffer
	if err := export.Write(&buf, envs); err != nil {
		s.writeInternalAPIError(w, r, "export failed", err)
		return
	}

	filename := fmt.Sprintf("events-%s.csv", s.now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	s.logger.Info("events exported", "rows", len(envs), "request_id", requestIDFromContext(r.Context()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return
	}
	if err := s.store.Truncate(r.Context()); err != nil {
		s.writeInternalAPIError(w, r, "reset failed", err)
		return
	}
	s.logger.Warn("event store reset", "remote_addr", r.RemoteAddr, "request_id", requestIDFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

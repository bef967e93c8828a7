package server

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/benedict2310/storepulse/internal/dedup"
	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/store"
	"github.com/benedict2310/storepulse/internal/summary"
)

type eventsResponse struct {
	Window string            `json:"window"`
	Order  string            `json:"order"`
	Limit  int               `json:"limit"`
	Count  int               `json:"count"`
	Events []events.Envelope `json:"events"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return
	}

	query := r.URL.Query()
	window, err := events.ParseListWindow(query.Get("days"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid query parameters", []string{fmt.Sprintf("invalid days: %v", err)})
		return
	}
	limit, err := s.parseListLimit(query.Get("limit"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid query parameters", []string{err.Error()})
		return
	}
	order := strings.ToLower(strings.TrimSpace(query.Get("order")))
	switch order {
	case "":
		order = "desc"
	case "desc", "asc":
	default:
		writeAPIError(w, http.StatusBadRequest, "invalid query parameters", []string{"order must be asc or desc"})
		return
	}

	// Always read newest-first so the list dedup keeps the newest view;
	// ascending output is the same page reversed.
	envs, err := s.store.Range(r.Context(), store.RangeQuery{
		Window: window,
		Now:    s.now(),
		Limit:  limit,
		Order:  store.NewestFirst,
	})
	if err != nil {
		s.writeInternalAPIError(w, r, "list events failed", err, "window", window.Label, "limit", limit)
		return
	}
	envs = dedup.CollapseListViews(envs)
	if order == "asc" {
		slices.Reverse(envs)
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Window: window.Label,
		Order:  order,
		Limit:  limit,
		Count:  len(envs),
		Events: envs,
	})
}

func (s *Server) parseListLimit(raw string) (int, error) {
	defaultLimit, maxLimit := s.cfg.listLimits()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLimit, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: %w", err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return min(v, maxLimit), nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return
	}

	window, err := events.ParseSummaryWindow(r.URL.Query().Get("range"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid query parameters", []string{fmt.Sprintf("invalid range: %v", err)})
		return
	}

	now := s.now()
	envs, err := s.store.Range(r.Context(), store.RangeQuery{
		Window: window,
		Now:    now,
		Limit:  s.cfg.Summary.MaxRows,
		Order:  store.NewestFirst,
	})
	if err != nil {
		s.writeInternalAPIError(w, r, "summary failed", err, "range", window.Label)
		return
	}
	writeJSON(w, http.StatusOK, summary.Build(window, now, envs))
}

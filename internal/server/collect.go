package server

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/benedict2310/storepulse/internal/dedup"
	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/metrics"
)

type collectSkipResponse struct {
	OK      bool   `json:"ok"`
	Skipped string `json:"skipped"`
}

// handleCollect stores one tracker event. Once the body parses, the caller
// always sees success: storage failures are logged and the event is lost.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.maxBodyBytes())
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if isMaxBytesError(err) {
			metrics.IngestRejected.WithLabelValues("too_large").Inc()
			writeAPIError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		metrics.IngestRejected.WithLabelValues("read_error").Inc()
		writeAPIError(w, http.StatusBadRequest, "invalid request body", []string{err.Error()})
		return
	}
	payload, err := events.DecodePayload(bytes.NewReader(body))
	if err != nil {
		metrics.IngestRejected.WithLabelValues("malformed").Inc()
		writeAPIError(w, http.StatusBadRequest, "invalid request body", []string{err.Error()})
		return
	}

	ctx := r.Context()
	now := s.now().UTC()
	eventType := payload.Type()
	label := typeLabel(eventType)

	if eventType == events.TypeAddToCart && s.filter != nil {
		dup, err := s.filter.Seen(ctx, dedup.AddToCartKey(payload), now)
		if err != nil {
			s.logger.WarnContext(ctx, "add_to_cart dedup check failed", "error", err, "request_id", requestIDFromContext(ctx))
		} else if dup {
			metrics.EventsIngested.WithLabelValues(metrics.OutcomeDuplicate, label).Inc()
			writeJSON(w, http.StatusOK, collectSkipResponse{OK: true, Skipped: "duplicate"})
			return
		}
	}

	if s.store == nil {
		s.logger.ErrorContext(ctx, "event dropped: store is not open", "type", eventType, "request_id", requestIDFromContext(ctx))
		metrics.EventsIngested.WithLabelValues(metrics.OutcomeStoreFailed, label).Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	env := events.Envelope{
		OccurredAt: now,
		ClientIP:   events.CoarsenIP(remoteIP(r)),
		UserAgent:  r.UserAgent(),
		Payload:    payload,
	}
	if _, err := s.store.Append(ctx, env); err != nil {
		s.logger.ErrorContext(ctx, "store event failed", "error", err, "type", eventType, "request_id", requestIDFromContext(ctx))
		metrics.EventsIngested.WithLabelValues(metrics.OutcomeStoreFailed, label).Inc()
	} else {
		metrics.EventsIngested.WithLabelValues(metrics.OutcomeStored, label).Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

// typeLabel keeps the metrics type label to the known discriminators.
func typeLabel(eventType string) string {
	switch {
	case eventType == "":
		return "none"
	case events.KnownType(eventType):
		return eventType
	default:
		return "other"
	}
}

func remoteIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

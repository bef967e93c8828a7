// Package export reads and writes the flat CSV backup of the event log.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benedict2310/storepulse/internal/events"
)

// Header is the first record of every export.
var Header = []string{"occurred_at", "ip", "user_agent", "payload"}

// Write emits one row per envelope in the given order.
func Write(w io.Writer, envs []events.Envelope) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, env := range envs {
		payload, err := env.Payload.Encode()
		if err != nil {
			return fmt.Errorf("write event %d: %w", env.ID, err)
		}
		row := []string{
			env.OccurredAt.UTC().Format(time.RFC3339Nano),
			env.ClientIP,
			env.UserAgent,
			payload,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write event %d: %w", env.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

// Read parses an export produced by Write. Envelopes come back without IDs;
// a store assigns fresh ones when they are appended.
func Read(r io.Reader) ([]events.Envelope, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read export: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}
	for i, name := range Header {
		if strings.TrimSpace(strings.TrimPrefix(head[i], "\ufeff")) != name {
			return nil, fmt.Errorf("read export header: column %d is %q, want %q", i+1, head[i], name)
		}
	}

	var out []events.Envelope
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read export: %w", err)
		}
		line, _ := cr.FieldPos(0)
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("read export line %d: invalid occurred_at %q", line, rec[0])
		}
		payload, err := events.ParsePayload(rec[3])
		if err != nil {
			return nil, fmt.Errorf("read export line %d: %w", line, err)
		}
		out = append(out, events.Envelope{
			OccurredAt: ts.UTC(),
			ClientIP:   rec[1],
			UserAgent:  rec[2],
			Payload:    payload,
		})
	}
	return out, nil
}

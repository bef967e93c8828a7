package events

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownWindow = errors.New("unknown window")

const day = 24 * time.Hour

// Window is a trailing time range ending at the moment of the read.
// A zero Span means all time.
type Window struct {
	Label string
	Span  time.Duration
}

var (
	AllTime = Window{Label: "all"}

	DefaultListWindow    = Window{Label: "7", Span: 7 * day}
	DefaultSummaryWindow = Window{Label: "7d", Span: 7 * day}
)

var listWindows = map[string]Window{
	"1":   {Label: "1", Span: day},
	"7":   DefaultListWindow,
	"30":  {Label: "30", Span: 30 * day},
	"90":  {Label: "90", Span: 90 * day},
	"180": {Label: "180", Span: 180 * day},
	"365": {Label: "365", Span: 365 * day},
	"all": AllTime,
}

var summaryWindows = map[string]Window{
	"24h":  {Label: "24h", Span: day},
	"1d":   {Label: "1d", Span: day},
	"7d":   DefaultSummaryWindow,
	"30d":  {Label: "30d", Span: 30 * day},
	"90d":  {Label: "90d", Span: 90 * day},
	"180d": {Label: "180d", Span: 180 * day},
	"365d": {Label: "365d", Span: 365 * day},
}

// ParseListWindow resolves the day-count selector used by the event listing.
func ParseListWindow(raw string) (Window, error) {
	return lookupWindow(listWindows, DefaultListWindow, raw)
}

// ParseSummaryWindow resolves the range selector used by the summary.
func ParseSummaryWindow(raw string) (Window, error) {
	return lookupWindow(summaryWindows, DefaultSummaryWindow, raw)
}

func lookupWindow(set map[string]Window, fallback Window, raw string) (Window, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return fallback, nil
	}
	w, ok := set[key]
	if !ok {
		return Window{}, fmt.Errorf("%w %q", ErrUnknownWindow, raw)
	}
	return w, nil
}

// Since returns the inclusive lower bound of the window, or nil for all time.
func (w Window) Since(now time.Time) *time.Time {
	if w.Span <= 0 {
		return nil
	}
	since := now.Add(-w.Span).UTC()
	return &since
}

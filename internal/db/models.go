package db

import "time"

type EventRow struct {
	ID          int64
	OccurredAt  time.Time
	IP          *string
	UserAgent   *string
	PayloadJSON string
}

type ListEventsParams struct {
	// Since is inclusive; nil reads from the beginning of the log.
	Since     *time.Time
	Limit     int
	Ascending bool
}

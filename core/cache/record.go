package cache

import (
	"encoding/json"
	"time"
)

// MonthRecord is the on-disk shape of one month of session history: the raw
// session records plus the wall-clock instant they were retrieved. The
// retrieval timestamp, not the content, decides whether the record can be
// trusted later.
type MonthRecord struct {
	Sessions      []json.RawMessage `json:"sessions"`
	DateRetrieved time.Time         `json:"date_retrieved"`
}

// Final reports whether the record is trustworthy without a re-fetch: it was
// retrieved at or after the first instant of the month following the one it
// covers, so the vendor can no longer add sessions to it. Provisional records
// stay on disk but force the fetch path to run.
func (r MonthRecord) Final(year int, month time.Month, loc *time.Location) bool {
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	return !r.DateRetrieved.Before(next)
}

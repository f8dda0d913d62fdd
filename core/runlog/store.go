// Package runlog persists the outcome of every charge-control invocation.
// The runs command reads these records back; nothing else in the charge path
// depends on them, so a broken store degrades to a logged warning.
package runlog

import (
	"context"
	"time"
)

// Record captures one charge run from gate decision to terminal outcome.
type Record struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Attempts   int       `json:"attempts"`
	StationID  string    `json:"station_id,omitempty"`
	ChargerID  string    `json:"charger_id,omitempty"`
}

// Query defines filters for retrieving records. Zero-value fields match
// everything; time bounds apply to StartedAt.
type Query struct {
	Start   time.Time
	End     time.Time
	Outcome string
}

// Store persists Records and supports querying, oldest first.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.StartedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.StartedAt.After(q.End) {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	return true
}

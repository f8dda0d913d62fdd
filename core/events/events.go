// Package events defines the charge-run lifecycle events emitted on the
// event bus. The metrics collector and the MQTT announcer subscribe; the
// charge controller and the composition root publish.
//
// Available event types:
//   - StatusEvent: a live charger snapshot was observed
//   - WaitEvent: one poll while waiting out a scheduled session
//   - StartEvent: one start command was issued
//   - OutcomeEvent: terminal result of a charge run
package events

import (
	"time"

	"github.com/homecharge/homecharge/core/model"
)

// Event is the union of charge-run lifecycle events. Kind names the event on
// announcement topics and in structured logs.
type Event interface {
	Kind() string
}

// StatusEvent carries a live charger snapshot.
type StatusEvent struct {
	Status model.ChargeStatus
	Time   time.Time
}

func (StatusEvent) Kind() string { return "status" }

// WaitEvent marks one poll of the wait-for-scheduled-charge loop.
type WaitEvent struct {
	Attempt int
	State   model.ChargingState
	Time    time.Time
}

func (WaitEvent) Kind() string { return "wait" }

// StartEvent marks one issued start command. TimedOut is set when the vendor
// reported the ambiguous allotted-time failure; Confirmed when a follow-up
// poll showed the session charging anyway.
type StartEvent struct {
	Attempt   int
	TimedOut  bool
	Confirmed bool
	Time      time.Time
}

func (StartEvent) Kind() string { return "start" }

// OutcomeEvent is the terminal result of one charge-control invocation.
type OutcomeEvent struct {
	RunID     string
	Outcome   string
	Reason    string
	Attempts  int
	StationID string
	Duration  time.Duration
	Time      time.Time
}

func (OutcomeEvent) Kind() string { return "outcome" }

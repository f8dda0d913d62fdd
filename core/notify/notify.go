// Package notify defines the outbound announcement port. The MQTT
// implementation in infra/mqtt publishes charge-run outcomes and live charger
// state for home-automation consumers; announcements are fire-and-forget and
// never affect the charge path.
package notify

import (
	"github.com/homecharge/homecharge/core/events"
	"github.com/homecharge/homecharge/core/model"
)

// Announcer publishes charge-run information to an external channel.
type Announcer interface {
	// AnnounceOutcome publishes the terminal result of a charge run.
	AnnounceOutcome(ev events.OutcomeEvent) error
	// AnnounceStatus publishes a live charger snapshot.
	AnnounceStatus(status model.ChargeStatus) error
	Close() error
}

// NopAnnouncer discards every announcement.
type NopAnnouncer struct{}

func (NopAnnouncer) AnnounceOutcome(events.OutcomeEvent) error { return nil }
func (NopAnnouncer) AnnounceStatus(model.ChargeStatus) error   { return nil }
func (NopAnnouncer) Close() error                              { return nil }

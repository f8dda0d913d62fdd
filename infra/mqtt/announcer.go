package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/homecharge/homecharge/core/events"
	"github.com/homecharge/homecharge/core/model"
	"github.com/homecharge/homecharge/core/notify"
	"github.com/homecharge/homecharge/infra/logger"
)

// Publisher is the transport the announcer writes to.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Announcer publishes charge-run outcomes and charger state as retained JSON
// messages, so a consumer that connects later still sees the latest values.
type Announcer struct {
	pub    Publisher
	prefix string
	log    logger.Logger
}

var _ notify.Announcer = (*Announcer)(nil)

// NewAnnouncer wraps pub. Topics are <prefix>/run and <prefix>/status; prefix
// defaults to "homecharge".
func NewAnnouncer(pub Publisher, prefix string, log logger.Logger) *Announcer {
	if prefix == "" {
		prefix = "homecharge"
	}
	if log == nil {
		log = logger.New("mqtt-announcer")
	}
	return &Announcer{pub: pub, prefix: prefix, log: log}
}

// AnnounceOutcome publishes the terminal result of a charge run.
func (a *Announcer) AnnounceOutcome(ev events.OutcomeEvent) error {
	msg := struct {
		RunID     string  `json:"run_id"`
		Outcome   string  `json:"outcome"`
		Reason    string  `json:"reason,omitempty"`
		Attempts  int     `json:"attempts"`
		StationID string  `json:"station_id"`
		DurationS float64 `json:"duration_s"`
		Time      string  `json:"time"`
	}{
		RunID:     ev.RunID,
		Outcome:   ev.Outcome,
		Reason:    ev.Reason,
		Attempts:  ev.Attempts,
		StationID: ev.StationID,
		DurationS: ev.Duration.Seconds(),
		Time:      ev.Time.Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	return a.pub.Publish(a.prefix+"/run", payload, true)
}

// AnnounceStatus publishes a live charger snapshot.
func (a *Announcer) AnnounceStatus(status model.ChargeStatus) error {
	msg := struct {
		DeviceID  string `json:"device_id"`
		Connected bool   `json:"connected"`
		PluggedIn bool   `json:"plugged_in"`
		State     string `json:"state"`
		Charging  bool   `json:"charging"`
	}{
		DeviceID:  status.DeviceID,
		Connected: status.Connected,
		PluggedIn: status.PluggedIn,
		State:     string(status.State),
		Charging:  status.Charging(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return a.pub.Publish(a.prefix+"/status", payload, true)
}

// Close disconnects the underlying client when it owns one.
func (a *Announcer) Close() error {
	if d, ok := a.pub.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	return nil
}

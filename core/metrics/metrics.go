package metrics

import "time"

// APIRequestEvent is one round trip to the vendor API.
type APIRequestEvent struct {
	Op       string
	Duration time.Duration
	Failed   bool
	Time     time.Time
}

// CacheLookupEvent is one cache consultation. Tier names the cache layer that
// answered: "month", "session_file" or "flat".
type CacheLookupEvent struct {
	Tier string
	Hit  bool
	Time time.Time
}

// MonthSyncEvent summarizes one month fetch: how many pages were walked and
// how many in-window sessions came back, and whether the final cache
// short-circuited the network entirely.
type MonthSyncEvent struct {
	Year      int
	Month     time.Month
	Pages     int
	Sessions  int
	FromCache bool
	Time      time.Time
}

// ChargeRunEvent is the outcome of one charge-control invocation.
type ChargeRunEvent struct {
	Outcome   string
	Reason    string
	Attempts  int
	StationID string
	Duration  time.Duration
	Time      time.Time
}

// Sink records operational events for observability purposes.
type Sink interface {
	RecordAPIRequest(ev APIRequestEvent) error
	RecordCacheLookup(ev CacheLookupEvent) error
	RecordMonthSync(ev MonthSyncEvent) error
	RecordChargeRun(ev ChargeRunEvent) error
}

// SessionEnergyEvent carries one session's delivered energy for dashboards.
type SessionEnergyEvent struct {
	SessionID string
	DeviceID  string
	Home      bool
	EnergyKWh float64
	Start     time.Time
}

// SessionEnergyRecorder is implemented by sinks able to store per-session
// energy points (time-series backends; a counter-based sink has no sensible
// representation for them).
type SessionEnergyRecorder interface {
	RecordSessionEnergy(evs []SessionEnergyEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAPIRequest(APIRequestEvent) error   { return nil }
func (NopSink) RecordCacheLookup(CacheLookupEvent) error { return nil }
func (NopSink) RecordMonthSync(MonthSyncEvent) error     { return nil }
func (NopSink) RecordChargeRun(ChargeRunEvent) error     { return nil }

// Ensure NopSink implements SessionEnergyRecorder.
func (NopSink) RecordSessionEnergy([]SessionEnergyEvent) error { return nil }

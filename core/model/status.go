package model

// ChargingState describes a charger's live activity as reported by the
// vendor. The set is open: unrecognized wire values pass through unchanged so
// callers comparing against the named states treat them as "not charging".
type ChargingState string

const (
	StateCharging    ChargingState = "CHARGING"
	StateNotCharging ChargingState = "NOT_CHARGING"
	StateUnknown     ChargingState = "UNKNOWN"
)

// ChargeStatus is a point-in-time snapshot of one charger. It is fetched
// fresh on every poll and must never be cached across polls: a stale snapshot
// could start a session on top of an active one.
type ChargeStatus struct {
	DeviceID  string
	Connected bool // charger reachable by the vendor backend
	PluggedIn bool // vehicle connected to the charger
	State     ChargingState
}

// Charging reports whether a session is actively delivering power.
func (s ChargeStatus) Charging() bool {
	return s.State == StateCharging
}

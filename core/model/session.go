package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Session represents one charging session reported by the vendor's history
// feed. Only the handful of fields the engine reasons about are normalized;
// the full source record is kept in Raw so cache files and downstream
// consumers (classifiers, dashboards) see exactly what the API returned.
type Session struct {
	ID          string
	StartTime   time.Time // zero when the source value was missing or unparseable
	EndTime     time.Time // zero while the session is still open
	EnergyKWh   float64
	DeviceID    string
	HomeCharger bool
	Raw         json.RawMessage
}

// Final reports whether the remote system has closed the session. Closed
// sessions never change again, open ones may grow on the next fetch.
func (s Session) Final() bool {
	return !s.EndTime.IsZero()
}

// sessionFields lists the accepted source keys per logical field, in priority
// order. API revisions disagree on casing and naming, so normalization walks
// each list and takes the first key present instead of branching ad hoc.
var sessionFields = struct {
	ID     []string
	Start  []string
	End    []string
	Energy []string
	Device []string
	Home   []string
}{
	ID:     []string{"session_id", "sessionId"},
	Start:  []string{"start_time", "startTime"},
	End:    []string{"end_time", "endTime"},
	Energy: []string{"energy_kwh", "energyKwh"},
	Device: []string{"device_id", "deviceId"},
	Home:   []string{"home_charger", "homeCharger"},
}

// timeLayouts are tried in order for textual timestamps that are not RFC3339.
// Zone-less layouts are interpreted in the venue's location.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeSession builds a Session from one raw history record. Timestamps
// without zone information are interpreted in loc, the charging venue's
// timezone. A record without any id key is rejected; a missing or unparseable
// start time is tolerated and leaves StartTime zero so callers can exclude
// the record from time-window reasoning without dropping it.
func NormalizeSession(raw json.RawMessage, loc *time.Location) (Session, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return Session{}, fmt.Errorf("decode session record: %w", err)
	}

	s := Session{Raw: raw}

	idv, ok := firstValue(m, sessionFields.ID)
	if !ok {
		return Session{}, fmt.Errorf("session record has no id field (tried %s)", strings.Join(sessionFields.ID, ", "))
	}
	s.ID = asString(idv)
	if s.ID == "" {
		return Session{}, fmt.Errorf("session record has empty id")
	}

	if v, ok := firstValue(m, sessionFields.Start); ok {
		if ts, err := ParseTimestamp(v, loc); err == nil {
			s.StartTime = ts
		}
	}
	if v, ok := firstValue(m, sessionFields.End); ok {
		if ts, err := ParseTimestamp(v, loc); err == nil {
			s.EndTime = ts
		}
	}
	if v, ok := firstValue(m, sessionFields.Energy); ok {
		s.EnergyKWh = asFloat(v)
	}
	if v, ok := firstValue(m, sessionFields.Device); ok {
		s.DeviceID = asString(v)
	}
	if v, ok := firstValue(m, sessionFields.Home); ok {
		b, isBool := v.(bool)
		s.HomeCharger = isBool && b
	}
	return s, nil
}

// ParseTimestamp converts a session timestamp value to time.Time. Integers of
// magnitude 1e12 or more are epoch milliseconds, smaller ones epoch seconds.
// Text is tried as RFC3339 first, then the zone-less layouts in loc.
func ParseTimestamp(v any, loc *time.Location) (time.Time, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("numeric timestamp %q: %w", t.String(), err)
		}
		if math.Abs(f) >= 1e12 {
			return time.UnixMilli(int64(f)).In(loc), nil
		}
		return time.Unix(int64(f), 0).In(loc), nil
	case float64:
		if math.Abs(t) >= 1e12 {
			return time.UnixMilli(int64(t)).In(loc), nil
		}
		return time.Unix(int64(t), 0).In(loc), nil
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.In(loc), nil
		}
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, t, loc); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp text %q", t)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func firstValue(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return t
	default:
		return 0
	}
}

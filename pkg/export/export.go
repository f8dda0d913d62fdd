// Package export renders charging sessions for external consumers. The
// report command feeds it cached months; anything embedding this module can
// run it on fetcher output directly.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/homecharge/homecharge/core/model"
)

// csvHeader is the column layout of WriteCSV, stable for spreadsheet
// consumers.
var csvHeader = []string{"session_id", "start_time", "end_time", "energy_kwh", "device_id", "home_charger"}

// WriteCSV writes sessions to w as CSV with a header row. Zero times render
// as empty cells so open sessions do not fake an end timestamp.
func WriteCSV(w io.Writer, sess []model.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range sess {
		rec := []string{
			s.ID,
			formatTime(s.StartTime),
			formatTime(s.EndTime),
			strconv.FormatFloat(s.EnergyKWh, 'f', -1, 64),
			s.DeviceID,
			strconv.FormatBool(s.HomeCharger),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonSession is the export shape: normalized fields plus the raw vendor
// record for consumers that need fields normalization drops.
type jsonSession struct {
	ID          string          `json:"session_id"`
	StartTime   *time.Time      `json:"start_time,omitempty"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	EnergyKWh   float64         `json:"energy_kwh"`
	DeviceID    string          `json:"device_id,omitempty"`
	HomeCharger bool            `json:"home_charger"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// WriteJSON writes sessions to w as an indented JSON array.
func WriteJSON(w io.Writer, sess []model.Session) error {
	out := make([]jsonSession, 0, len(sess))
	for _, s := range sess {
		js := jsonSession{
			ID:          s.ID,
			EnergyKWh:   s.EnergyKWh,
			DeviceID:    s.DeviceID,
			HomeCharger: s.HomeCharger,
			Raw:         s.Raw,
		}
		if !s.StartTime.IsZero() {
			t := s.StartTime
			js.StartTime = &t
		}
		if !s.EndTime.IsZero() {
			t := s.EndTime
			js.EndTime = &t
		}
		out = append(out, js)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/homecharge/homecharge/core/model"
)

func sampleSessions() []model.Session {
	start := time.Date(2025, 3, 5, 6, 0, 0, 0, time.UTC)
	return []model.Session{
		{
			ID:          "101",
			StartTime:   start,
			EndTime:     start.Add(2 * time.Hour),
			EnergyKWh:   7.5,
			DeviceID:    "ch-1",
			HomeCharger: true,
			Raw:         json.RawMessage(`{"session_id":101}`),
		},
		{
			ID:        "102",
			StartTime: start.AddDate(0, 0, 2),
			EnergyKWh: 5.1,
			DeviceID:  "ch-1",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSessions()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "session_id" || rows[0][3] != "energy_kwh" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "101" || rows[1][1] != "2025-03-05T06:00:00Z" || rows[1][3] != "7.5" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[2][2] != "" {
		t.Errorf("open session should have empty end time, got %q", rows[2][2])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleSessions()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0]["session_id"] != "101" || out[0]["home_charger"] != true {
		t.Errorf("unexpected first entry: %v", out[0])
	}
	if out[0]["raw"] == nil {
		t.Error("raw vendor record dropped")
	}
	if _, ok := out[1]["end_time"]; ok {
		t.Error("open session should omit end_time")
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty array, got %v", out)
	}
}

package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/homecharge/homecharge/infra/logger"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return New(dir, loc, logger.NopLogger{}), dir
}

func TestFlatPutGetRoundTrip(t *testing.T) {
	s, dir := testStore(t)
	if err := s.Put("k", json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok := s.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(v) != `{"a":1}` {
		t.Fatalf("unexpected value %s", v)
	}
	// A second store over the same directory must see the value from disk.
	s2 := New(dir, s.loc, logger.NopLogger{})
	if _, ok := s2.Get("k"); !ok {
		t.Fatalf("expected hit after reload")
	}
}

func TestFlatNullMarkerIsAHit(t *testing.T) {
	s, _ := testStore(t)
	if err := s.Put("probe", json.RawMessage(`null`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok := s.Get("probe")
	if !ok {
		t.Fatalf("stored null should be a hit, not a miss")
	}
	if string(v) != "null" {
		t.Fatalf("unexpected value %s", v)
	}
}

func TestGetMiss(t *testing.T) {
	s, _ := testStore(t)
	if _, ok := s.Get("absent"); ok {
		t.Fatalf("expected miss")
	}
}

func TestMonthRecordFinality(t *testing.T) {
	s, _ := testStore(t)
	s.now = func() time.Time { return time.Date(2025, 1, 20, 12, 0, 0, 0, s.loc) }
	rec, err := s.PutMonth(2025, time.January, []json.RawMessage{json.RawMessage(`{"session_id":1}`)})
	if err != nil {
		t.Fatalf("put month: %v", err)
	}
	if s.Finality(rec, 2025, time.January) {
		t.Fatalf("mid-month retrieval must be provisional")
	}

	s.now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, s.loc) }
	rec, err = s.PutMonth(2025, time.January, []json.RawMessage{json.RawMessage(`{"session_id":1}`)})
	if err != nil {
		t.Fatalf("put month: %v", err)
	}
	if !s.Finality(rec, 2025, time.January) {
		t.Fatalf("retrieval at first instant of next month must be final")
	}
}

func TestMonthSurvivesReload(t *testing.T) {
	s, dir := testStore(t)
	if _, err := s.PutMonth(2024, time.December, []json.RawMessage{json.RawMessage(`{"session_id":7}`)}); err != nil {
		t.Fatalf("put month: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sessions", "2024", "12.json")); err != nil {
		t.Fatalf("month file missing: %v", err)
	}
	s2 := New(dir, s.loc, logger.NopLogger{})
	rec, ok := s2.GetMonth(2024, time.December)
	if !ok {
		t.Fatalf("expected month hit after reload")
	}
	if len(rec.Sessions) != 1 {
		t.Fatalf("expected 1 session got %d", len(rec.Sessions))
	}
	if rec.DateRetrieved.IsZero() {
		t.Fatalf("retrieval timestamp lost in round trip")
	}
}

func TestSessionDetailPathAndFind(t *testing.T) {
	s, dir := testStore(t)
	start := time.Date(2025, 3, 9, 5, 59, 0, 0, s.loc)
	if err := s.PutSessionDetail("424242", start, json.RawMessage(`{"power":[1,2,3]}`)); err != nil {
		t.Fatalf("put detail: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "details", "2025", "03", "09", "424242.json")); err != nil {
		t.Fatalf("detail file missing: %v", err)
	}
	v, ok := s.FindSessionFile("424242")
	if !ok {
		t.Fatalf("expected session file hit")
	}
	var decoded map[string]any
	if err := json.Unmarshal(v, &decoded); err != nil {
		t.Fatalf("stored detail not valid JSON: %v", err)
	}
	if _, ok := s.FindSessionFile("999"); ok {
		t.Fatalf("expected miss for unknown session")
	}
}

type recordingMirror struct {
	paths []string
	err   error
}

func (m *recordingMirror) Record(path string) error {
	m.paths = append(m.paths, path)
	return m.err
}

func TestMirrorSeesEveryWrite(t *testing.T) {
	s, _ := testStore(t)
	m := &recordingMirror{}
	s.UseMirror(m)
	if err := s.Put("k", json.RawMessage(`1`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.PutMonth(2025, time.May, nil); err != nil {
		t.Fatalf("put month: %v", err)
	}
	if err := s.PutSessionDetail("1", time.Date(2025, 5, 2, 0, 0, 0, 0, s.loc), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("put detail: %v", err)
	}
	if len(m.paths) != 3 {
		t.Fatalf("expected 3 mirrored paths got %d", len(m.paths))
	}
}

func TestMirrorFailureDoesNotFailWrite(t *testing.T) {
	s, _ := testStore(t)
	s.UseMirror(&recordingMirror{err: errors.New("index locked")})
	if err := s.Put("k", json.RawMessage(`1`)); err != nil {
		t.Fatalf("mirror failure leaked into put: %v", err)
	}
	if _, ok := s.Get("k"); !ok {
		t.Fatalf("value lost after mirror failure")
	}
}

// Package cache persists session data under a human-inspectable directory
// tree so downstream consumers never repeat expensive vendor queries.
//
// Layout under the store root:
//
//	cache.json                         flat key→value store for raw responses
//	sessions/<year>/<month>.json       one MonthRecord per calendar month
//	details/<year>/<month>/<day>/<id>.json  per-session detail blobs
//
// All mutating paths hold the store mutex: the store is shared between batch
// jobs and interactive readers in the same process.
package cache

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/homecharge/homecharge/core/logger"
)

// Store is a file-backed cache with an in-memory first tier. Construct with
// New; the zero value is not usable.
type Store struct {
	mu     sync.Mutex
	dir    string
	loc    *time.Location
	flat   map[string]json.RawMessage
	months map[string]MonthRecord
	mirror Mirror
	log    logger.Logger

	now func() time.Time
}

// New opens (or starts) a store rooted at dir. Month finality and detail
// paths are computed in loc, the charging venue's timezone. An unreadable
// flat file is logged and treated as empty, never as a fatal error.
func New(dir string, loc *time.Location, log logger.Logger) *Store {
	s := &Store{
		dir:    dir,
		loc:    loc,
		flat:   map[string]json.RawMessage{},
		months: map[string]MonthRecord{},
		mirror: NopMirror{},
		log:    log,
		now:    time.Now,
	}
	s.loadFlat()
	return s
}

// UseMirror routes every subsequent successful write through m.
func (s *Store) UseMirror(m Mirror) {
	s.mu.Lock()
	s.mirror = m
	s.mu.Unlock()
}

// SetNow overrides the retrieval-timestamp clock. Tests use it to write
// provisional or final month records deterministically.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Get returns the flat-cache value for key. The in-memory map is consulted
// first; on a miss the flat file is re-read in case another process wrote it.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.flat[key]; ok {
		return v, true
	}
	s.loadFlat()
	v, ok := s.flat[key]
	return v, ok
}

// Put stores value under key in the flat cache and synchronously persists the
// whole flat file.
func (s *Store) Put(key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flat[key] = value
	path := s.flatPath()
	data, err := json.MarshalIndent(s.flat, "", "  ")
	if err != nil {
		return fmt.Errorf("encode flat cache: %w", err)
	}
	if err := s.writeFile(path, data); err != nil {
		return err
	}
	s.record(path)
	return nil
}

// GetMonth returns the cached record for a calendar month, in-memory tier
// first, month file second.
func (s *Store) GetMonth(year int, month time.Month) (MonthRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := monthKey(year, month)
	if rec, ok := s.months[key]; ok {
		return rec, true
	}
	data, err := os.ReadFile(s.monthPath(year, month))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("cache: read month %s: %v", key, err)
		}
		return MonthRecord{}, false
	}
	var rec MonthRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warnf("cache: decode month %s: %v", key, err)
		return MonthRecord{}, false
	}
	s.months[key] = rec
	return rec, true
}

// PutMonth writes the month file for year/month with the current wall clock
// as retrieval timestamp and returns the stored record. The write happens
// even for months that are still in progress; the finality rule decides later
// whether readers may trust it.
func (s *Store) PutMonth(year int, month time.Month, sessions []json.RawMessage) (MonthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := MonthRecord{Sessions: sessions, DateRetrieved: s.now()}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return MonthRecord{}, fmt.Errorf("encode month record: %w", err)
	}
	path := s.monthPath(year, month)
	if err := s.writeFile(path, data); err != nil {
		return MonthRecord{}, err
	}
	s.months[monthKey(year, month)] = rec
	s.record(path)
	return rec, nil
}

// Finality returns whether the cached record for year/month may be served
// without re-fetching.
func (s *Store) Finality(rec MonthRecord, year int, month time.Month) bool {
	return rec.Final(year, month, s.loc)
}

// PutSessionDetail writes one session's detail blob under the year/month/day
// directory derived from its start time.
func (s *Store) PutSessionDetail(sessionID string, start time.Time, detail json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.detailPath(sessionID, start)
	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session detail: %w", err)
	}
	if err := s.writeFile(path, data); err != nil {
		return err
	}
	s.record(path)
	return nil
}

// FindSessionFile searches the detail hierarchy for <sessionID>.json. A hit
// is authoritative: callers skip the network path entirely.
func (s *Store) FindSessionFile(sessionID string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := filepath.Join(s.dir, "details")
	want := sanitize(sessionID) + ".json"
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == want {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil || found == "" {
		if err != nil && !os.IsNotExist(err) {
			s.log.Warnf("cache: scan session files: %v", err)
		}
		return nil, false
	}
	data, err := os.ReadFile(found)
	if err != nil {
		s.log.Warnf("cache: read %s: %v", found, err)
		return nil, false
	}
	return data, true
}

func (s *Store) loadFlat() {
	data, err := os.ReadFile(s.flatPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("cache: read flat cache: %v", err)
		}
		return
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.Warnf("cache: decode flat cache: %v", err)
		return
	}
	for k, v := range m {
		if _, ok := s.flat[k]; !ok {
			s.flat[k] = v
		}
	}
}

func (s *Store) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// record reports a completed write to the mirror. Mirror trouble is logged
// and swallowed.
func (s *Store) record(path string) {
	if err := s.mirror.Record(path); err != nil {
		s.log.Warnf("cache: mirror %s: %v", path, err)
	}
}

func (s *Store) flatPath() string {
	return filepath.Join(s.dir, "cache.json")
}

func (s *Store) monthPath(year int, month time.Month) string {
	return filepath.Join(s.dir, "sessions", fmt.Sprintf("%04d", year), fmt.Sprintf("%02d.json", int(month)))
}

func (s *Store) detailPath(sessionID string, start time.Time) string {
	start = start.In(s.loc)
	return filepath.Join(s.dir, "details",
		fmt.Sprintf("%04d", start.Year()),
		fmt.Sprintf("%02d", int(start.Month())),
		fmt.Sprintf("%02d", start.Day()),
		sanitize(sessionID)+".json")
}

// sanitize keeps session ids safe to use as file names. Vendor ids are
// numeric today; this guards against surprises.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// Package sessions implements cache-backed, rate-limited retrieval of the
// account's charging history. Pagination stops as early as the data allows
// ("smart stop"): the vendor bans accounts that scroll their entire history,
// so every page that can be proven unnecessary is a page not fetched.
package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/homecharge/homecharge/core/cache"
	"github.com/homecharge/homecharge/core/chargepoint"
	"github.com/homecharge/homecharge/core/logger"
	"github.com/homecharge/homecharge/core/metrics"
	"github.com/homecharge/homecharge/core/model"
)

// Defaults match the vendor's own web client page size and keep a single
// month sync under the rate budget.
const (
	DefaultPageSize = 10
	DefaultMaxPages = 10
)

// Store is the slice of the persistent cache the fetcher relies on.
type Store interface {
	Get(key string) (json.RawMessage, bool)
	Put(key string, value json.RawMessage) error
	GetMonth(year int, month time.Month) (cache.MonthRecord, bool)
	PutMonth(year int, month time.Month, sessions []json.RawMessage) (cache.MonthRecord, error)
	Finality(rec cache.MonthRecord, year int, month time.Month) bool
	PutSessionDetail(sessionID string, start time.Time, detail json.RawMessage) error
	FindSessionFile(sessionID string) (json.RawMessage, bool)
}

// Limiter gates outbound vendor calls.
type Limiter interface {
	Acquire()
}

// Fetcher retrieves charging sessions through the rate limiter, consulting
// the persistent cache before and after every network round trip. Safe for
// concurrent use as long as its collaborators are.
type Fetcher struct {
	client  chargepoint.HistoryClient
	store   Store
	limiter Limiter
	loc     *time.Location
	log     logger.Logger
	sink    metrics.Sink
}

// New builds a Fetcher. Month boundaries and session timestamps are
// interpreted in loc, the charging venue's timezone.
func New(client chargepoint.HistoryClient, store Store, limiter Limiter, loc *time.Location, log logger.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		store:   store,
		limiter: limiter,
		loc:     loc,
		log:     log,
		sink:    metrics.NopSink{},
	}
}

// UseSink routes fetch metrics through s.
func (f *Fetcher) UseSink(s metrics.Sink) {
	if s != nil {
		f.sink = s
	}
}

// FetchMonth returns the sessions whose start time falls inside the given
// calendar month, deduplicated by session id and ordered by arrival.
//
// A final cached record (retrieved after the month ended) is returned with
// zero network calls. Otherwise up to maxPages pages are fetched, each gated
// by the rate limiter, and the walk stops early when a page is empty, when
// the cursor stops advancing, or when an entire page predates the target
// month: the feed is newest-first, so older pages cannot contain target
// data. A page newer than the target never stops the walk; older pages are
// still pending. Whatever was accumulated is persisted on every exit path,
// including failures: partial results stand, and the finality rule decides
// later whether a reader may trust them.
func (f *Fetcher) FetchMonth(ctx context.Context, year int, month time.Month, pageSize, maxPages int) ([]model.Session, error) {
	if year <= 0 || month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid target month %04d-%02d", year, int(month))
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	startOfTarget := time.Date(year, month, 1, 0, 0, 0, 0, f.loc)
	endOfTarget := startOfTarget.AddDate(0, 1, 0)

	if rec, ok := f.store.GetMonth(year, month); ok && f.store.Finality(rec, year, month) {
		f.observeCache("month", true)
		f.observeSync(year, month, 0, len(rec.Sessions), true)
		return f.normalizeAll(rec.Sessions), nil
	}
	f.observeCache("month", false)

	var (
		kept    []model.Session
		keptRaw []json.RawMessage
		seen    = map[string]struct{}{}
		offset  = offsetHint(year, month)
		pages   = 0
	)

	for page := 0; page < maxPages; page++ {
		f.limiter.Acquire()
		raw, err := f.client.FetchActivityPage(ctx, chargepoint.ActivityPageRequest{
			PageSize:   pageSize,
			PageOffset: offset,
		})
		if err != nil {
			f.log.Warnf("sessions: page %d failed, keeping %d sessions: %v", page+1, len(kept), err)
			break
		}
		pages++

		batch, err := DecodeActivityPage(raw)
		if err != nil {
			f.log.Warnf("sessions: page %d undecodable, keeping %d sessions: %v", page+1, len(kept), err)
			break
		}
		if len(batch.Sessions) == 0 {
			f.log.Debugf("sessions: page %d empty, stopping", page+1)
			break
		}

		records := make([]model.Session, 0, len(batch.Sessions))
		var earliest, latest time.Time
		for _, rawRec := range batch.Sessions {
			s, err := model.NormalizeSession(rawRec, f.loc)
			if err != nil {
				f.log.Warnf("sessions: skipping record on page %d: %v", page+1, err)
				continue
			}
			records = append(records, s)
			if s.StartTime.IsZero() {
				continue
			}
			if earliest.IsZero() || s.StartTime.Before(earliest) {
				earliest = s.StartTime
			}
			if latest.IsZero() || s.StartTime.After(latest) {
				latest = s.StartTime
			}
		}

		if latest.IsZero() {
			f.log.Warnf("sessions: no parseable timestamps on page %d, continuing without smart stop", page+1)
		} else if latest.Before(startOfTarget) {
			// The whole page predates the window; the feed is
			// newest-first, so nothing further back can match.
			f.log.Debugf("sessions: page %d entirely before %s, stopping", page+1, startOfTarget.Format("2006-01"))
			break
		} else if !earliest.Before(endOfTarget) {
			f.log.Debugf("sessions: page %d newer than target, scrolling back", page+1)
		}

		for _, s := range records {
			if s.StartTime.IsZero() {
				continue
			}
			if s.StartTime.Before(startOfTarget) || !s.StartTime.Before(endOfTarget) {
				continue
			}
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			kept = append(kept, s)
			keptRaw = append(keptRaw, s.Raw)
		}

		next := batch.NextOffset
		if next == "" || next == TerminalOffset || next == offset {
			f.log.Debugf("sessions: cursor %q ends pagination after page %d", next, page+1)
			break
		}
		offset = next
	}

	if _, err := f.store.PutMonth(year, month, keptRaw); err != nil {
		f.log.Warnf("sessions: persist month %04d-%02d: %v", year, int(month), err)
	}
	f.observeSync(year, month, pages, len(kept), false)
	f.recordEnergy(kept)
	return kept, nil
}

// CachedMonth returns whatever the cache holds for a month, final or not,
// without touching the network. Reporting and export run on this.
func (f *Fetcher) CachedMonth(year int, month time.Month) ([]model.Session, bool) {
	rec, ok := f.store.GetMonth(year, month)
	if !ok {
		return nil, false
	}
	return f.normalizeAll(rec.Sessions), true
}

// SessionActivity returns the detail blob for one session. Lookup order:
// per-session file (authoritative, skips the network), then the flat cache,
// then the network through the rate limiter. A null marker in the flat cache
// means "already checked, nothing there" and is reported as an absent hit.
// A response that is not valid JSON stores a null marker so the next caller
// does not repeat the query; a transport failure stores nothing and returns
// the error.
func (f *Fetcher) SessionActivity(ctx context.Context, sessionID string, includeSamples bool) (json.RawMessage, bool, error) {
	if data, ok := f.store.FindSessionFile(sessionID); ok {
		f.observeCache("session_file", true)
		return data, true, nil
	}
	f.observeCache("session_file", false)

	key := activityKey(sessionID, includeSamples)
	if data, ok := f.store.Get(key); ok {
		f.observeCache("flat", true)
		if isNullMarker(data) {
			return nil, false, nil
		}
		return data, true, nil
	}
	f.observeCache("flat", false)

	f.limiter.Acquire()
	data, err := f.client.SessionActivity(ctx, sessionID, includeSamples)
	if err != nil {
		return nil, false, fmt.Errorf("fetch activity for session %s: %w", sessionID, err)
	}

	if !json.Valid(data) {
		f.log.Warnf("sessions: session %s activity undecodable, caching null marker", sessionID)
		if err := f.store.Put(key, json.RawMessage("null")); err != nil {
			f.log.Warnf("sessions: cache null marker for %s: %v", sessionID, err)
		}
		return nil, false, nil
	}

	if err := f.store.Put(key, data); err != nil {
		f.log.Warnf("sessions: cache activity for %s: %v", sessionID, err)
	}
	if start, ok := detailStartTime(data, f.loc); ok {
		if err := f.store.PutSessionDetail(sessionID, start, data); err != nil {
			f.log.Warnf("sessions: write session file for %s: %v", sessionID, err)
		}
	}
	return data, true, nil
}

func (f *Fetcher) normalizeAll(raws []json.RawMessage) []model.Session {
	out := make([]model.Session, 0, len(raws))
	for _, raw := range raws {
		s, err := model.NormalizeSession(raw, f.loc)
		if err != nil {
			f.log.Warnf("sessions: cached record unusable: %v", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (f *Fetcher) observeCache(tier string, hit bool) {
	ev := metrics.CacheLookupEvent{Tier: tier, Hit: hit, Time: time.Now()}
	if err := f.sink.RecordCacheLookup(ev); err != nil {
		f.log.Debugf("sessions: record cache lookup: %v", err)
	}
}

func (f *Fetcher) observeSync(year int, month time.Month, pages, count int, fromCache bool) {
	ev := metrics.MonthSyncEvent{
		Year:      year,
		Month:     month,
		Pages:     pages,
		Sessions:  count,
		FromCache: fromCache,
		Time:      time.Now(),
	}
	if err := f.sink.RecordMonthSync(ev); err != nil {
		f.log.Debugf("sessions: record month sync: %v", err)
	}
}

func (f *Fetcher) recordEnergy(sess []model.Session) {
	rec, ok := f.sink.(metrics.SessionEnergyRecorder)
	if !ok || len(sess) == 0 {
		return
	}
	evs := make([]metrics.SessionEnergyEvent, 0, len(sess))
	for _, s := range sess {
		evs = append(evs, metrics.SessionEnergyEvent{
			SessionID: s.ID,
			DeviceID:  s.DeviceID,
			Home:      s.HomeCharger,
			EnergyKWh: s.EnergyKWh,
			Start:     s.StartTime,
		})
	}
	if err := rec.RecordSessionEnergy(evs); err != nil {
		f.log.Debugf("sessions: record session energy: %v", err)
	}
}

// offsetHint seeds pagination near the target month. The vendor treats it as
// an optimization hint only; stale hints fall back to the newest page.
func offsetHint(year int, month time.Month) string {
	return fmt.Sprintf("p_%04d_%02d", year, int(month))
}

func activityKey(sessionID string, includeSamples bool) string {
	suffix := "nosamples"
	if includeSamples {
		suffix = "samples"
	}
	return fmt.Sprintf("session_activity_%s_%s", sessionID, suffix)
}

func isNullMarker(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// detailStartTime digs the session start out of a detail blob so the
// per-session file can land under its year/month/day directory.
func detailStartTime(detail json.RawMessage, loc *time.Location) (time.Time, bool) {
	dec := json.NewDecoder(bytes.NewReader(detail))
	dec.UseNumber()
	var env map[string]any
	if err := dec.Decode(&env); err != nil {
		return time.Time{}, false
	}
	status, ok := env["charging_status"].(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	v, ok := status["start_time"]
	if !ok || v == nil {
		return time.Time{}, false
	}
	ts, err := model.ParseTimestamp(v, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

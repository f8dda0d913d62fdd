// Package warmcache prefetches per-session detail blobs after a month sync,
// so later report and export runs never touch the network.
package warmcache

import (
	"context"
	"encoding/json"

	"github.com/homecharge/homecharge/core/logger"
	"github.com/homecharge/homecharge/core/model"
)

// DetailFetcher is the slice of the session fetcher the warmer uses. The
// bool result reports whether the blob came from cache.
type DetailFetcher interface {
	SessionActivity(ctx context.Context, sessionID string, includeSamples bool) (json.RawMessage, bool, error)
}

// Warm fetches the detail blob for every session in sess that has an id.
// Failures on individual sessions are logged and skipped; a canceled context
// stops the walk. Returns how many blobs were fetched and how many were
// already cached.
func Warm(ctx context.Context, f DetailFetcher, sess []model.Session, includeSamples bool, log logger.Logger) (fetched, cached int) {
	for _, s := range sess {
		if s.ID == "" {
			continue
		}
		if ctx.Err() != nil {
			log.Warnf("detail prefetch aborted after %d sessions: %v", fetched+cached, ctx.Err())
			return fetched, cached
		}
		_, fromCache, err := f.SessionActivity(ctx, s.ID, includeSamples)
		if err != nil {
			log.Warnf("detail for session %s: %v", s.ID, err)
			continue
		}
		if fromCache {
			cached++
		} else {
			fetched++
		}
	}
	return fetched, cached
}

// Package chargepoint defines the contract with the vendor charging-network
// API. Core packages depend on these interfaces only; the HTTP implementation
// lives in infra/chargepoint.
package chargepoint

import (
	"context"
	"encoding/json"

	"github.com/homecharge/homecharge/core/model"
)

// ActivityPageRequest identifies one page of the account's session history.
// PageOffset is an opaque vendor cursor; the empty string requests the most
// recent page.
type ActivityPageRequest struct {
	PageSize   int
	PageOffset string
}

// StatusClient is the slice of the vendor API the charge controller uses.
type StatusClient interface {
	// ListHomeChargers returns the account's home charger device ids,
	// ordered as the vendor reports them.
	ListHomeChargers(ctx context.Context) ([]string, error)
	// GetStatus returns a live snapshot for one charger. Implementations
	// must not serve cached state.
	GetStatus(ctx context.Context, deviceID string) (model.ChargeStatus, error)
	// StartSession asks the vendor to begin charging on the given station.
	// An ambiguous confirmation timeout is reported as a *CommError with
	// Timeout set; see IsStartTimeout.
	StartSession(ctx context.Context, stationID string) error
}

// HistoryClient is the slice of the vendor API the session fetcher uses.
// Callers are responsible for rate limiting; implementations perform exactly
// one network round trip per call.
type HistoryClient interface {
	// FetchActivityPage returns one raw history page. Decoding is left to
	// the caller because the payload shape varies between API revisions.
	FetchActivityPage(ctx context.Context, req ActivityPageRequest) (json.RawMessage, error)
	// SessionActivity returns the raw detail blob for one session,
	// optionally including the per-interval power samples.
	SessionActivity(ctx context.Context, sessionID string, includeSamples bool) (json.RawMessage, error)
}

// Client is the full vendor API surface.
type Client interface {
	// Authenticate establishes or refreshes the session credential. Other
	// calls invoke it lazily, so callers rarely need it directly.
	Authenticate(ctx context.Context) error
	StatusClient
	HistoryClient
}

package chargepoint

import (
	corecp "github.com/homecharge/homecharge/core/chargepoint"
)

// Default endpoints of the vendor's driver API. The map-prod endpoint serves
// the undocumented JSON-RPC-ish POST surface the mobile and web clients use.
const (
	DefaultAPIURL   = "https://mc.chargepoint.com/map-prod/v2"
	DefaultLoginURL = "https://account.chargepoint.com/account/v1/driver/auth/login"
)

// Config defines the connection parameters for the vendor API client.
type Config struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	StationID string `json:"station_id"`
	// APIURL is the map-prod endpoint for status/history/detail calls.
	APIURL string `json:"api_url"`
	// LoginURL is the credential-exchange endpoint.
	LoginURL string `json:"login_url"`
	// TokenPath caches the session credential across runs; empty disables
	// the cache and every run logs in fresh.
	TokenPath string `json:"token_path"`
	// TimeoutSeconds bounds one HTTP round trip.
	TimeoutSeconds int `json:"timeout_seconds"`
	// StartPollSeconds and StartPollAttempts bound the wait for a start
	// command to be visible on the charger before the client reports the
	// ambiguous allotted-time timeout.
	StartPollSeconds  int `json:"start_poll_seconds"`
	StartPollAttempts int `json:"start_poll_attempts"`
}

// SetDefaults applies the vendor endpoints and conservative timing.
func (c *Config) SetDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.LoginURL == "" {
		c.LoginURL = DefaultLoginURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.StartPollSeconds <= 0 {
		c.StartPollSeconds = 5
	}
	if c.StartPollAttempts <= 0 {
		c.StartPollAttempts = 12
	}
}

// Validate checks the account fields every network command needs.
func (c Config) Validate() error {
	if c.Username == "" {
		return &corecp.ConfigError{Field: "username"}
	}
	if c.Password == "" {
		return &corecp.ConfigError{Field: "password"}
	}
	return nil
}

package config

import "time"

// FetchConfig bounds history mirroring: how much one sync pulls and how
// hard it leans on the vendor API.
type FetchConfig struct {
	PageSize int `json:"page_size"`
	MaxPages int `json:"max_pages"`
	// RateLimit requests per RatePeriodSeconds, shared by every vendor
	// call a command makes.
	RateLimit         int `json:"rate_limit"`
	RatePeriodSeconds int `json:"rate_period_seconds"`
	// Details fetches per-session activity alongside the month listing.
	Details bool `json:"details"`
	// IncludeSamples asks for power telemetry inside session details.
	IncludeSamples bool `json:"include_samples"`
}

// SetDefaults applies the vendor-friendly budget: small pages, six calls a
// minute.
func (c *FetchConfig) SetDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 6
	}
	if c.RatePeriodSeconds <= 0 {
		c.RatePeriodSeconds = 60
	}
}

// RatePeriod returns the limiter window as a duration.
func (c FetchConfig) RatePeriod() time.Duration {
	return time.Duration(c.RatePeriodSeconds) * time.Second
}

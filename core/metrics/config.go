package metrics

import "github.com/homecharge/homecharge/core/factory"

// Config defines settings for metrics sinks. PromAddr, when set, exposes a
// /metrics scrape endpoint for the lifetime of the command; it is mainly
// useful for long backfills.
type Config struct {
	Sinks    []factory.ModuleConfig `json:"sinks"`
	PromAddr string                 `json:"prom_addr"`
}

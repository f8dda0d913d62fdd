package config

import (
	"fmt"

	"github.com/homecharge/homecharge/core/factory"
)

// RunLogConfig defines settings for charge-run history storage and rotation.
type RunLogConfig struct {
	// Backend selects the store type: "jsonl", "rotating" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *RunLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "charge_runs.jsonl"
	}
}

// Validate checks mandatory fields.
func (c RunLogConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "rotating", "sqlite":
	default:
		return fmt.Errorf("unknown runlog backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("runlog path is required")
	}
	return nil
}

// Module expresses the section as a module config for the run-log store
// registry.
func (c RunLogConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{
		Type: c.Backend,
		Conf: map[string]any{
			"path":         c.Path,
			"max_size_mb":  c.MaxSizeMB,
			"max_backups":  c.MaxBackups,
			"max_age_days": c.MaxAgeDays,
		},
	}
}

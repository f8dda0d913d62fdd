package config

import (
	"fmt"

	"github.com/homecharge/homecharge/infra/gitmirror"
)

// CacheConfig locates the on-disk session cache and selects its mirror.
type CacheConfig struct {
	// Dir is the cache root; month and detail files nest beneath it.
	Dir string `json:"dir"`
	// Mirror selects change tracking for the cache tree: "none" or "git".
	Mirror string `json:"mirror"`
	// Git configures the git mirror when selected.
	Git gitmirror.Config `json:"git"`
}

// SetDefaults places the cache in ./data with mirroring off. A git mirror
// with no repo of its own tracks the cache directory itself.
func (c *CacheConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "data"
	}
	if c.Mirror == "" {
		c.Mirror = "none"
	}
	if c.Mirror == "git" && c.Git.RepoDir == "" {
		c.Git.RepoDir = c.Dir
	}
}

// Validate checks the mirror selector.
func (c CacheConfig) Validate() error {
	switch c.Mirror {
	case "none", "git":
		return nil
	}
	return fmt.Errorf("cache: unknown mirror %q", c.Mirror)
}

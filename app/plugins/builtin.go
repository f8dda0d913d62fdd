// Package plugins registers the built-in run-log backends with the factory
// registry. The composition root imports it for side effects; anything
// embedding this module can register additional backends the same way.
package plugins

import (
	"github.com/homecharge/homecharge/core/factory"
	"github.com/homecharge/homecharge/core/runlog"
)

type storeConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func init() {
	_ = runlog.RegisterStore("jsonl", func(conf map[string]any) (runlog.Store, error) {
		var c storeConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return runlog.NewJSONLStore(c.Path)
	})

	_ = runlog.RegisterStore("rotating", func(conf map[string]any) (runlog.Store, error) {
		var c storeConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return runlog.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})

	_ = runlog.RegisterStore("sqlite", func(conf map[string]any) (runlog.Store, error) {
		var c storeConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return runlog.NewSQLiteStore(c.Path)
	})
}

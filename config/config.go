package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/homecharge/homecharge/core/metrics"
	"github.com/homecharge/homecharge/infra/chargepoint"
	"github.com/homecharge/homecharge/infra/mqtt"
)

// Config is the full configuration tree for the charging automation.
type Config struct {
	ChargePoint chargepoint.Config `json:"chargepoint"`
	Charge      ChargeConfig       `json:"charge"`
	Cache       CacheConfig        `json:"cache"`
	Fetch       FetchConfig        `json:"fetch"`
	RunLog      RunLogConfig       `json:"runlog"`
	Metrics     metrics.Config     `json:"metrics"`
	MQTT        mqtt.Config        `json:"mqtt"`
	Sentry      SentryConfig       `json:"sentry"`
}

// Load reads the configuration file at path, overlays environment
// variables, applies defaults and validates every section. An empty path
// skips the file and builds the configuration from environment alone,
// which is how cron deployments without a config file run.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides: HC_CHARGE__HOUR=4 sets charge.hour.
	if err := k.Load(env.Provider("HC_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "hc_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.applyCredentialEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyCredentialEnv honors the vendor credential variables the automation
// has always used, so secrets stay out of the config file.
func (c *Config) applyCredentialEnv() {
	if v := os.Getenv("CP_USERNAME"); v != "" {
		c.ChargePoint.Username = v
	}
	if v := os.Getenv("CP_PASSWORD"); v != "" {
		c.ChargePoint.Password = v
	}
	if v := os.Getenv("CP_STATION_ID"); v != "" {
		c.ChargePoint.StationID = v
	}
}

// SetDefaults fills every section. File-valued defaults nest under the
// cache directory so a deployment is one directory to back up.
func (c *Config) SetDefaults() {
	c.ChargePoint.SetDefaults()
	c.Charge.SetDefaults()
	c.Cache.SetDefaults()
	c.Fetch.SetDefaults()
	if c.ChargePoint.TokenPath == "" {
		c.ChargePoint.TokenPath = filepath.Join(c.Cache.Dir, "session_token.txt")
	}
	if c.RunLog.Path == "" {
		c.RunLog.Path = filepath.Join(c.Cache.Dir, "charge_runs.jsonl")
	}
	c.RunLog.SetDefaults()
}

// Validate checks every section. Vendor credentials are deliberately not
// checked here: the client validates them at construction, so cache-only
// commands run without an account.
func (c Config) Validate() error {
	if err := c.Charge.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.RunLog.Validate(); err != nil {
		return err
	}
	return nil
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/homecharge/homecharge/config"
)

const defaultConfigPath = "config.yaml"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "homecharge",
	Short: "Overnight charging automation for a ChargePoint home charger",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configured file. The stock path is soft: when the
// file does not exist, configuration comes from environment and defaults,
// which is how cron deployments run. An explicitly given path must exist.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	return config.Load(path)
}

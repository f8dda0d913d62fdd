package main

import (
	"os"

	// Cron hosts and scratch containers often ship without zoneinfo; the
	// charging window math needs the configured location regardless.
	_ "time/tzdata"

	"github.com/homecharge/homecharge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

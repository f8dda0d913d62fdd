package config

import (
	"fmt"
	"time"

	"github.com/homecharge/homecharge/core/charge"
)

// ChargeConfig shapes the overnight start window and the controller's retry
// budget. Hour and Minute are wall-clock in Timezone, the charging venue's
// zone, so the window follows the utility tariff across daylight-saving
// transitions.
type ChargeConfig struct {
	// Hour and Minute place the target start instant. Unset (0:00) targets
	// the default, one minute ahead of the off-peak boundary.
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	// GraceMinutes accepts triggers arriving this late past the target.
	GraceMinutes int    `json:"grace_minutes"`
	Timezone     string `json:"timezone"`

	// Controller pacing. Zero values take the charge package defaults.
	PollSeconds    int `json:"poll_seconds"`
	PollAttempts   int `json:"poll_attempts"`
	StartAttempts  int `json:"start_attempts"`
	ConfirmSeconds int `json:"confirm_seconds"`
}

// SetDefaults applies the stock overnight window.
func (c *ChargeConfig) SetDefaults() {
	if c.Hour == 0 && c.Minute == 0 {
		c.Hour = charge.DefaultTargetHour
		c.Minute = charge.DefaultTargetMinute
	}
	if c.GraceMinutes <= 0 {
		c.GraceMinutes = int(charge.DefaultGrace / time.Minute)
	}
	if c.Timezone == "" {
		c.Timezone = "America/Los_Angeles"
	}
}

// Validate checks the window placement and the timezone name.
func (c ChargeConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("charge: hour %d out of range", c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("charge: minute %d out of range", c.Minute)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("charge: timezone: %w", err)
	}
	return nil
}

// Location resolves Timezone. Validate catches bad names; a zone that fails
// to load anyway falls back to UTC.
func (c ChargeConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Grace returns the acceptance window as a duration.
func (c ChargeConfig) Grace() time.Duration {
	return time.Duration(c.GraceMinutes) * time.Minute
}

// Controller maps the pacing fields onto a controller configuration for the
// given charger.
func (c ChargeConfig) Controller(stationID string) charge.Config {
	return charge.Config{
		StationID:     stationID,
		PollInterval:  time.Duration(c.PollSeconds) * time.Second,
		PollAttempts:  c.PollAttempts,
		StartAttempts: c.StartAttempts,
		ConfirmWait:   time.Duration(c.ConfirmSeconds) * time.Second,
	}
}

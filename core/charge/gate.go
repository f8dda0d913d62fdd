// Package charge aligns execution with the overnight charging window and
// drives the vendor's start-session flow. The gate absorbs scheduler jitter
// around the target instant; the controller waits out any pre-existing
// scheduled session and starts a new one with bounded retries.
package charge

import (
	"time"

	"github.com/homecharge/homecharge/core/logger"
)

// Default window parameters: start one minute before the 06:00 utility
// off-peak boundary, accept triggers up to six minutes late.
const (
	DefaultTargetHour   = 5
	DefaultTargetMinute = 59
	DefaultGrace        = 6 * time.Minute
)

// Gate decides whether a run fired close enough to the target wall-clock
// instant to proceed. Cron triggers arrive up to an hour early around
// daylight-saving transitions and minutes late under load; the gate sleeps
// early runs forward and rejects runs that missed the window entirely.
type Gate struct {
	hour   int
	minute int
	grace  time.Duration
	loc    *time.Location
	log    logger.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// NewGate returns a Gate targeting hour:minute local to loc, the charging
// venue's timezone.
func NewGate(hour, minute int, grace time.Duration, loc *time.Location, log logger.Logger) *Gate {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Gate{
		hour:   hour,
		minute: minute,
		grace:  grace,
		loc:    loc,
		log:    log,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// ShouldProceed reports whether the charge sequence may run. Before the
// target it sleeps exactly the remaining time and proceeds; at or after the
// target it proceeds only while the grace window is still open. A false
// return means the caller must exit without touching the charger.
func (g *Gate) ShouldProceed() bool {
	now := g.now().In(g.loc)
	target := time.Date(now.Year(), now.Month(), now.Day(), g.hour, g.minute, 0, 0, g.loc)

	if now.Before(target) {
		wait := target.Sub(now)
		g.log.Infof("early trigger, sleeping %s until %s", wait.Round(time.Second), target.Format("15:04 MST"))
		g.sleep(wait)
		return true
	}
	if now.Sub(target) < g.grace {
		return true
	}
	g.log.Infof("past charging window (now %s, target %s), exiting", now.Format("15:04"), target.Format("15:04"))
	return false
}

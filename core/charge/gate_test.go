package charge

import (
	"testing"
	"time"

	"github.com/homecharge/homecharge/infra/logger"
)

// gateClock drives a Gate deterministically: sleeping advances the clock.
type gateClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *gateClock) install(g *Gate) {
	g.now = func() time.Time { return c.current }
	g.sleep = func(d time.Duration) {
		c.slept = append(c.slept, d)
		c.current = c.current.Add(d)
	}
}

func testGate(t *testing.T, now time.Time) (*Gate, *gateClock) {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	g := NewGate(DefaultTargetHour, DefaultTargetMinute, DefaultGrace, loc, logger.NopLogger{})
	clk := &gateClock{current: now.In(loc)}
	clk.install(g)
	return g, clk
}

func venueTime(t *testing.T, hour, min, sec int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2025, 3, 3, hour, min, sec, 0, loc)
}

func TestGateEarlyTriggerSleepsUntilTarget(t *testing.T) {
	g, clk := testGate(t, venueTime(t, 5, 49, 0))
	if !g.ShouldProceed() {
		t.Fatalf("early trigger must proceed after the sleep")
	}
	if len(clk.slept) != 1 {
		t.Fatalf("expected exactly one sleep, got %d", len(clk.slept))
	}
	if clk.slept[0] != 10*time.Minute {
		t.Fatalf("expected a 10m sleep got %v", clk.slept[0])
	}
}

func TestGateHourEarlyDSTTriggerSleepsForward(t *testing.T) {
	// A cron firing at the pre-DST hour shows up an hour early.
	g, clk := testGate(t, venueTime(t, 4, 59, 0))
	if !g.ShouldProceed() {
		t.Fatalf("hour-early trigger must proceed after the sleep")
	}
	if clk.slept[0] != time.Hour {
		t.Fatalf("expected a 1h sleep got %v", clk.slept[0])
	}
}

func TestGateWithinGraceProceedsWithoutSleep(t *testing.T) {
	g, clk := testGate(t, venueTime(t, 6, 2, 0))
	if !g.ShouldProceed() {
		t.Fatalf("trigger inside the grace window must proceed")
	}
	if len(clk.slept) != 0 {
		t.Fatalf("grace-window trigger must not sleep, slept %v", clk.slept)
	}
}

func TestGateAtTargetProceeds(t *testing.T) {
	g, clk := testGate(t, venueTime(t, 5, 59, 0))
	if !g.ShouldProceed() {
		t.Fatalf("trigger exactly at target must proceed")
	}
	if len(clk.slept) != 0 {
		t.Fatalf("on-time trigger must not sleep")
	}
}

func TestGatePastWindowRefuses(t *testing.T) {
	g, clk := testGate(t, venueTime(t, 6, 9, 0))
	if g.ShouldProceed() {
		t.Fatalf("trigger past the grace window must not proceed")
	}
	if len(clk.slept) != 0 {
		t.Fatalf("rejected trigger must not sleep")
	}
}

func TestGateGraceBoundaryExclusive(t *testing.T) {
	// Exactly target+grace is already outside the window.
	g, _ := testGate(t, venueTime(t, 6, 5, 0))
	if g.ShouldProceed() {
		t.Fatalf("target+grace must be rejected")
	}
}

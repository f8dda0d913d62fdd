package charge

import (
	"context"
	"fmt"
	"time"

	"github.com/homecharge/homecharge/core/chargepoint"
	"github.com/homecharge/homecharge/core/events"
	"github.com/homecharge/homecharge/core/logger"
	"github.com/homecharge/homecharge/internal/eventbus"
)

// Controller pacing defaults, matching the vendor backend's observed timing:
// a scheduled session winds down within minutes, and a start command that
// timed out ambiguously is visible on the charger within twenty seconds.
const (
	DefaultPollInterval  = 20 * time.Second
	DefaultPollAttempts  = 15
	DefaultStartAttempts = 3
	DefaultConfirmWait   = 20 * time.Second
)

// Outcome classifies how a charge run ended.
type Outcome string

const (
	// OutcomeStarted: a new session was started (or confirmed running
	// after an ambiguous timeout).
	OutcomeStarted Outcome = "started"
	// OutcomeNothingToDo: no vehicle plugged in, nothing to start.
	OutcomeNothingToDo Outcome = "nothing_to_do"
	// OutcomeScheduleActive: a pre-existing scheduled session outlasted
	// the wait budget. Assumed benign (holiday or extended schedule).
	OutcomeScheduleActive Outcome = "schedule_active"
	// OutcomeOutOfWindow: the run fired too long after the target instant
	// and exited without touching the charger.
	OutcomeOutOfWindow Outcome = "out_of_window"
	// OutcomeOffline: the charger is unreachable from the vendor backend.
	OutcomeOffline Outcome = "offline"
	// OutcomeUnconfirmed: every start attempt timed out and no re-poll
	// ever showed the session charging.
	OutcomeUnconfirmed Outcome = "unconfirmed"
	// OutcomeFailed: any other terminal failure.
	OutcomeFailed Outcome = "failed"
)

// Success reports whether the outcome maps to a zero exit code.
func (o Outcome) Success() bool {
	switch o {
	case OutcomeStarted, OutcomeNothingToDo, OutcomeScheduleActive, OutcomeOutOfWindow:
		return true
	}
	return false
}

// Result is the terminal state of one charge-control invocation. Attempts
// counts issued start commands, including ones that timed out.
type Result struct {
	Outcome   Outcome
	Reason    string
	ChargerID string
	Attempts  int
}

// Config tunes the controller's polling and retry budget. The zero value
// selects the defaults above; StationID has no default.
type Config struct {
	StationID     string
	PollInterval  time.Duration
	PollAttempts  int
	StartAttempts int
	ConfirmWait   time.Duration
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = DefaultPollAttempts
	}
	if c.StartAttempts <= 0 {
		c.StartAttempts = DefaultStartAttempts
	}
	if c.ConfirmWait <= 0 {
		c.ConfirmWait = DefaultConfirmWait
	}
}

// Controller runs the charge-start state machine against one account's home
// charger. It holds no persistent state of its own: every decision is made
// from a fresh status snapshot, never a cached one.
type Controller struct {
	client chargepoint.StatusClient
	cfg    Config
	log    logger.Logger
	bus    *eventbus.Bus[events.Event]

	now   func() time.Time
	sleep func(time.Duration)
}

// NewController builds a Controller. Missing Config fields take defaults.
func NewController(client chargepoint.StatusClient, cfg Config, log logger.Logger) *Controller {
	cfg.setDefaults()
	return &Controller{
		client: client,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// UseBus publishes run events on b. Without a bus events are dropped.
func (c *Controller) UseBus(b *eventbus.Bus[events.Event]) {
	c.bus = b
}

// Run executes one pass of the state machine:
//
//	CheckStatus -> offline?        -> Result{offline}
//	            -> unplugged?      -> Result{nothing_to_do}
//	            -> charging?       -> wait out the scheduled session
//	StartCharging (retry on ambiguous timeouts, confirm by re-poll)
//
// A returned error is a fatal communication or configuration failure; every
// state-machine-level ending, including failures like an offline charger, is
// expressed in the Result instead. Run never issues a start command while a
// session is confirmed charging.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if c.cfg.StationID == "" {
		return Result{Outcome: OutcomeFailed}, &chargepoint.ConfigError{Field: "station_id"}
	}

	chargers, err := c.client.ListHomeChargers(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("list home chargers: %w", err)
	}
	if len(chargers) == 0 {
		return Result{Outcome: OutcomeFailed, Reason: "no home chargers on account"}, nil
	}
	chargerID := chargers[0]

	status, err := c.client.GetStatus(ctx, chargerID)
	if err != nil {
		return Result{Outcome: OutcomeFailed, ChargerID: chargerID}, fmt.Errorf("charger %s status: %w", chargerID, err)
	}
	c.publish(events.StatusEvent{Status: status, Time: c.now()})
	c.log.Infof("charger %s: connected=%v plugged_in=%v state=%s", chargerID, status.Connected, status.PluggedIn, status.State)

	if !status.Connected {
		return Result{Outcome: OutcomeOffline, ChargerID: chargerID, Reason: "charger offline"}, nil
	}
	if !status.PluggedIn {
		return Result{Outcome: OutcomeNothingToDo, ChargerID: chargerID, Reason: "no vehicle plugged in"}, nil
	}

	if status.Charging() {
		res, done, err := c.waitForScheduledCharge(ctx, chargerID)
		if err != nil {
			return Result{Outcome: OutcomeFailed, ChargerID: chargerID}, err
		}
		if done {
			return res, nil
		}
	}

	return c.startCharging(ctx, chargerID)
}

// waitForScheduledCharge polls until the pre-existing session ends. done is
// true when the run is over without starting anything: the vehicle was
// unplugged mid-wait, or the session outlasted the budget (benign either
// way). done false means the session ended and a start may proceed.
func (c *Controller) waitForScheduledCharge(ctx context.Context, chargerID string) (res Result, done bool, err error) {
	c.log.Infof("scheduled charging active, waiting up to %d checks at %s intervals",
		c.cfg.PollAttempts, c.cfg.PollInterval)
	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		c.sleep(c.cfg.PollInterval)
		status, err := c.client.GetStatus(ctx, chargerID)
		if err != nil {
			return Result{}, false, fmt.Errorf("wait poll %d: %w", attempt, err)
		}
		c.publish(events.WaitEvent{Attempt: attempt, State: status.State, Time: c.now()})
		if !status.PluggedIn {
			c.log.Infof("vehicle unplugged during wait")
			return Result{Outcome: OutcomeNothingToDo, ChargerID: chargerID, Reason: "vehicle unplugged during wait"}, true, nil
		}
		if !status.Charging() {
			c.log.Infof("scheduled charging ended after %d checks (state %s)", attempt, status.State)
			return Result{}, false, nil
		}
	}
	c.log.Infof("scheduled charging still active after %d checks, leaving it alone", c.cfg.PollAttempts)
	return Result{Outcome: OutcomeScheduleActive, ChargerID: chargerID, Reason: "scheduled charging outlasted wait budget"}, true, nil
}

// startCharging issues the start command with the confirm-then-retry policy
// for ambiguous timeouts. A timeout whose follow-up poll shows the session
// charging counts as success; any non-timeout communication error is fatal.
func (c *Controller) startCharging(ctx context.Context, chargerID string) (Result, error) {
	for attempt := 1; attempt <= c.cfg.StartAttempts; attempt++ {
		err := c.client.StartSession(ctx, c.cfg.StationID)
		if err == nil {
			c.publish(events.StartEvent{Attempt: attempt, Time: c.now()})
			c.log.Infof("charging session started on attempt %d", attempt)
			return Result{Outcome: OutcomeStarted, ChargerID: chargerID, Attempts: attempt}, nil
		}
		if !chargepoint.IsStartTimeout(err) {
			return Result{Outcome: OutcomeFailed, ChargerID: chargerID, Attempts: attempt}, fmt.Errorf("start session: %w", err)
		}

		c.publish(events.StartEvent{Attempt: attempt, TimedOut: true, Time: c.now()})
		c.log.Warnf("start attempt %d/%d timed out, re-polling to confirm: %v", attempt, c.cfg.StartAttempts, err)
		c.sleep(c.cfg.ConfirmWait)

		status, serr := c.client.GetStatus(ctx, chargerID)
		if serr != nil {
			return Result{Outcome: OutcomeFailed, ChargerID: chargerID, Attempts: attempt}, fmt.Errorf("confirm after timeout: %w", serr)
		}
		if !status.PluggedIn {
			c.log.Infof("vehicle unplugged during start confirmation")
			return Result{Outcome: OutcomeNothingToDo, ChargerID: chargerID, Reason: "vehicle unplugged during start", Attempts: attempt}, nil
		}
		if status.Charging() {
			c.publish(events.StartEvent{Attempt: attempt, TimedOut: true, Confirmed: true, Time: c.now()})
			c.log.Infof("charging confirmed active, the timeout was spurious")
			return Result{Outcome: OutcomeStarted, ChargerID: chargerID, Reason: "confirmed after timeout", Attempts: attempt}, nil
		}
	}
	return Result{
		Outcome:   OutcomeUnconfirmed,
		ChargerID: chargerID,
		Reason:    fmt.Sprintf("start unconfirmed after %d attempts", c.cfg.StartAttempts),
		Attempts:  c.cfg.StartAttempts,
	}, nil
}

func (c *Controller) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

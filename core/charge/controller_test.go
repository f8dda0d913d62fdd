package charge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/homecharge/homecharge/core/chargepoint"
	"github.com/homecharge/homecharge/core/model"
	"github.com/homecharge/homecharge/infra/logger"
)

// scriptedClient serves a fixed sequence of status snapshots and start-command
// results. The last status repeats once the script runs out.
type scriptedClient struct {
	chargers    []string
	chargersErr error

	statuses   []model.ChargeStatus
	statusErr  error
	statusIdx  int
	statusGets int

	startErrs  []error
	startCalls int
}

func (c *scriptedClient) ListHomeChargers(context.Context) ([]string, error) {
	if c.chargersErr != nil {
		return nil, c.chargersErr
	}
	if c.chargers == nil {
		return []string{"charger-1"}, nil
	}
	return c.chargers, nil
}

func (c *scriptedClient) GetStatus(context.Context, string) (model.ChargeStatus, error) {
	c.statusGets++
	if c.statusErr != nil {
		return model.ChargeStatus{}, c.statusErr
	}
	if len(c.statuses) == 0 {
		return model.ChargeStatus{}, errors.New("no scripted status")
	}
	s := c.statuses[c.statusIdx]
	if c.statusIdx < len(c.statuses)-1 {
		c.statusIdx++
	}
	return s, nil
}

func (c *scriptedClient) StartSession(context.Context, string) error {
	c.startCalls++
	if c.startCalls <= len(c.startErrs) {
		return c.startErrs[c.startCalls-1]
	}
	return nil
}

func status(connected, plugged bool, state model.ChargingState) model.ChargeStatus {
	return model.ChargeStatus{DeviceID: "charger-1", Connected: connected, PluggedIn: plugged, State: state}
}

func startTimeout() error {
	return &chargepoint.CommError{
		Op:      chargepoint.OpStartSession,
		Timeout: true,
		Reason:  "session failed to start in time allotted",
	}
}

func newTestController(client *scriptedClient) (*Controller, *[]time.Duration) {
	c := NewController(client, Config{StationID: "station-7"}, logger.NopLogger{})
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c, &slept
}

func TestRunUnpluggedIsBenignNoOp(t *testing.T) {
	client := &scriptedClient{statuses: []model.ChargeStatus{
		status(true, false, model.StateNotCharging),
	}}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeNothingToDo || !res.Outcome.Success() {
		t.Fatalf("expected benign no-op, got %+v", res)
	}
	if client.startCalls != 0 {
		t.Fatalf("no start command may be issued, got %d", client.startCalls)
	}
}

func TestRunOfflineChargerFails(t *testing.T) {
	client := &scriptedClient{statuses: []model.ChargeStatus{
		status(false, true, model.StateNotCharging),
	}}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("offline is a result, not an error: %v", err)
	}
	if res.Outcome != OutcomeOffline || res.Outcome.Success() {
		t.Fatalf("expected offline failure, got %+v", res)
	}
	if client.startCalls != 0 {
		t.Fatalf("no start command may be issued, got %d", client.startCalls)
	}
}

func TestRunWaitsOutScheduledChargeThenStarts(t *testing.T) {
	client := &scriptedClient{statuses: []model.ChargeStatus{
		status(true, true, model.StateCharging),    // initial check
		status(true, true, model.StateCharging),    // wait poll 1
		status(true, true, model.StateNotCharging), // wait poll 2: schedule ended
	}}
	c, slept := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeStarted {
		t.Fatalf("expected started, got %+v", res)
	}
	if client.startCalls != 1 {
		t.Fatalf("expected exactly one start command after the transition, got %d", client.startCalls)
	}
	// Two wait polls, each preceded by one interval sleep.
	if len(*slept) != 2 {
		t.Fatalf("expected 2 sleeps got %v", *slept)
	}
}

func TestRunUnplugDuringWaitIsNoOp(t *testing.T) {
	client := &scriptedClient{statuses: []model.ChargeStatus{
		status(true, true, model.StateCharging),
		status(true, false, model.StateNotCharging), // unplugged mid-wait
	}}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeNothingToDo || !res.Outcome.Success() {
		t.Fatalf("expected benign no-op, got %+v", res)
	}
	if client.startCalls != 0 {
		t.Fatalf("no start command may follow an unplug, got %d", client.startCalls)
	}
}

func TestRunScheduleOutlastsWaitBudget(t *testing.T) {
	client := &scriptedClient{statuses: []model.ChargeStatus{
		status(true, true, model.StateCharging),
	}}
	c, slept := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeScheduleActive || !res.Outcome.Success() {
		t.Fatalf("an extended schedule is benign, got %+v", res)
	}
	if client.startCalls != 0 {
		t.Fatalf("must never start on top of an active session, got %d starts", client.startCalls)
	}
	if len(*slept) != DefaultPollAttempts {
		t.Fatalf("expected %d wait sleeps got %d", DefaultPollAttempts, len(*slept))
	}
}

func TestRunTimeoutConfirmedByRepoll(t *testing.T) {
	client := &scriptedClient{
		statuses: []model.ChargeStatus{
			status(true, true, model.StateNotCharging), // initial check
			status(true, true, model.StateCharging),    // confirm poll after timeout
		},
		startErrs: []error{startTimeout()},
	}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeStarted {
		t.Fatalf("spurious timeout must count as success, got %+v", res)
	}
	if res.Attempts != 1 || client.startCalls != 1 {
		t.Fatalf("expected exactly 1 start attempt, got attempts=%d calls=%d", res.Attempts, client.startCalls)
	}
}

func TestRunThreeUnconfirmedTimeoutsFail(t *testing.T) {
	client := &scriptedClient{
		statuses: []model.ChargeStatus{
			status(true, true, model.StateNotCharging),
		},
		startErrs: []error{startTimeout(), startTimeout(), startTimeout()},
	}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("exhausted retries are a result, not an error: %v", err)
	}
	if res.Outcome != OutcomeUnconfirmed || res.Outcome.Success() {
		t.Fatalf("expected unconfirmed failure, got %+v", res)
	}
	if res.Attempts != 3 || client.startCalls != 3 {
		t.Fatalf("expected exactly 3 attempts, got attempts=%d calls=%d", res.Attempts, client.startCalls)
	}
}

func TestRunTimeoutThenRetrySucceeds(t *testing.T) {
	client := &scriptedClient{
		statuses: []model.ChargeStatus{
			status(true, true, model.StateNotCharging),
		},
		startErrs: []error{startTimeout()},
	}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeStarted || res.Attempts != 2 {
		t.Fatalf("expected success on the second attempt, got %+v", res)
	}
}

func TestRunFatalStartErrorPropagates(t *testing.T) {
	fatal := &chargepoint.CommError{Op: chargepoint.OpStartSession, Reason: "500 internal error"}
	client := &scriptedClient{
		statuses:  []model.ChargeStatus{status(true, true, model.StateNotCharging)},
		startErrs: []error{fatal},
	}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err == nil {
		t.Fatalf("non-timeout communication errors must propagate")
	}
	if !errors.Is(err, fatal) {
		t.Fatalf("expected wrapped fatal error, got %v", err)
	}
	if res.Outcome.Success() {
		t.Fatalf("fatal error must not read as success")
	}
	if client.startCalls != 1 {
		t.Fatalf("fatal errors must not be retried, got %d calls", client.startCalls)
	}
}

func TestRunUnplugDuringStartConfirmIsNoOp(t *testing.T) {
	client := &scriptedClient{
		statuses: []model.ChargeStatus{
			status(true, true, model.StateNotCharging),
			status(true, false, model.StateNotCharging), // unplugged before confirm
		},
		startErrs: []error{startTimeout()},
	}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeNothingToDo || !res.Outcome.Success() {
		t.Fatalf("unplug during confirmation is benign, got %+v", res)
	}
}

func TestRunNoChargersOnAccountFails(t *testing.T) {
	client := &scriptedClient{chargers: []string{}}
	c, _ := newTestController(client)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("empty account is a result, not an error: %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failure, got %+v", res)
	}
}

func TestRunMissingStationIDIsConfigError(t *testing.T) {
	c := NewController(&scriptedClient{}, Config{}, logger.NopLogger{})
	_, err := c.Run(context.Background())
	var ce *chargepoint.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/homecharge/homecharge/core/charge"
	"github.com/homecharge/homecharge/core/chargepoint"
	"github.com/homecharge/homecharge/core/events"
	"github.com/homecharge/homecharge/core/model"
	"github.com/homecharge/homecharge/infra/logger"
	"github.com/homecharge/homecharge/infra/metrics"
	"github.com/homecharge/homecharge/internal/eventbus"
)

// scriptedClient plays back a scenario's status polls and start results.
type scriptedClient struct {
	chargerID    string
	statuses     []model.ChargeStatus
	statusIdx    int
	startResults []string
	starts       int
}

func (c *scriptedClient) ListHomeChargers(ctx context.Context) ([]string, error) {
	if c.chargerID == "" {
		return nil, nil
	}
	return []string{c.chargerID}, nil
}

func (c *scriptedClient) GetStatus(ctx context.Context, chargerID string) (model.ChargeStatus, error) {
	if len(c.statuses) == 0 {
		return model.ChargeStatus{}, &chargepoint.CommError{Op: chargepoint.OpGetStatus, Reason: "no scripted status"}
	}
	st := c.statuses[c.statusIdx]
	if c.statusIdx < len(c.statuses)-1 {
		c.statusIdx++
	}
	return st, nil
}

func (c *scriptedClient) StartSession(ctx context.Context, stationID string) error {
	res := "ok"
	if c.starts < len(c.startResults) {
		res = c.startResults[c.starts]
	}
	c.starts++
	switch res {
	case "timeout":
		return &chargepoint.CommError{Op: chargepoint.OpStartSession, Timeout: true, Reason: "no confirmation"}
	case "error":
		return &chargepoint.CommError{Op: chargepoint.OpStartSession, Reason: "rejected"}
	}
	return nil
}

// RunScenario replays one scripted charge run and checks its terminal state.
// The metrics pipeline runs for real, so the suite also covers the
// bus-to-sink path.
func RunScenario(t *testing.T, sc *Scenario) {
	sink, err := metrics.NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	client := &scriptedClient{chargerID: sc.Charger, startResults: sc.StartResults}
	for _, st := range sc.Statuses {
		client.statuses = append(client.statuses, st.ToModel(sc.Charger))
	}

	bus := eventbus.New[events.Event]()
	done := metrics.StartEventCollector(context.Background(), bus, sink)

	ctrl := charge.NewController(client, charge.Config{
		StationID:     "station-1",
		PollInterval:  time.Millisecond,
		PollAttempts:  sc.PollAttempts,
		StartAttempts: sc.StartAttempts,
		ConfirmWait:   time.Millisecond,
	}, logger.NopLogger{})
	ctrl.UseBus(bus)

	res, runErr := ctrl.Run(context.Background())
	bus.Publish(events.OutcomeEvent{
		RunID:     "qa",
		Outcome:   string(res.Outcome),
		Reason:    res.Reason,
		Attempts:  res.Attempts,
		StationID: "station-1",
		Time:      time.Now(),
	})
	bus.Close()
	<-done

	if runErr != nil && sc.Expected.Outcome != string(charge.OutcomeFailed) {
		t.Fatalf("scenario %s: run: %v", sc.Name, runErr)
	}
	if string(res.Outcome) != sc.Expected.Outcome {
		t.Errorf("scenario %s: expected outcome %s, got %s (%s)", sc.Name, sc.Expected.Outcome, res.Outcome, res.Reason)
	}
	if res.Attempts != sc.Expected.Attempts {
		t.Errorf("scenario %s: expected %d attempts, got %d", sc.Name, sc.Expected.Attempts, res.Attempts)
	}
	if client.starts != sc.Expected.Starts {
		t.Errorf("scenario %s: expected %d start commands, got %d", sc.Name, sc.Expected.Starts, client.starts)
	}
}

package metrics

import (
	"context"

	"github.com/homecharge/homecharge/core/events"
	coremetrics "github.com/homecharge/homecharge/core/metrics"
	"github.com/homecharge/homecharge/internal/eventbus"
)

// StartEventCollector subscribes to the run-event bus and records charge-run
// outcomes on sink. Fetch and cache metrics are recorded at their call sites;
// only controller events travel over the bus. The collector stops when the
// context is canceled or the bus is closed; the returned channel closes once
// every buffered event has been recorded, so a caller that closes the bus can
// wait for the final outcome to land before exiting.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.Sink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if oe, isOutcome := ev.(events.OutcomeEvent); isOutcome {
					_ = sink.RecordChargeRun(coremetrics.ChargeRunEvent{
						Outcome:   oe.Outcome,
						Reason:    oe.Reason,
						Attempts:  oe.Attempts,
						StationID: oe.StationID,
						Duration:  oe.Duration,
						Time:      oe.Time,
					})
				}
			}
		}
	}()
	return done
}

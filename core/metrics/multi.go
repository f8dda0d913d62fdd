package metrics

// MultiSink fans every event out to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAPIRequest forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordAPIRequest(ev APIRequestEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAPIRequest(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordCacheLookup forwards cache lookup events.
func (m *MultiSink) RecordCacheLookup(ev CacheLookupEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCacheLookup(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordMonthSync forwards month sync summaries.
func (m *MultiSink) RecordMonthSync(ev MonthSyncEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordMonthSync(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordChargeRun forwards charge-run outcomes.
func (m *MultiSink) RecordChargeRun(ev ChargeRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordChargeRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSessionEnergy forwards energy points to sinks that support them.
func (m *MultiSink) RecordSessionEnergy(evs []SessionEnergyEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SessionEnergyRecorder); ok {
			if err := rec.RecordSessionEnergy(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases sinks that hold connections, returning the first error.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	NopSink
	calls  int
	energy int
	err    error
}

func (r *recordSink) RecordChargeRun(ChargeRunEvent) error {
	r.calls++
	return r.err
}

func (r *recordSink) RecordSessionEnergy([]SessionEnergyEvent) error {
	r.energy++
	return nil
}

// plainSink implements Sink without SessionEnergyRecorder, standing in for a
// counter-based sink with no per-session storage.
type plainSink struct{ calls int }

func (p *plainSink) RecordAPIRequest(APIRequestEvent) error   { return nil }
func (p *plainSink) RecordCacheLookup(CacheLookupEvent) error { return nil }
func (p *plainSink) RecordMonthSync(MonthSyncEvent) error     { return nil }
func (p *plainSink) RecordChargeRun(ChargeRunEvent) error {
	p.calls++
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordChargeRun(ChargeRunEvent{Outcome: "started"}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if s1.calls != 1 || s2.calls != 1 {
		t.Fatalf("event not forwarded to all sinks: %d, %d", s1.calls, s2.calls)
	}
}

func TestMultiSinkFirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordChargeRun(ChargeRunEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	// The failing sink stops the fan-out.
	if s2.calls != 0 {
		t.Fatalf("expected short circuit, second sink saw %d calls", s2.calls)
	}
}

func TestMultiSinkEnergySkipsNonRecorders(t *testing.T) {
	rec := &recordSink{}
	plain := &plainSink{}
	m := NewMultiSink(rec, plain)
	if err := m.RecordSessionEnergy([]SessionEnergyEvent{{SessionID: "1"}}); err != nil {
		t.Fatalf("record energy: %v", err)
	}
	if rec.energy != 1 {
		t.Fatalf("recorder did not receive energy events: %d", rec.energy)
	}
	if plain.calls != 0 {
		t.Fatalf("plain sink unexpectedly called: %d", plain.calls)
	}
}

func TestNewSinkDefaultsToNop(t *testing.T) {
	s, err := NewSink(nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
}

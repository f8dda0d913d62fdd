package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/homecharge/homecharge/core/metrics"
)

func TestPromSinkRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	if err := sink.RecordAPIRequest(coremetrics.APIRequestEvent{
		Op:       "activity_page",
		Duration: 120 * time.Millisecond,
	}); err != nil {
		t.Fatalf("record api request: %v", err)
	}
	if err := sink.RecordChargeRun(coremetrics.ChargeRunEvent{
		Outcome:  "started",
		Attempts: 1,
		Duration: 40 * time.Second,
	}); err != nil {
		t.Fatalf("record charge run: %v", err)
	}

	expected := `
# HELP chargepoint_api_requests_total Vendor API round trips
# TYPE chargepoint_api_requests_total counter
chargepoint_api_requests_total{failed="false",op="activity_page"} 1
`
	if err := testutil.CollectAndCompare(sink.apiRequests, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected api metrics: %v", err)
	}
	expectedRuns := `
# HELP charge_runs_total Charge-control invocations by outcome
# TYPE charge_runs_total counter
charge_runs_total{outcome="started"} 1
`
	if err := testutil.CollectAndCompare(sink.chargeRuns, strings.NewReader(expectedRuns)); err != nil {
		t.Errorf("unexpected run metrics: %v", err)
	}
	if c := testutil.CollectAndCount(sink.apiLatency); c == 0 {
		t.Error("api latency not recorded")
	}
}

func TestPromSinkCacheAndSyncCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := sink.RecordCacheLookup(coremetrics.CacheLookupEvent{Tier: "month", Hit: i > 0}); err != nil {
			t.Fatalf("record lookup: %v", err)
		}
	}
	if err := sink.RecordMonthSync(coremetrics.MonthSyncEvent{
		Year: 2025, Month: time.March, Pages: 4, Sessions: 11,
	}); err != nil {
		t.Fatalf("record sync: %v", err)
	}

	if got := testutil.ToFloat64(sink.cacheLookups.WithLabelValues("month", "true")); got != 2 {
		t.Errorf("expected 2 month hits, got %v", got)
	}
	if got := testutil.ToFloat64(sink.cacheLookups.WithLabelValues("month", "false")); got != 1 {
		t.Errorf("expected 1 month miss, got %v", got)
	}
	if got := testutil.ToFloat64(sink.pages); got != 4 {
		t.Errorf("expected 4 pages, got %v", got)
	}
	if got := testutil.ToFloat64(sink.sessions); got != 11 {
		t.Errorf("expected 11 sessions, got %v", got)
	}
}

func TestPromSinkReregistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}

	if err := first.RecordChargeRun(coremetrics.ChargeRunEvent{Outcome: "failed"}); err != nil {
		t.Fatalf("record on first: %v", err)
	}
	if err := second.RecordChargeRun(coremetrics.ChargeRunEvent{Outcome: "failed"}); err != nil {
		t.Fatalf("record on second: %v", err)
	}
	if got := testutil.ToFloat64(second.chargeRuns.WithLabelValues("failed")); got != 2 {
		t.Errorf("collectors not shared, got %v", got)
	}
}

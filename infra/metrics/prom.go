package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/homecharge/homecharge/core/metrics"
)

// PromSink records operational events as Prometheus metrics. Per-session
// energy has no counter representation, so PromSink deliberately does not
// implement SessionEnergyRecorder.
type PromSink struct {
	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	monthSyncs   *prometheus.CounterVec
	pages        prometheus.Counter
	sessions     prometheus.Counter
	chargeRuns   *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

var _ coremetrics.Sink = (*PromSink)(nil)

// NewPromSink registers the metrics on the default Prometheus registerer. The
// scrape endpoint is served separately; see StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global one. Collectors that are already
// registered are reused, so repeated construction is safe.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	s.apiRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chargepoint_api_requests_total",
		Help: "Vendor API round trips",
	}, []string{"op", "failed"}))
	if err != nil {
		return nil, err
	}
	s.apiLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chargepoint_api_request_seconds",
		Help:    "Vendor API round trip duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	s.cacheLookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache consultations by tier",
	}, []string{"tier", "hit"}))
	if err != nil {
		return nil, err
	}
	s.monthSyncs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "month_syncs_total",
		Help: "Month history syncs",
	}, []string{"from_cache"}))
	if err != nil {
		return nil, err
	}
	s.pages, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_pages_fetched_total",
		Help: "History pages fetched from the vendor",
	}))
	if err != nil {
		return nil, err
	}
	s.sessions, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_sessions_fetched_total",
		Help: "In-window sessions returned by month syncs",
	}))
	if err != nil {
		return nil, err
	}
	s.chargeRuns, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charge_runs_total",
		Help: "Charge-control invocations by outcome",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	s.runDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "charge_run_seconds",
		Help:    "Charge-control run duration",
		Buckets: []float64{1, 5, 15, 60, 120, 300, 600},
	}))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing the existing collector when the metric is
// already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(C), nil
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordAPIRequest counts the round trip and observes its latency.
func (s *PromSink) RecordAPIRequest(ev coremetrics.APIRequestEvent) error {
	s.apiRequests.WithLabelValues(ev.Op, strconv.FormatBool(ev.Failed)).Inc()
	s.apiLatency.WithLabelValues(ev.Op).Observe(ev.Duration.Seconds())
	return nil
}

// RecordCacheLookup counts one cache consultation.
func (s *PromSink) RecordCacheLookup(ev coremetrics.CacheLookupEvent) error {
	s.cacheLookups.WithLabelValues(ev.Tier, strconv.FormatBool(ev.Hit)).Inc()
	return nil
}

// RecordMonthSync counts the sync and accumulates its page and session totals.
func (s *PromSink) RecordMonthSync(ev coremetrics.MonthSyncEvent) error {
	s.monthSyncs.WithLabelValues(strconv.FormatBool(ev.FromCache)).Inc()
	s.pages.Add(float64(ev.Pages))
	s.sessions.Add(float64(ev.Sessions))
	return nil
}

// RecordChargeRun counts the run by outcome and observes its duration.
func (s *PromSink) RecordChargeRun(ev coremetrics.ChargeRunEvent) error {
	s.chargeRuns.WithLabelValues(ev.Outcome).Inc()
	s.runDuration.Observe(ev.Duration.Seconds())
	return nil
}

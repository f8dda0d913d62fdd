package metrics

// Package metrics defines interfaces and implementations for collecting
// operational metrics. Sinks like PromSink and InfluxSink record events such
// as API round trips, cache lookups or charge-run outcomes and can be
// combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.

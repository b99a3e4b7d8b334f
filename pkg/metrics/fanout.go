package metrics

import "github.com/oio-go/blobkit/fanout"

// NewFanoutMetrics creates a new Prometheus-backed fanout.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// A nil result is not a usable sink: the fan-out engines' WithMetrics
// stores whatever it is given, and an engine keeps its default no-op
// sink only when WithMetrics is not called.
func NewFanoutMetrics() fanout.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusFanoutMetrics()
}

// newPrometheusFanoutMetrics is implemented in pkg/metrics/prometheus/fanout.go.
// This indirection avoids an import cycle (fanout <- metrics <- metrics/prometheus -> fanout).
var newPrometheusFanoutMetrics func() fanout.Metrics

// RegisterFanoutMetricsConstructor registers the Prometheus fanout metrics
// constructor. Called by pkg/metrics/prometheus/fanout.go during package
// initialization.
func RegisterFanoutMetricsConstructor(constructor func() fanout.Metrics) {
	newPrometheusFanoutMetrics = constructor
}

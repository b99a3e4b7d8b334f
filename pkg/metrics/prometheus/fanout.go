package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oio-go/blobkit/fanout"
	"github.com/oio-go/blobkit/pkg/metrics"
)

func init() {
	metrics.RegisterFanoutMetricsConstructor(NewFanoutMetrics)
}

// fanoutMetrics is the Prometheus implementation of fanout.Metrics.
type fanoutMetrics struct {
	targetAttempts   *prometheus.CounterVec
	targetSuccesses  *prometheus.CounterVec
	quorumOutcomes   *prometheus.CounterVec
	reconstructRatio prometheus.Histogram
}

// NewFanoutMetrics creates a new Prometheus-backed fanout.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewFanoutMetrics() fanout.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &fanoutMetrics{
		targetAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobkit_fanout_target_attempts_total",
				Help: "Total number of per-target operations attempted by a fan-out engine",
			},
			[]string{"op"},
		),
		targetSuccesses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobkit_fanout_target_successes_total",
				Help: "Total number of per-target operations that returned OK",
			},
			[]string{"op"},
		),
		quorumOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobkit_fanout_quorum_outcomes_total",
				Help: "Total number of fan-out operations by whether quorum was met",
			},
			[]string{"op", "met"},
		),
		reconstructRatio: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "blobkit_fanout_erasure_reconstruct_ratio",
				Help: "Fraction of fragments available at reconstruction time (used/total)",
				Buckets: []float64{
					0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0,
				},
			},
		),
	}
}

func (m *fanoutMetrics) TargetAttempt(op string) {
	if m == nil {
		return
	}
	m.targetAttempts.WithLabelValues(op).Inc()
}

func (m *fanoutMetrics) TargetSuccess(op string) {
	if m == nil {
		return
	}
	m.targetSuccesses.WithLabelValues(op).Inc()
}

func (m *fanoutMetrics) Quorum(op string, met bool) {
	if m == nil {
		return
	}
	label := "false"
	if met {
		label = "true"
	}
	m.quorumOutcomes.WithLabelValues(op, label).Inc()
}

func (m *fanoutMetrics) ErasureReconstruct(used, total int) {
	if m == nil || total <= 0 {
		return
	}
	m.reconstructRatio.Observe(float64(used) / float64(total))
}

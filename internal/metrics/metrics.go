// Package metrics exposes Prometheus collectors for bot activity. A nil
// *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "liquidity_pilot"

type Recorder struct {
	transitions *prometheus.CounterVec
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	limited     prometheus.Counter
	sessions    prometheus.GaugeFunc
}

// New registers collectors on reg. activeSessions may be nil.
func New(reg prometheus.Registerer, activeSessions func() float64) *Recorder {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Open-position workflow transitions by step and outcome.",
		}, []string{"step", "outcome"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Position lifecycle operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lifecycle_operation_seconds",
			Help:      "Position lifecycle operation latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"op"}),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Inbound updates dropped by the per-user rate limiter.",
		}),
	}
	collectors := []prometheus.Collector{r.transitions, r.operations, r.latency, r.limited}
	if activeSessions != nil {
		r.sessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_active_sessions",
			Help:      "Users with an open-position flow in progress.",
		}, activeSessions)
		collectors = append(collectors, r.sessions)
	}
	reg.MustRegister(collectors...)
	return r
}

func (r *Recorder) Transition(step, outcome string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(step, outcome).Inc()
}

func (r *Recorder) Operation(op, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, outcome).Inc()
	r.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *Recorder) RateLimited() {
	if r == nil {
		return
	}
	r.limited.Inc()
}

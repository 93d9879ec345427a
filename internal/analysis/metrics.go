package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's Prometheus instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	saveFailure prometheus.Counter
}

// NewMetrics registers the pipeline instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estinsight",
			Name:      "analyses_total",
			Help:      "Analyses run, by narrative source (llm, quick, fallback) or error.",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "estinsight",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one analysis including narrative generation.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		saveFailure: f.NewCounter(prometheus.CounterOpts{
			Namespace: "estinsight",
			Name:      "memory_save_failures_total",
			Help:      "Insights that could not be persisted.",
		}),
	}
}

func (m *Metrics) observe(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) saveFailed() {
	if m == nil {
		return
	}
	m.saveFailure.Inc()
}

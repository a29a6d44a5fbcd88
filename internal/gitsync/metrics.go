package gitsync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records git operation outcomes and durations.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoedit",
			Subsystem: "git",
			Name:      "operations_total",
			Help:      "Git operations by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "geoedit",
			Subsystem: "git",
			Name:      "operation_duration_seconds",
			Help:      "Duration of git operations.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.duration)
	}
	return m
}

func (m *Metrics) observe(op string, start time.Time, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(Classify(err))
}

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatch outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	results  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the dispatch collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "venuemail",
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Notification send attempts by result (sent, failed, skipped).",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "venuemail",
			Subsystem: "dispatch",
			Name:      "session_seconds",
			Help:      "Time spent on one relay session.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.results, m.duration)
	}
	return m
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(r.Status()).Inc()
	if r.Attempted {
		m.duration.Observe(r.Took.Seconds())
	}
}

// Count returns the counter for result; used by tests and status output.
func (m *Metrics) Count(result string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.results.WithLabelValues(result)
}

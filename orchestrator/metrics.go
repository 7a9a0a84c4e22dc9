package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks operation outcomes.
type Metrics struct {
	started   *prometheus.CounterVec
	confirmed *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewMetrics registers the orchestrator collectors with reg. A nil registerer
// yields no-op metrics that are never exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintgram",
			Subsystem: "orchestrator",
			Name:      "operations_started_total",
			Help:      "Creation operations started, by kind.",
		}, []string{"kind"}),
		confirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintgram",
			Subsystem: "orchestrator",
			Name:      "operations_confirmed_total",
			Help:      "Creation operations confirmed, by kind and winning race path.",
		}, []string{"kind", "path"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintgram",
			Subsystem: "orchestrator",
			Name:      "operations_failed_total",
			Help:      "Creation operations failed, by kind and error kind.",
		}, []string{"kind", "error"}),
	}
	if reg != nil {
		reg.MustRegister(m.started, m.confirmed, m.failed)
	}
	return m
}

func (m *Metrics) recordStart(kind Kind) {
	m.started.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordConfirmed(kind Kind, path string) {
	m.confirmed.WithLabelValues(string(kind), path).Inc()
}

func (m *Metrics) recordFailed(kind Kind, errKind ErrorKind) {
	m.failed.WithLabelValues(string(kind), string(errKind)).Inc()
}

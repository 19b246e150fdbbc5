package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for voice call flows.
type CallMetrics struct {
	turnsTotal    *prometheus.CounterVec
	outcomesTotal *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	turnLatency   prometheus.Histogram
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "voice",
			Name:      "turns_total",
			Help:      "Total processed call turns",
		}, []string{"status"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "outcomes_total",
			Help:      "Total negotiated scheduling outcomes",
		}, []string{"intent", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "voice",
			Name:      "llm_latency_seconds",
			Help:      "Latency of assistant reply generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "voice",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one call turn",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.outcomesTotal, m.llmLatency, m.turnLatency)
	return m
}

func (m *CallMetrics) ObserveTurn(status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(status).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *CallMetrics) ObserveOutcome(intent, outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(intent, outcome).Inc()
}

func (m *CallMetrics) ObserveLLMLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(status).Observe(seconds)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// RunMetrics exposes counters and histograms for correspondence runs.
type RunMetrics struct {
	runsTotal     *prometheus.CounterVec
	messagesTotal *prometheus.CounterVec
	matchesTotal  *prometheus.CounterVec
	offeredSlots  prometheus.Gauge
	runDuration   prometheus.Histogram
	retriesTotal  *prometheus.CounterVec
}

func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	m := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachmail",
			Subsystem: "run",
			Name:      "total",
			Help:      "Completed correspondence runs by outcome",
		}, []string{"outcome"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachmail",
			Subsystem: "run",
			Name:      "messages_total",
			Help:      "Processed inbound messages by classification",
		}, []string{"kind"}),
		matchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachmail",
			Subsystem: "run",
			Name:      "matches_total",
			Help:      "Reply matching outcomes",
		}, []string{"result"}),
		offeredSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coachmail",
			Subsystem: "run",
			Name:      "offered_slots",
			Help:      "Free slots available in the last run",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coachmail",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of one correspondence run",
			Buckets:   prometheus.DefBuckets,
		}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachmail",
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Retried transport operations",
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.messagesTotal, m.matchesTotal, m.offeredSlots, m.runDuration, m.retriesTotal)
	return m
}

func (m *RunMetrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(seconds)
}

func (m *RunMetrics) ObserveMessage(kind string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(kind).Inc()
}

func (m *RunMetrics) ObserveMatch(result string) {
	if m == nil {
		return
	}
	m.matchesTotal.WithLabelValues(result).Inc()
}

func (m *RunMetrics) SetOfferedSlots(n int) {
	if m == nil {
		return
	}
	m.offeredSlots.Set(float64(n))
}

func (m *RunMetrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(operation).Inc()
}

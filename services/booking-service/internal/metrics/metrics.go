package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for slot queries and commit-time guard outcomes.
type BookingMetrics struct {
	slotQueries   *prometheus.CounterVec
	guardOutcomes *prometheus.CounterVec
	suggestions   *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navalha",
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Availability queries by conflict-detection mode",
		}, []string{"mode", "surface"}),
		guardOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navalha",
			Subsystem: "booking",
			Name:      "guard_outcomes_total",
			Help:      "Commit-time conflict guard outcomes",
		}, []string{"outcome", "stage"}),
		suggestions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navalha",
			Subsystem: "booking",
			Name:      "suggestions_returned",
			Help:      "Number of alternative slots offered after a conflict",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}, []string{"surface"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueries, m.guardOutcomes, m.suggestions)
	return m
}

func (m *BookingMetrics) ObserveSlotQuery(mode, surface string) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(mode, surface).Inc()
}

func (m *BookingMetrics) ObserveGuardOutcome(outcome, stage string) {
	if m == nil {
		return
	}
	m.guardOutcomes.WithLabelValues(outcome, stage).Inc()
}

func (m *BookingMetrics) ObserveSuggestions(surface string, n int) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(surface).Observe(float64(n))
}

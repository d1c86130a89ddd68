package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveSlotQuery("start_time_only", "admin")
	m.ObserveSlotQuery("start_time_only", "admin")
	m.ObserveGuardOutcome("rejected", "revalidate")

	if got := testutil.ToFloat64(m.slotQueries.WithLabelValues("start_time_only", "admin")); got != 2 {
		t.Fatalf("expected 2 degraded queries, got %v", got)
	}
	if got := testutil.ToFloat64(m.guardOutcomes.WithLabelValues("rejected", "revalidate")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
}

func TestBookingMetrics_NilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveSlotQuery("duration_aware", "public")
	m.ObserveGuardOutcome("committed", "persist")
	m.ObserveSuggestions("public", 3)
}

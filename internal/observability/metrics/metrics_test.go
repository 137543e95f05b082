package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestAppointmentMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAppointmentMetrics(reg)
	m.ObserveCreated("staff")
	m.ObserveTransition("scheduled", "confirmed", "applied")
	m.ObserveQueueReserved()
}

func TestAppointmentMetricsNilSafe(t *testing.T) {
	var m *AppointmentMetrics
	m.ObserveCreated("walk-in")
	m.ObserveTransition("confirmed", "completed", "conflict")
	m.ObserveQueueReserved()
}

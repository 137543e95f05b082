package metrics

import "github.com/prometheus/client_golang/prometheus"

// AppointmentMetrics exposes counters for the scheduling core.
type AppointmentMetrics struct {
	createdTotal       *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	queueReservedTotal prometheus.Counter
}

func NewAppointmentMetrics(reg prometheus.Registerer) *AppointmentMetrics {
	m := &AppointmentMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "appointments",
			Name:      "created_total",
			Help:      "Appointments created, by admission path",
		}, []string{"origin"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Status transition attempts and their outcome",
		}, []string{"from", "to", "result"}),
		queueReservedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "walkin_queue",
			Name:      "numbers_reserved_total",
			Help:      "Walk-in queue numbers handed out",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.transitionsTotal, m.queueReservedTotal)
	return m
}

func (m *AppointmentMetrics) ObserveCreated(origin string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(origin).Inc()
}

func (m *AppointmentMetrics) ObserveTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, result).Inc()
}

func (m *AppointmentMetrics) ObserveQueueReserved() {
	if m == nil {
		return
	}
	m.queueReservedTotal.Inc()
}

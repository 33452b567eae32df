package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics counts fan-out activity.
type DispatchMetrics struct {
	notified   prometheus.Counter
	ineligible prometheus.Counter
	malformed  prometheus.Counter
}

// NewDispatchMetrics registers dispatch counters on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	notified := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_cleaners_notified_total",
		Help: "Cleaners notified about a newly paid job.",
	})
	ineligible := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_cleaners_ineligible_total",
		Help: "On-duty cleaners filtered out by geofence eligibility.",
	})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_malformed_polygons_total",
		Help: "Geofence polygons with fewer than three vertices seen during eligibility checks.",
	})
	reg.MustRegister(notified, ineligible, malformed)
	return &DispatchMetrics{notified: notified, ineligible: ineligible, malformed: malformed}
}

func (m *DispatchMetrics) IncNotified() {
	if m == nil || m.notified == nil {
		return
	}
	m.notified.Inc()
}

func (m *DispatchMetrics) IncIneligible() {
	if m == nil || m.ineligible == nil {
		return
	}
	m.ineligible.Inc()
}

func (m *DispatchMetrics) IncMalformedPolygon() {
	if m == nil || m.malformed == nil {
		return
	}
	m.malformed.Inc()
}

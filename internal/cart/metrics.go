package cart

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	PersistFailures prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Cart snapshots that could not be written",
		}),
	}
	reg.MustRegister(m.PersistFailures)
	return m
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

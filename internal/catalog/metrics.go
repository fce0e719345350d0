package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeRejected    = "rejected"
)

type Metrics struct {
	Queries    *prometheus.CounterVec
	Latency    prometheus.Histogram
	Superseded prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_queries_total",
				Help: "Catalog queries by outcome",
			},
			[]string{"outcome"},
		),
		Latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "catalog_query_duration_seconds",
				Help: "Catalog source round trip",
			},
		),
		Superseded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_results_superseded_total",
				Help: "Query results discarded because a newer query was issued",
			},
		),
	}

	reg.MustRegister(m.Queries, m.Latency, m.Superseded)
	return m
}

func (m *Metrics) observe(start time.Time, outcome string) {
	if m == nil {
		return
	}
	m.Latency.Observe(time.Since(start).Seconds())
	m.Queries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) superseded() {
	if m == nil {
		return
	}
	m.Superseded.Inc()
}

// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Placement outcomes.
const (
	OutcomePlaced   = "placed"
	OutcomeNoBed    = "no_bed"
	OutcomeRejected = "rejected"
)

// Bed gauge states.
const (
	BedsOccupied    = "occupied"
	BedsFree        = "free"
	BedsUnavailable = "unavailable"
)

// Metrics groups the collectors recorded by the stay service and the router.
type Metrics struct {
	registry    *prometheus.Registry
	Placements  *prometheus.CounterVec
	Discharges  prometheus.Counter
	HTTPLatency *prometheus.HistogramVec
	Beds        *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Placements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bedplanner",
			Name:      "placements_total",
			Help:      "Placement attempts by outcome.",
		}, []string{"outcome"}),
		Discharges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bedplanner",
			Name:      "discharges_total",
			Help:      "Stays moved to the discharged state.",
		}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bedplanner",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		Beds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bedplanner",
			Name:      "beds",
			Help:      "Beds by state as of the last census.",
		}, []string{"state"}),
	}
}

// SetBeds records one census.
func (m *Metrics) SetBeds(occupied, free, unavailable int) {
	m.Beds.WithLabelValues(BedsOccupied).Set(float64(occupied))
	m.Beds.WithLabelValues(BedsFree).Set(float64(free))
	m.Beds.WithLabelValues(BedsUnavailable).Set(float64(unavailable))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

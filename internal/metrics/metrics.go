// Package metrics exposes scan counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records scan activity. The zero value is not usable; call
// NewCollector.
type Collector struct {
	scanRuns          *prometheus.CounterVec
	routes            *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	directionsLatency prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routewatch_scan_runs_total",
			Help: "Completed scan runs by result.",
		}, []string{"result"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routewatch_routes_total",
			Help: "Routes handled by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routewatch_notifications_total",
			Help: "Alert notifications by send result.",
		}, []string{"result"}),
		directionsLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "routewatch_directions_latency_seconds",
			Help:    "Latency of directions lookups.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.scanRuns, c.routes, c.notifications, c.directionsLatency)
	return c
}

func (c *Collector) RecordRun(result string) {
	c.scanRuns.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRoute(outcome string) {
	c.routes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordNotification(ok bool) {
	res := "sent"
	if !ok {
		res = "failed"
	}
	c.notifications.WithLabelValues(res).Inc()
}

func (c *Collector) ObserveDirectionsLatency(d time.Duration) {
	c.directionsLatency.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

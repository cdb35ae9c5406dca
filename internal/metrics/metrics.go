// Package metrics holds the Prometheus collectors exported by the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomrelay"

// Metrics groups the relay's collectors. Build it with New; a registry of nil
// yields working but unregistered collectors, which is what tests use.
type Metrics struct {
	Rooms             prometheus.Gauge
	Connections       prometheus.Gauge
	Events            *prometheus.CounterVec
	DecodeErrors      prometheus.Counter
	Deliveries        prometheus.Counter
	DroppedDeliveries prometheus.Counter
	ActivityDropped   prometheus.Counter
	ActivityFailed    prometheus.Counter
}

// New creates the collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms currently present in the registry.",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently bound to a session.",
		}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_events_total",
			Help:      "Decoded client events by kind.",
		}, []string{"kind"}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames rejected as malformed.",
		}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Broadcast frames handed to a recipient connection.",
		}),
		DroppedDeliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Broadcast frames a recipient connection refused.",
		}),
		ActivityDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_dropped_total",
			Help:      "Activity events discarded because the dispatch buffer was full.",
		}),
		ActivityFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_publish_errors_total",
			Help:      "Activity events the sink failed to publish.",
		}),
	}
}

// Handler exposes g for Prometheus scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the client's Prometheus collectors. With a nil registerer the
// collectors still count but are not exported.
type Metrics struct {
	EventsSent     *prometheus.CounterVec
	EventsReceived *prometheus.CounterVec
	Actions        *prometheus.CounterVec
	ThrottlePauses prometheus.Counter
	Ready          prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer, object string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"object": object}
	return &Metrics{
		EventsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "aliot",
			Name:        "events_sent_total",
			Help:        "Events written to the transport, by event tag.",
			ConstLabels: labels,
		}, []string{"event"}),
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "aliot",
			Name:        "events_received_total",
			Help:        "Frames read from the transport, by event tag.",
			ConstLabels: labels,
		}, []string{"event"}),
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "aliot",
			Name:        "actions_total",
			Help:        "Action records handled, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		ThrottlePauses: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "aliot",
			Name:        "throttle_pauses_total",
			Help:        "Pauses imposed on senders by the outbound throttle.",
			ConstLabels: labels,
		}),
		Ready: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "aliot",
			Name:        "ready",
			Help:        "1 while the connection is open and the handshake acknowledged.",
			ConstLabels: labels,
		}),
	}
}

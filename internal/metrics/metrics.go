package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jam",
		Name:      "connections",
		Help:      "Live signal connections.",
	})

	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jam",
		Name:      "rooms",
		Help:      "Rooms with at least one member.",
	})

	Relayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jam",
		Name:      "relayed_events_total",
		Help:      "Events handed to the relay, by type and outcome.",
	}, []string{"type", "outcome"})

	Dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jam",
		Name:      "backpressure_total",
		Help:      "Frames not delivered because a send buffer was full, by action taken.",
	}, []string{"action"})

	Latency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jam",
		Name:      "probe_latency_seconds",
		Help:      "Round trip measured by the latency probe.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	Persistence = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jam",
		Name:      "recording_ops_total",
		Help:      "Recording store calls, by op and outcome.",
	}, []string{"op", "outcome"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

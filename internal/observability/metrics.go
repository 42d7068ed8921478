package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	OnlineUsers    prometheus.Gauge
	PresenceEvents *prometheus.CounterVec
	EventsRouted   *prometheus.CounterVec
	WSMessages     *prometheus.CounterVec
	RelayDrops     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlineUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Number of users with a live session.",
		}),
		PresenceEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_total",
			Help:      "Presence transitions by kind.",
		}, []string{"event"}),
		EventsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_routed_total",
			Help:      "Targeted events by type and delivery outcome.",
		}, []string{"type", "outcome"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		RelayDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_drops_total",
			Help:      "Signaling frames dropped by reason.",
		}, []string{"reason"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors. They are registered
// on an explicitly supplied registerer so embedding processes keep control
// of their metric namespace.
type Metrics struct {
	ConnectionsAdmitted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	Logins              *prometheus.CounterVec
	EnvelopesDelivered  *prometheus.CounterVec
	EnvelopesDropped    prometheus.Counter
	CacheLookups        *prometheus.CounterVec
}

// Login result label values.
const (
	LoginResultOK                = "ok"
	LoginResultInvalidAuth       = "invalid_auth"
	LoginResultInvalidEvents     = "invalid_events"
	LoginResultUnknownConnection = "unknown_connection"
	LoginResultResolverError     = "resolver_error"
)

// NewMetrics builds and registers the gateway collectors. A nil registerer
// falls back to a fresh private registry; registering twice on the same
// registerer panics, so callers sharing one (such as the default registry)
// must construct the collectors once.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "connections_admitted_total",
			Help:      "Sessions admitted into the connection registry.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "connections_active",
			Help:      "Currently connected sessions.",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "logins_total",
			Help:      "Handshake attempts by result.",
		}, []string{"result"}),
		EnvelopesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "envelopes_delivered_total",
			Help:      "Payload envelopes delivered to sessions, by event name.",
		}, []string{"event"}),
		EnvelopesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "envelopes_dropped_total",
			Help:      "Envelopes that could not be delivered and were dropped.",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "cache_lookups_total",
			Help:      "Read-through cache lookups by resource and outcome.",
		}, []string{"resource", "outcome"}),
	}
}

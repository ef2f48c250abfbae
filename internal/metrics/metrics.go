// Package metrics exposes the broker's Prometheus collectors: connection
// counts, message throughput, and RPC latency, served at /metrics on the
// broker's RPC listener (see rpc.Server.ListenAndServe). The MetricsAddress
// setting in internal/config does not open a separate listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a dedicated prometheus.Registry (rather than the global
// default registry) so multiple broker instances can coexist in a single
// test process without colliding on metric names.
type Collector struct {
	registry *prometheus.Registry

	ConnectionsActive    prometheus.Gauge
	ConnectionsTotal     prometheus.Counter
	ConnectionsRejected  prometheus.Counter
	SubscriptionsActive  prometheus.Gauge
	MessagesAppended     prometheus.Counter
	MessagesDelivered    prometheus.Counter
	DeliveryFailures     prometheus.Counter
	RPCLatencySeconds    *prometheus.HistogramVec
	RPCErrorsTotal       *prometheus.CounterVec
}

// NewCollector builds and registers every broker metric.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_connections_active",
			Help: "Current number of open RPC connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_connections_total",
			Help: "Total number of RPC connections accepted.",
		}),
		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_connections_rejected_total",
			Help: "Total number of connections rejected by the admission guard.",
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_subscriptions_active",
			Help: "Current number of live subscriber records across all topics.",
		}),
		MessagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_messages_appended_total",
			Help: "Total number of messages appended to the log.",
		}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_messages_delivered_total",
			Help: "Total number of messages pushed to subscriber receivers.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_delivery_failures_total",
			Help: "Total number of receiver.receive calls that failed, ending a delivery loop.",
		}),
		RPCLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pubsub_rpc_latency_seconds",
			Help:    "RPC handler latency by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_rpc_errors_total",
			Help: "Total RPC replies carrying an error, by method and error kind.",
		}, []string{"method", "kind"}),
	}

	registry.MustRegister(
		c.ConnectionsActive,
		c.ConnectionsTotal,
		c.ConnectionsRejected,
		c.SubscriptionsActive,
		c.MessagesAppended,
		c.MessagesDelivered,
		c.DeliveryFailures,
		c.RPCLatencySeconds,
		c.RPCErrorsTotal,
	)
	return c
}

// Handler serves the registry in the Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

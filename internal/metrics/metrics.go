package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	Registry *prometheus.Registry

	SignatureFailures  prometheus.Counter
	DeliveriesAccepted prometheus.Counter
	DeliveriesDropped  prometheus.Counter
	EventsProcessed    *prometheus.CounterVec
	TokenRefreshes     *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
}

// New builds a Metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		SignatureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Deliveries rejected for a missing or invalid signature.",
		}),
		DeliveriesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_deliveries_accepted_total",
			Help: "Deliveries authenticated and queued for processing.",
		}),
		DeliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_deliveries_dropped_total",
			Help: "Authenticated deliveries rejected because the queue was full.",
		}),
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_processed_total",
			Help: "Classified events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "token_refreshes_total",
			Help: "Outbound credential refreshes by outcome.",
		}, []string{"outcome"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Tasks waiting in the background worker queue.",
		}),
	}
}

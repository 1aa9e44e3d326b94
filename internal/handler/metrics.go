package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "http",
			Name:      "orders_created_total",
			Help:      "Total number of orders saved and published to the pool",
		},
	)

	publishInconsistencies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "http",
			Name:      "publish_inconsistencies_total",
			Help:      "Orders saved durably but not published to the pool",
		},
	)

	acceptsWon = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "http",
			Name:      "accepts_won_total",
			Help:      "Accept attempts that won the assignment",
		},
	)

	acceptsLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "http",
			Name:      "accepts_lost_total",
			Help:      "Accept attempts that lost to another courier",
		},
	)

	feedSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dispatch_service",
			Subsystem: "feed",
			Name:      "available_orders",
			Help:      "Size of the last served available-orders snapshot",
		},
	)
)

var (
	ingestProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "kafka_consumer",
			Name:      "orders_published_total",
			Help:      "Orders ingested from Kafka and published to the pool",
		},
	)

	ingestFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "kafka_consumer",
			Name:      "orders_failed_total",
			Help:      "Ingested orders that failed processing",
		},
	)

	ingestDLQ = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "kafka_consumer",
			Name:      "orders_dlq_total",
			Help:      "Ingested orders written to the DLQ",
		},
	)

	assignedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatch_service",
			Subsystem: "kafka_producer",
			Name:      "assigned_events_total",
			Help:      "order.assigned events emitted downstream",
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		ordersCreated,
		publishInconsistencies,
		acceptsWon,
		acceptsLost,
		feedSize,

		ingestProcessed,
		ingestFailed,
		ingestDLQ,
		assignedEvents,
	)
}

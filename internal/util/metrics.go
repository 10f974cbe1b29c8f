package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_created_total",
		Help: "Total number of draft purchase orders created",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_transitions_total",
		Help: "Order operations by action and outcome",
	}, []string{"action", "outcome"})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_status_changes_total",
		Help: "Order status changes by resulting status",
	}, []string{"status"})

	ConcurrentModificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_concurrent_modifications_total",
		Help: "Operations refused because the order was locked or stale",
	}, []string{"reason"})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_validation_failures_total",
		Help: "Validation failures by action",
	}, []string{"action"})

	BulkResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_bulk_results_total",
		Help: "Per-entry results of bulk operations",
	}, []string{"operation", "result"})

	TransitionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purchase_order_transition_latency_seconds",
		Help:    "Latency of a locked load-apply-save cycle",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	CatalogLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_lookups_total",
		Help: "Product snapshot lookups by source",
	}, []string{"source"})

	SignalsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_signals_processed_total",
		Help: "Inbound payment and invoicing signals by type and result",
	}, []string{"event_type", "result"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_events_publish_failed_total",
		Help: "Audit records and notifications that could not be published",
	}, []string{"topic"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

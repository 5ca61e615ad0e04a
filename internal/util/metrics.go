package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_cart_operations_total",
		Help: "Total number of applied cart operations",
	}, []string{"operation"})

	CartRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_cart_rejections_total",
		Help: "Total number of cart operations rejected by validation",
	}, []string{"reason"})

	CheckoutAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_checkout_attempts_total",
		Help: "Total number of checkout activations",
	})

	CheckoutIgnoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_ignored_total",
		Help: "Total number of checkout activations ignored by the submission guard",
	}, []string{"reason"})

	CheckoutOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_outcomes_total",
		Help: "Total number of finished submissions by outcome",
	}, []string{"outcome"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_checkout_latency_seconds",
		Help:    "Latency of a full order submission (create order and receipt)",
		Buckets: prometheus.DefBuckets,
	})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_upstream_request_duration_seconds",
		Help:    "Latency of calls to the order and product API",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_stock_reconciliations_total",
		Help: "Total number of stock mirror reconciliation passes",
	}, []string{"result"})

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

package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentApprovalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pi_payment_approvals_total",
		Help: "Total number of payments approved with the Pi Network",
	})

	PaymentCompletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pi_payment_completions_total",
		Help: "Total number of payments completed with the Pi Network",
	})

	PaymentCancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pi_payment_cancellations_total",
		Help: "Total number of payments cancelled with the Pi Network",
	})

	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pi_upstream_errors_total",
		Help: "Total number of non-2xx responses from the Pi Network API",
	}, []string{"operation"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pi_upstream_latency_seconds",
		Help:    "Latency of Pi Network API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CheckoutOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Terminal checkout states reached",
	}, []string{"outcome"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders completed and paid",
	})

	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Total number of incomplete-payment reconciliation attempts",
	}, []string{"result"})

	CapabilityPollTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capability_poll_timeouts_total",
		Help: "Total number of capability discovery polls that timed out",
	})

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

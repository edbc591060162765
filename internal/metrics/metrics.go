// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readreward_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readreward_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RewardsCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readreward_rewards_credited_total",
			Help: "Total number of rewards credited to readers",
		},
	)

	CompletionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readreward_completions_rejected_total",
			Help: "Total number of rejected completion attempts",
		},
		[]string{"reason"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readreward_withdrawals_total",
			Help: "Total number of withdrawal requests",
		},
		[]string{"result"},
	)

	PaymentOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readreward_payment_orders_total",
			Help: "Total number of payment orders requested from the provider",
		},
		[]string{"result"},
	)

	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readreward_reconciliations_total",
			Help: "Total number of payment status applications",
		},
		[]string{"source", "outcome"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordRewardCredited() {
	RewardsCreditedTotal.Inc()
}

func RecordCompletionRejected(reason string) {
	CompletionsRejectedTotal.WithLabelValues(reason).Inc()
}

func RecordWithdrawal(result string) {
	WithdrawalsTotal.WithLabelValues(result).Inc()
}

func RecordPaymentOrder(result string) {
	PaymentOrdersTotal.WithLabelValues(result).Inc()
}

func RecordReconciliation(source, outcome string) {
	ReconciliationsTotal.WithLabelValues(source, outcome).Inc()
}

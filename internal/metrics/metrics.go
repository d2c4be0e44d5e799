// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opex_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opex_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opex_ledger_operations_total",
			Help: "Ledger mutations by operation and result code.",
		},
		[]string{"operation", "result"},
	)

	SAPPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opex_sap_postings_total",
			Help: "SAP postings processed by stage (uploaded, duplicate, mapped).",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, LedgerOperations, SAPPostings)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLedger counts one ledger operation; result is "ok" or an error code.
func ObserveLedger(operation, result string) {
	LedgerOperations.WithLabelValues(operation, result).Inc()
}

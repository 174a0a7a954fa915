// Package metrics provides centralized Prometheus metrics registry for the
// scheduling client. All metrics are defined in their respective packages
// (client, cache, ratelimit, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and an HTTP handler for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the scheduling client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric family exported by the scheduling client.
var Names = []string{
	"schedule_requests_total",
	"schedule_request_duration_seconds",
	"schedule_errors_total",
	"schedule_retries_total",
	"schedule_retry_backoff_seconds",
	"schedule_retry_exhausted_total",
	"schedule_rate_limited_total",
	"schedule_rate_limit_backoff_seconds",
	"schedule_cache_hits_total",
	"schedule_cache_misses_total",
	"schedule_cache_invalidations_total",
	"schedule_cache_errors_total",
	"schedule_pages_fetched_total",
}

// Handler returns an HTTP handler exposing the client metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - schedule_requests_total{endpoint, status} (Counter): Logical requests by endpoint and final status
//     (HTTP code, "cached", "network_error" or "budget_exhausted")
//   - schedule_request_duration_seconds{endpoint} (Histogram): Request duration including backoff
//   - schedule_errors_total{class} (Counter): Errors by class (rate_limit, not_found, client, server, network, budget)
//
// Retry Metrics (pkg/client):
//   - schedule_retries_total{endpoint} (Counter): 429 retries
//   - schedule_retry_backoff_seconds{endpoint} (Histogram): Backoff slept before a retry
//   - schedule_retry_exhausted_total{endpoint} (Counter): Requests whose retry budget ran out
//
// Rate Limit Metrics (pkg/ratelimit):
//   - schedule_rate_limited_total{endpoint} (Counter): 429 responses recorded in Redis
//   - schedule_rate_limit_backoff_seconds (Gauge): Backoff chosen for the latest 429
//
// Cache Metrics (pkg/cache):
//   - schedule_cache_hits_total (Counter): Cache hits
//   - schedule_cache_misses_total (Counter): Cache misses
//   - schedule_cache_invalidations_total (Counter): Entries removed after writes
//   - schedule_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - schedule_pages_fetched_total{endpoint} (Counter): Listing pages fetched
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(schedule_cache_hits_total[5m])) /
//	(sum(rate(schedule_cache_hits_total[5m])) + sum(rate(schedule_cache_misses_total[5m])))
//
//	# Share of requests that needed a 429 retry
//	sum(rate(schedule_retries_total[5m])) / sum(rate(schedule_requests_total[5m]))
//
//	# Budget exhaustion
//	rate(schedule_retry_exhausted_total[5m]) > 0
//
//	# P95 Request Latency
//	histogram_quantile(0.95, rate(schedule_request_duration_seconds_bucket[5m]))

// Package metrics provides the centralized Prometheus registry reference
// for the collection proxy. All metrics are defined in their respective
// packages (cache, scheduler, client) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - met_cache_hits_total (Counter): Cache hits
//   - met_cache_misses_total (Counter): Cache misses
//   - met_cache_evictions_total (Counter): Expired entries evicted
//   - met_cache_entries (Gauge): Current number of cached entries
//
// Dispatch Metrics (pkg/scheduler):
//   - met_dispatch_total (Counter): Tasks dispatched to the upstream
//   - met_dispatch_queue_depth (Gauge): Tasks waiting for admission
//   - met_dispatch_queue_wait_seconds (Histogram): Queue wait before execution
//   - met_dispatch_throttled_total (Counter): Dispatches delayed by a full window
//   - met_dispatch_timeouts_total (Counter): Tasks that exceeded the dispatch timeout
//
// Upstream Metrics (pkg/client):
//   - met_upstream_requests_total{endpoint, status} (Counter): Requests by endpoint and status
//   - met_upstream_request_duration_seconds{endpoint} (Histogram): Request duration
//
// Retry Metrics (pkg/client):
//   - met_retries_total{error_class} (Counter): Retry attempts by error class
//   - met_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - met_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(met_cache_hits_total[5m])) /
//   (sum(rate(met_cache_hits_total[5m])) + sum(rate(met_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(met_retry_exhausted_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(met_upstream_request_duration_seconds_bucket[5m]))
//
//   # Dispatch Queue Pressure
//   met_dispatch_queue_depth

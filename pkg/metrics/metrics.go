// Package metrics provides the Prometheus registry for the GitHub ETag cache.
// All metrics are defined in their respective packages (etag, store, client,
// ratelimit) and registered via promauto.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the default Prometheus registry all packages register with.
	Registry = prometheus.DefaultRegisterer

	// Gatherer exposes the metrics registered with Registry.
	Gatherer = prometheus.DefaultGatherer
)

// Handler serves all registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// ETag Metrics (pkg/etag):
//   - github_etag_validations_total{outcome} (Counter): Validation requests by outcome
//     (not_modified, modified, short_circuit)
//   - github_etag_hits_total (Counter): Stored ETags confirmed by a 304
//   - github_etag_writes_total{kind} (Counter): Records persisted (front_loaded, back_loaded)
//   - github_etag_skipped_total{reason} (Counter): Requests without validation
//     (denied, not_first_page, no_record, store_error)
//
// Store Metrics (pkg/store):
//   - github_etag_store_errors_total{backend, operation} (Counter): Failed store operations
//
// Rate Limit Metrics (pkg/ratelimit):
//   - github_rate_limit_remaining (Gauge): Requests remaining in the current window
//   - github_rate_limit_blocks_total (Counter): Requests blocked at the critical threshold
//   - github_rate_limit_throttles_total (Counter): Requests throttled at the warning threshold
//
// Request Metrics (pkg/client):
//   - github_requests_total{status} (Counter): Requests by HTTP status
//   - github_request_duration_seconds (Histogram): Request duration, retries included
//   - github_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - github_retries_total{error_class} (Counter): Retry attempts by error class
//   - github_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - github_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # ETag hit rate for first-page requests
//   rate(github_etag_hits_total[5m]) / sum(rate(github_etag_validations_total[5m]))
//
//   # Requests saved from full downloads by short-circuiting
//   rate(github_etag_validations_total{outcome="short_circuit"}[5m])
//
//   # Rate limit headroom
//   github_rate_limit_remaining < 50
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(github_request_duration_seconds_bucket[5m]))

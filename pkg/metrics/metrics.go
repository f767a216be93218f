// Package metrics provides the Prometheus registry used by the ETL and a
// Pushgateway hook for publishing a finished run.
// Metrics are defined in their respective packages (client, pagination,
// loader, cache) and registered via promauto.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job name for ETL runs.
const DefaultJob = "otx_etl"

// Registry is the default Prometheus registry used by the ETL.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the default Prometheus gatherer pushed after a run.
var Gatherer = prometheus.DefaultGatherer

// Push replaces the metrics of job on the Pushgateway at url with the
// current contents of Gatherer.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		job = DefaultJob
	}

	if err := push.New(url, job).Gatherer(Gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Fetch Metrics (pkg/client):
//   - otx_requests_total{status} (Counter): HTTP attempts by status code or "network_error"
//   - otx_request_duration_seconds (Histogram): Fetch duration, retries included
//   - otx_retries_total{error_class} (Counter): Retry attempts by error class
//   - otx_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - otx_retry_exhausted_total{error_class} (Counter): Fetches that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - otx_pages_total{outcome} (Counter): Pages by outcome (ok, fetch_failed, invalid_payload, invalid_results)
//
// Loader Metrics (pkg/loader):
//   - otx_pulses_upserted_total{result} (Counter): Pulses by result (inserted, updated, skipped)
//
// Cache Metrics (pkg/cache):
//   - otx_cache_hits_total (Counter): Page cache hits
//   - otx_cache_misses_total (Counter): Page cache misses
//   - otx_cache_written_bytes_total (Counter): Bytes written to the page cache
//   - otx_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Pulses inserted by the last pushed run
//   otx_pulses_upserted_total{result="inserted"}
//
//   # Rate-limit pressure
//   otx_retries_total{error_class="rate_limit"}
//
//   # Runs that stopped early
//   otx_pages_total{outcome!="ok"} > 0

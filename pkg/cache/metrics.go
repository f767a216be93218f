package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks page cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otx_cache_hits_total",
			Help: "Total number of OTX page cache hits",
		},
	)

	// CacheMisses tracks page cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otx_cache_misses_total",
			Help: "Total number of OTX page cache misses",
		},
	)

	// CacheBytesWritten tracks bytes written to the cache
	CacheBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otx_cache_written_bytes_total",
			Help: "Total bytes written to the OTX page cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otx_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)

// Package cache provides an optional Redis-backed page cache for OTX
// responses.
//
// Re-running the ETL inside the cache TTL serves pages from Redis instead of
// spending the rate-limited API budget. Pulses are still upserted, so a
// cached run is idempotent against the store.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	body, err := manager.Get(ctx, pageURL)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from OTX, then
//		_ = manager.Set(ctx, pageURL, body, 10*time.Minute)
//	}
//
// # Keys
//
// Keys are derived from the page URL with its query parameters sorted, so
// "?page=2&limit=10" and "?limit=10&page=2" share an entry:
//
//	otx:page:otx.alienvault.com/api/v1/pulses/subscribed:limit=10:page=2
//
// # Metrics
//
//   - otx_cache_hits_total - Cache hits
//   - otx_cache_misses_total - Cache misses
//   - otx_cache_written_bytes_total - Bytes written to the cache
//   - otx_cache_errors_total{operation} - Cache operation errors
package cache

// Package cache provides a Redis-backed cache for successful GET responses
// of the scheduling API.
//
// Only reads are cached. A successful write (any non-GET request) removes
// every cached response of the same endpoint and its sub-resources, so a
// POST to /appointments drops both the /appointments listing pages and
// /appointments/42.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Scope:       cache.ScopeFor(apiKey),
//		Endpoint:    "/appointments",
//		QueryParams: url.Values{"page": []string{"1"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the API, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(200, header, body, time.Minute))
//	}
//
// # Lifetime
//
// NewEntry honours Cache-Control max-age, then Expires, then the configured
// fallback TTL. no-store and no-cache responses are never stored.
//
// # Metrics
//
//   - schedule_cache_hits_total - Cache hits
//   - schedule_cache_misses_total - Cache misses
//   - schedule_cache_invalidations_total - Keys removed by writes
//   - schedule_cache_errors_total{operation} - Cache operation errors
package cache

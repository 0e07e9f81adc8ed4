// Package cache provides a memory-resident TTL cache for upstream museum
// collection payloads.
//
// Entries are keyed by opaque strings derived from the logical query (see
// Key) and expire after a uniform TTL. The store is sharded for cheap
// concurrent access; expired entries are evicted lazily on read and eagerly
// by an optional janitor goroutine.
//
// # Basic Usage
//
//	store := cache.New(time.Hour)
//	store.StartJanitor(ctx, 5*time.Minute)
//
//	key := cache.Key("object-detail", "436535")
//	if payload, ok := store.Get(key); ok {
//		// cache hit
//	}
//
//	store.Set(key, payload)
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - met_cache_hits_total - Cache hits
//   - met_cache_misses_total - Cache misses
//   - met_cache_evictions_total - Expired entries evicted
//   - met_cache_entries - Current entry count
package cache

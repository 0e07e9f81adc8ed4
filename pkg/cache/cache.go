package cache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"
)

// DefaultTTL is the fallback TTL when the store is constructed with a
// non-positive TTL.
const DefaultTTL = 3600 * time.Second

const numShards = 16

// Entry is a single cached upstream payload.
type Entry struct {
	// Value is the raw upstream JSON payload.
	Value json.RawMessage

	// ExpiresAt is when the entry becomes stale.
	ExpiresAt time.Time
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

type shard struct {
	mu    sync.RWMutex
	store map[string]*Entry
}

// Store is a memory-resident TTL cache of upstream payloads.
// It is safe for concurrent use by any number of goroutines.
type Store struct {
	shards     [numShards]*shard
	defaultTTL time.Duration
}

// New creates a cache store. Entries written via Set expire after ttl;
// a non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{defaultTTL: ttl}
	for i := range s.shards {
		s.shards[i] = &shard{store: make(map[string]*Entry)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%numShards]
}

// Get returns the payload cached under key, or false if the key is absent
// or expired. Expired entries are evicted on read.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	entry, exists := sh.store[key]
	sh.mu.RUnlock()

	if !exists {
		cacheMisses.Inc()
		return nil, false
	}

	if entry.IsExpired() {
		sh.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry in the meantime.
		if cur, ok := sh.store[key]; ok && cur.IsExpired() {
			delete(sh.store, key)
			cacheEvictions.Inc()
		}
		sh.mu.Unlock()
		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return entry.Value, true
}

// Set stores value under key with the store's default TTL, overwriting any
// existing entry.
func (s *Store) Set(key string, value json.RawMessage) {
	s.SetTTL(key, value, s.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL.
func (s *Store) SetTTL(key string, value json.RawMessage, ttl time.Duration) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.store[key] = &Entry{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
	sh.mu.Unlock()
	cacheEntries.Set(float64(s.Len()))
}

// Delete removes the entry for key, if present.
func (s *Store) Delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.store, key)
	sh.mu.Unlock()
}

// Clear removes all entries.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.store = make(map[string]*Entry)
		sh.mu.Unlock()
	}
	cacheEntries.Set(0)
}

// Len returns the number of stored entries, including any not yet evicted
// expired ones.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.store)
		sh.mu.RUnlock()
	}
	return n
}

// StartJanitor launches a background sweep that evicts expired entries
// every interval. The janitor stops when ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Store) sweep() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, entry := range sh.store {
			if entry.IsExpired() {
				delete(sh.store, key)
				cacheEvictions.Inc()
			}
		}
		sh.mu.Unlock()
	}
	cacheEntries.Set(float64(s.Len()))
}

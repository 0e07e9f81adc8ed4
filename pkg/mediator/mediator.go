// Package mediator provides the single entry point for upstream access.
// Every call passes through cache lookup, scheduler admission, and the
// retry-wrapped upstream client, in that order.
package mediator

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mkarlsen/met-collection-proxy/pkg/cache"
	"github.com/mkarlsen/met-collection-proxy/pkg/client"
	"github.com/mkarlsen/met-collection-proxy/pkg/scheduler"
)

// Mediator composes the cache store, the dispatch scheduler, and the
// upstream client. One instance is constructed at startup and shared by
// all callers.
type Mediator struct {
	cache    *cache.Store
	sched    *scheduler.Dispatcher
	upstream *client.Upstream
	logger   zerolog.Logger
}

// New creates a mediator over the given components.
func New(store *cache.Store, sched *scheduler.Dispatcher, upstream *client.Upstream, logger zerolog.Logger) *Mediator {
	return &Mediator{
		cache:    store,
		sched:    sched,
		upstream: upstream,
		logger:   logger,
	}
}

// Fetch returns the payload for path, keyed in the cache by cacheKey.
//
// A cache hit returns immediately and never touches the scheduler. On a
// miss the fetch is admitted through the scheduler and executed under the
// retry policy; a successful payload is cached under the default TTL
// before returning. Failures are propagated unchanged and never cached.
//
// Concurrent misses for the same key each fetch independently; there is no
// request coalescing.
func (m *Mediator) Fetch(ctx context.Context, path, cacheKey string) (json.RawMessage, error) {
	if payload, ok := m.cache.Get(cacheKey); ok {
		m.logger.Debug().
			Str("cache_key", cacheKey).
			Msg("Cache hit")
		return payload, nil
	}

	m.logger.Debug().
		Str("cache_key", cacheKey).
		Str("path", path).
		Msg("Cache miss, dispatching upstream fetch")

	payload, err := m.sched.Submit(ctx, func(taskCtx context.Context) (json.RawMessage, error) {
		return m.upstream.FetchWithRetry(taskCtx, path)
	})
	if err != nil {
		return nil, err
	}

	m.cache.Set(cacheKey, payload)
	return payload, nil
}

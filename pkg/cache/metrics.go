package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "met_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "met_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "met_cache_evictions_total",
			Help: "Total number of expired entries evicted",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "met_cache_entries",
			Help: "Current number of cached entries",
		},
	)
)

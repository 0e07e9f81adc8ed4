package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "met_dispatch_total",
			Help: "Total number of tasks dispatched to the upstream",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "met_dispatch_queue_depth",
			Help: "Current number of tasks waiting for admission",
		},
	)

	queueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "met_dispatch_queue_wait_seconds",
			Help:    "Time tasks spend queued before beginning execution",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	throttledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "met_dispatch_throttled_total",
			Help: "Total number of dispatches delayed by a full rate window",
		},
	)

	timeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "met_dispatch_timeouts_total",
			Help: "Total number of tasks that exceeded the dispatch timeout",
		},
	)
)

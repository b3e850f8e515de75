package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits counts Get calls that found an entry.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quickview_cache_hits_total",
			Help: "Total number of quick-view fragment cache hits",
		},
	)

	// cacheMisses counts Get calls that found nothing.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quickview_cache_misses_total",
			Help: "Total number of quick-view fragment cache misses",
		},
	)

	// cacheEvictions counts least-recently-used evictions.
	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quickview_cache_evictions_total",
			Help: "Total number of fragments evicted to stay within capacity",
		},
	)

	// cacheEntries tracks the size of the most recently mutated cache.
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quickview_cache_entries",
			Help: "Current number of cached quick-view fragments",
		},
	)
)

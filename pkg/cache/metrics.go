package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks reuse-cache hits by backend (memory, redis).
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgopt_cache_hits_total",
			Help: "Total number of reuse cache hits",
		},
		[]string{"backend"},
	)

	// cacheMisses tracks reuse-cache misses.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgopt_cache_misses_total",
			Help: "Total number of reuse cache misses",
		},
	)

	// cacheEntries tracks stored entry counts by backend.
	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgopt_cache_entries",
			Help: "Number of entries in the reuse cache",
		},
		[]string{"backend"},
	)

	// cacheBytes tracks stored payload bytes by backend.
	cacheBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgopt_cache_bytes",
			Help: "Payload bytes stored in the reuse cache",
		},
		[]string{"backend"},
	)

	// storeErrors tracks store operation errors.
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgopt_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "get", "set", "has", "count", "total_bytes"
	)

	// budgetUtilization tracks stored bytes relative to the configured budget.
	budgetUtilization = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgopt_cache_budget_utilization",
			Help: "Reuse cache utilization as a fraction of the configured byte budget",
		},
	)
)

// Package metrics provides the centralized Prometheus metrics registry for
// the image optimizer. All metrics are defined in their respective packages
// (engine, cache, optimizer) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the optimizer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Engine Metrics (pkg/engine):
//   - imgopt_engine_optimizations_total{content_type, outcome} (Counter): Engine runs by outcome (success, corrupt_input, unsupported_format, timeout, memory, encode)
//   - imgopt_engine_duration_seconds{content_type} (Histogram): Engine run duration
//   - imgopt_engine_bytes_saved_total (Counter): Total bytes saved by compression
//
// Cache Metrics (pkg/cache):
//   - imgopt_cache_hits_total{backend} (Counter): Cache hits by backend (memory, redis)
//   - imgopt_cache_misses_total (Counter): Cache misses
//   - imgopt_cache_entries{backend} (Gauge): Stored entry count
//   - imgopt_cache_bytes{backend} (Gauge): Stored payload bytes
//   - imgopt_cache_errors_total{operation} (Counter): Cache operation errors
//   - imgopt_cache_budget_utilization (Gauge): Fraction of the storage budget in use
//
// Orchestrator Metrics (pkg/optimizer):
//   - imgopt_optimizations_total{content_type, outcome} (Counter): Resolved calls by outcome (success, cached, fallback, failure)
//   - imgopt_optimization_duration_seconds{content_type} (Histogram): End-to-end call duration
//   - imgopt_fallbacks_total{reason} (Counter): Fallbacks by reason
//
// Example Prometheus Queries:
//
//   # Cache Reuse Rate
//   sum(rate(imgopt_cache_hits_total[5m])) /
//   (sum(rate(imgopt_cache_hits_total[5m])) + sum(rate(imgopt_cache_misses_total[5m])))
//
//   # Fallback Rate
//   sum(rate(imgopt_fallbacks_total[5m])) / sum(rate(imgopt_optimizations_total[5m]))
//
//   # Storage Budget Pressure
//   imgopt_cache_budget_utilization > 0.80
//
//   # P95 Optimization Latency
//   histogram_quantile(0.95, rate(imgopt_optimization_duration_seconds_bucket[5m]))
//
//   # Bytes Saved Per Hour
//   increase(imgopt_engine_bytes_saved_total[1h])

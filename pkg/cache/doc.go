// Package cache provides the content-addressable reuse cache mapping a
// stable source identity to a previously computed optimization result.
//
// Features:
//
// - Deterministic key generation from source identities
// - Injected Store abstraction with in-memory and Redis backends
// - Idempotent last-write-wins upsert; no eviction policy
// - Policy snapshot per entry for staleness detection on reuse
// - Storage metrics (entries, bytes, reuse rate, budget utilization)
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store := cache.NewMemoryStore()
//	manager := cache.NewManager(store, cache.ManagerConfig{BudgetBytes: 256 << 20})
//
//	entry, err := manager.GetCompressedImage(ctx, "products/42/main.jpg")
//	if err == cache.ErrCacheMiss {
//		// miss - run the compression engine
//	}
//
//	// after optimization
//	if err := manager.SaveCompressedImage(ctx, identity, result, pol); err != nil {
//		// storage errors are non-fatal; callers log and continue
//	}
//
// # Staleness
//
// An entry records the policy parameters active when it was produced. A hit
// is always served even when the stored policy no longer matches the current
// one; the validation package surfaces mismatches as warnings. There is no
// automatic invalidation and no deletion path.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - imgopt_cache_hits_total{backend} - Cache hits
//   - imgopt_cache_misses_total - Cache misses
//   - imgopt_cache_entries{backend} - Stored entries
//   - imgopt_cache_bytes{backend} - Stored payload bytes
//   - imgopt_cache_errors_total{operation} - Store operation errors
//   - imgopt_cache_budget_utilization - Stored bytes vs configured budget
package cache

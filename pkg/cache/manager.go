package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/engine"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/logging"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// ManagerConfig holds cache manager configuration.
type ManagerConfig struct {
	// BudgetBytes is the storage budget used for utilization reporting.
	// Zero means unlimited (no utilization reporting).
	BudgetBytes int64
}

// Manager is the reuse-cache facade over an injected Store. It tracks
// hit/miss counters and aggregate compression statistics for the storage
// metrics view.
type Manager struct {
	store  Store
	config ManagerConfig
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64

	// Running sum of compression ratios of saved entries, scaled by 1e6 so
	// it fits an atomic integer.
	ratioSumMicros atomic.Int64
	ratioCount     atomic.Int64
}

// NewManager creates a cache manager over the given store.
func NewManager(store Store, cfg ManagerConfig) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Manager{
		store:  store,
		config: cfg,
		logger: logging.NewLogger("cache"),
	}
}

// GetCompressedImage returns the cached entry for a source identity, or
// ErrCacheMiss. A hit bypasses the compression engine entirely; staleness
// against the current policy is the caller's concern (warning-only).
func (m *Manager) GetCompressedImage(ctx context.Context, identity string) (*Entry, error) {
	key := SourceKey{Identity: identity}.String()

	entry, err := m.store.Get(ctx, key)
	if err != nil {
		if err == ErrCacheMiss {
			m.misses.Add(1)
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		// Store failures are treated as misses so processing proceeds.
		m.misses.Add(1)
		cacheMisses.Inc()
		m.logger.Warn().Err(err).Str("identity", identity).Msg("Cache read failed, treating as miss")
		return nil, fmt.Errorf("cache get: %w", err)
	}

	m.hits.Add(1)
	cacheHits.WithLabelValues(m.store.Backend()).Inc()

	m.logger.Debug().
		Str("identity", identity).
		Dur("age", entry.Age()).
		Msg("Cache hit")

	return entry, nil
}

// SaveCompressedImage upserts the optimization result for a source identity
// together with a snapshot of the policy it was produced under. The upsert
// is idempotent; concurrent writers race safely with last-write-wins.
func (m *Manager) SaveCompressedImage(ctx context.Context, identity string, res *engine.Result, pol policy.OptimizationPolicy) error {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}

	entry := &Entry{
		Identity: identity,
		Result:   *res,
		Policy:   SnapshotPolicy(pol),
		CachedAt: time.Now(),
	}

	key := SourceKey{Identity: identity}.String()
	if err := m.store.Set(ctx, key, entry); err != nil {
		m.logger.Warn().Err(err).Str("identity", identity).Msg("Cache write failed")
		return fmt.Errorf("cache set: %w", err)
	}

	m.ratioSumMicros.Add(int64(res.CompressionRatio * 1e6))
	m.ratioCount.Add(1)

	m.logger.Debug().
		Str("identity", identity).
		Int64("bytes", entry.PayloadBytes()).
		Float64("ratio", res.CompressionRatio).
		Msg("Cached optimization result")

	return nil
}

// HasCompressedImage reports whether a result exists for the identity,
// without payload transfer. Store failures report false.
func (m *Manager) HasCompressedImage(ctx context.Context, identity string) bool {
	key := SourceKey{Identity: identity}.String()
	ok, err := m.store.Has(ctx, key)
	if err != nil {
		m.logger.Warn().Err(err).Str("identity", identity).Msg("Cache existence check failed")
		return false
	}
	return ok
}

// StorageMetrics is the aggregate observability view of the reuse cache.
type StorageMetrics struct {
	// TotalEntries is the number of stored results.
	TotalEntries int64 `json:"total_entries"`

	// TotalBytes is the sum of stored payload sizes.
	TotalBytes int64 `json:"total_bytes"`

	// ReuseRate is hits/(hits+misses) over this process lifetime.
	ReuseRate float64 `json:"reuse_rate"`

	// AvgCompressionRatio averages the ratios of saved entries.
	AvgCompressionRatio float64 `json:"avg_compression_ratio"`

	// BudgetBytes is the configured storage budget (0 = unlimited).
	BudgetBytes int64 `json:"budget_bytes"`

	// Utilization is TotalBytes/BudgetBytes; 0 when unlimited.
	Utilization float64 `json:"utilization"`

	// BudgetState classifies the utilization.
	BudgetState BudgetState `json:"budget_state"`
}

// GetStorageMetrics computes the aggregate storage view. Used only for
// observability; no decision logic reads it.
func (m *Manager) GetStorageMetrics(ctx context.Context) (*StorageMetrics, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	totalBytes, err := m.store.TotalBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("total bytes: %w", err)
	}

	hits := m.hits.Load()
	misses := m.misses.Load()
	var reuseRate float64
	if hits+misses > 0 {
		reuseRate = float64(hits) / float64(hits+misses)
	}

	var avgRatio float64
	if n := m.ratioCount.Load(); n > 0 {
		avgRatio = float64(m.ratioSumMicros.Load()) / 1e6 / float64(n)
	}

	utilization, state := ClassifyUtilization(totalBytes, m.config.BudgetBytes)

	backend := m.store.Backend()
	cacheEntries.WithLabelValues(backend).Set(float64(count))
	cacheBytes.WithLabelValues(backend).Set(float64(totalBytes))
	budgetUtilization.Set(utilization)

	if state == BudgetWarning || state == BudgetCritical {
		m.logger.Warn().
			Int64("total_bytes", totalBytes).
			Int64("budget_bytes", m.config.BudgetBytes).
			Float64("utilization", utilization).
			Str("state", string(state)).
			Msg("Reuse cache approaching storage budget")
	}

	return &StorageMetrics{
		TotalEntries:        count,
		TotalBytes:          totalBytes,
		ReuseRate:           reuseRate,
		AvgCompressionRatio: avgRatio,
		BudgetBytes:         m.config.BudgetBytes,
		Utilization:         utilization,
		BudgetState:         state,
	}, nil
}

package cache

import (
	"time"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/engine"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// PolicySnapshot records the policy parameters active when an entry was
// produced. Reuse validation compares it against the current policy to
// surface staleness without blocking reuse.
type PolicySnapshot struct {
	Quality         int    `json:"quality"`
	MaxWidth        int    `json:"max_width"`
	MaxHeight       int    `json:"max_height"`
	PreferredFormat string `json:"preferred_format"`
	Aggressive      bool   `json:"aggressive"`
}

// SnapshotPolicy captures the staleness-relevant fields of a policy.
func SnapshotPolicy(pol policy.OptimizationPolicy) PolicySnapshot {
	bounds := pol.EffectiveBounds()
	return PolicySnapshot{
		Quality:         pol.Quality,
		MaxWidth:        bounds.Width,
		MaxHeight:       bounds.Height,
		PreferredFormat: pol.PreferredFormat,
		Aggressive:      pol.Aggressive,
	}
}

// Entry is a cached optimization result plus the policy snapshot it was
// produced under.
type Entry struct {
	// Identity is the stable source locator this entry belongs to.
	Identity string `json:"identity"`

	// Result is the stored optimization result.
	Result engine.Result `json:"result"`

	// Policy is the policy snapshot active at production time.
	Policy PolicySnapshot `json:"policy"`

	// CachedAt is when this entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// PayloadBytes returns the stored payload size in bytes.
func (e *Entry) PayloadBytes() int64 {
	return int64(len(e.Result.Data))
}

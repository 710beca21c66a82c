package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/cache"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/engine"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

func cachedEntry(pol policy.OptimizationPolicy) *cache.Entry {
	return &cache.Entry{
		Identity: "products/1.jpg",
		Result: engine.Result{
			Data:          []byte("cached"),
			OriginalSize:  1000,
			OptimizedSize: 400,
		},
		Policy:   cache.SnapshotPolicy(pol),
		CachedAt: time.Now().Add(-24 * time.Hour),
	}
}

func TestValidateReusedEntry_NoDrift(t *testing.T) {
	v := New()
	pol := photoPolicy()

	warnings := v.ValidateReusedEntry(cachedEntry(pol), pol)
	assert.Empty(t, warnings, "identical policy must produce no warnings")
}

func TestValidateReusedEntry_QualityDrift(t *testing.T) {
	v := New()
	old := photoPolicy()
	entry := cachedEntry(old)

	current := old
	current.Quality = 60

	warnings := v.ValidateReusedEntry(entry, current)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "quality")
}

func TestValidateReusedEntry_MultipleDrifts(t *testing.T) {
	v := New()
	old := photoPolicy()
	entry := cachedEntry(old)

	current := old
	current.Quality = 60
	current.AggressiveMaxWidth = 512
	current.AggressiveMaxHeight = 512
	current.PreferredFormat = policy.FormatWebP

	warnings := v.ValidateReusedEntry(entry, current)
	assert.Len(t, warnings, 3, "quality, bounds and format drift each warn once")
}

func TestValidateReusedEntry_AggressiveModeDrift(t *testing.T) {
	v := New()
	old := photoPolicy()
	entry := cachedEntry(old)

	current := old
	current.Aggressive = false

	warnings := v.ValidateReusedEntry(entry, current)

	// Disabling aggressive mode changes both the flag and the effective
	// bounds snapshot.
	assert.NotEmpty(t, warnings)
	joined := ""
	for _, w := range warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "aggressive")
}

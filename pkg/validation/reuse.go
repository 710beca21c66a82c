package validation

import (
	"fmt"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/cache"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// ValidateReusedEntry compares a cache entry's recorded policy against the
// currently active policy and returns warnings for mismatches. Reuse always
// succeeds: stale entries are served as-is, and the warnings exist so
// staleness stays observable without blocking document generation. There is
// no invalidation trigger.
func (v *Validator) ValidateReusedEntry(entry *cache.Entry, current policy.OptimizationPolicy) []string {
	var warnings []string

	stored := entry.Policy
	active := cache.SnapshotPolicy(current)

	if stored.Quality != active.Quality {
		warnings = append(warnings, fmt.Sprintf(
			"cached entry produced at quality %d, current policy wants %d",
			stored.Quality, active.Quality))
	}
	if stored.MaxWidth != active.MaxWidth || stored.MaxHeight != active.MaxHeight {
		warnings = append(warnings, fmt.Sprintf(
			"cached entry produced under %dx%d bounds, current policy caps at %dx%d",
			stored.MaxWidth, stored.MaxHeight, active.MaxWidth, active.MaxHeight))
	}
	if stored.PreferredFormat != active.PreferredFormat {
		warnings = append(warnings, fmt.Sprintf(
			"cached entry format policy %q differs from current %q",
			stored.PreferredFormat, active.PreferredFormat))
	}
	if stored.Aggressive != active.Aggressive {
		warnings = append(warnings, fmt.Sprintf(
			"cached entry aggressive mode %t differs from current %t",
			stored.Aggressive, active.Aggressive))
	}

	if len(warnings) > 0 {
		v.logger.Debug().
			Str("identity", entry.Identity).
			Int("mismatches", len(warnings)).
			Msg("Serving stale cache entry")
	}

	return warnings
}

// Package optimizer provides the single public entry point of the image
// optimization pipeline. It sequences cache lookup, engine invocation,
// validation, persistence and fallback, and never raises to its caller:
// document generation must not be blocked by image-processing failure.
package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/cache"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/engine"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/logging"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/validation"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Fetcher loads raw source bytes (REQUIRED).
	Fetcher SourceFetcher

	// Cache is the reuse cache manager. Nil means an in-memory cache.
	Cache *cache.Manager

	// Policies supplies per-content-type policies. Nil means defaults.
	Policies policy.Provider

	// Sink consumes metric events. Nil means PrometheusSink.
	Sink Sink

	// FallbackEnabled controls whether failures resolve to the original
	// unmodified bytes. When disabled, failures resolve to a result with
	// Error set and no usable buffer.
	FallbackEnabled bool

	// OptimizeTimeout bounds a single engine invocation. Zero means the
	// engine default.
	OptimizeTimeout time.Duration

	// EngineConfig tunes the compression engine.
	EngineConfig engine.Config
}

// DefaultConfig returns a safe default configuration around a fetcher.
func DefaultConfig(fetcher SourceFetcher) Config {
	return Config{
		Fetcher:         fetcher,
		FallbackEnabled: true,
		OptimizeTimeout: 8 * time.Second,
	}
}

// Optimizer is the image optimization orchestrator.
type Optimizer struct {
	fetcher   SourceFetcher
	cache     *cache.Manager
	policies  policy.Provider
	engine    *engine.Engine
	validator *validation.Validator
	sink      Sink
	config    Config
	logger    zerolog.Logger
	flight    singleflight.Group
}

// New creates an optimizer.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("source fetcher is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewManager(cache.NewMemoryStore(), cache.ManagerConfig{})
	}
	if cfg.Policies == nil {
		cfg.Policies = policy.NewDefaultProvider()
	}
	if cfg.Sink == nil {
		cfg.Sink = PrometheusSink{}
	}
	if cfg.OptimizeTimeout > 0 {
		cfg.EngineConfig.Timeout = cfg.OptimizeTimeout
	}

	return &Optimizer{
		fetcher:   cfg.Fetcher,
		cache:     cfg.Cache,
		policies:  cfg.Policies,
		engine:    engine.New(cfg.EngineConfig),
		validator: validation.New(),
		sink:      cfg.Sink,
		config:    cfg,
		logger:    logging.NewLogger("optimizer"),
	}, nil
}

// OptimizeImageForPDF optimizes the image behind sourceIdentity for
// embedding into a generated PDF. It always resolves to a result carrying
// at least sizes, dimensions, format, a compression ratio in [0,1] and an
// optional error; callers branch on Error and Data, never on panics.
//
// Concurrent calls for the same identity and content type are deduplicated;
// duplicate work would be wasted but never unsafe, since cache writes are
// idempotent last-write-wins.
func (o *Optimizer) OptimizeImageForPDF(ctx context.Context, sourceIdentity string, ct policy.ContentType) *engine.Result {
	key := sourceIdentity + "|" + string(ct)
	v, _, _ := o.flight.Do(key, func() (interface{}, error) {
		return o.optimize(ctx, sourceIdentity, ct), nil
	})
	return v.(*engine.Result)
}

// optimize runs the optimization state machine for one call.
func (o *Optimizer) optimize(ctx context.Context, identity string, ct policy.ContentType) *engine.Result {
	start := time.Now()
	opID := fmt.Sprintf("opt-%d", start.UnixNano())
	logger := o.logger.With().Str("operation", opID).Str("identity", identity).Logger()

	pol, err := o.policies.ContentTypeSettings(ct)
	if err != nil {
		logger.Error().Err(err).Str("content_type", string(ct)).Msg("No policy for content type")
		return o.failure(opID, ct, nil, start, fmt.Sprintf("no policy for content type %q: %v", ct, err))
	}

	// CHECK_STORAGE: a hit bypasses the engine entirely.
	if entry, err := o.cache.GetCompressedImage(ctx, identity); err == nil {
		return o.serveCached(opID, entry, pol, start, logger)
	} else if err != cache.ErrCacheMiss {
		// Storage errors degrade to a miss; processing proceeds.
		logger.Warn().Err(err).Msg("Cache lookup failed, proceeding as miss")
	}

	// LOAD_SOURCE.
	data, err := o.fetcher.Fetch(ctx, identity)
	if err != nil {
		// Without source bytes fallback has nothing to serve.
		logger.Error().Err(err).Msg("Source fetch failed")
		return o.failure(opID, ct, nil, start, fmt.Sprintf("source unavailable: %v", err))
	}

	src, err := engine.NewSourceImage(identity, data)
	if err != nil {
		logger.Warn().Err(err).Msg("Source image unusable")
		// Dimensions are unknown for undecodable bytes, but the container
		// format may still carry an intact signature.
		src = engine.SourceImage{Identity: identity, Format: engine.DetectFormat(data)}
		return o.resolveEngineFailure(opID, ct, data, src, start, err, logger)
	}

	// OPTIMIZE.
	res, err := o.engine.Optimize(ctx, src, pol)
	if err != nil {
		logger.Warn().Err(err).Msg("Engine failure")
		return o.resolveEngineFailure(opID, ct, data, src, start, err, logger)
	}

	// VALIDATE: subscore failures only affect logging and recommendations.
	outcome := o.validator.Validate(src, res, pol)
	if len(res.Data) == 0 {
		// Structurally unusable output forces fallback regardless of the
		// fallback setting semantics elsewhere.
		logger.Error().Msg("Engine produced empty buffer, forcing fallback")
		return o.fallbackResult(opID, ct, data, src, start, "empty_output", logger)
	}
	o.logValidation(outcome, logger)

	// PERSIST: failures are warnings, the result is still served.
	if err := o.cache.SaveCompressedImage(ctx, identity, res, pol); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist optimization result")
	}

	res.ProcessingTime = time.Since(start)

	o.emit(func() {
		o.sink.RecordOptimization(ImageOptimizationEvent{
			OperationID:   opID,
			ContentType:   ct,
			Duration:      res.ProcessingTime,
			Success:       true,
			OriginalSize:  res.OriginalSize,
			OptimizedSize: res.OptimizedSize,
		})
		o.sink.RecordPerformance(PerformanceMetricEvent{
			OperationID: opID,
			Stage:       "optimize",
			Duration:    res.ProcessingTime,
			Success:     true,
			Bytes:       res.OptimizedSize,
		})
	})

	logger.Info().
		Str("content_type", string(ct)).
		Int64("original_size", res.OriginalSize).
		Int64("optimized_size", res.OptimizedSize).
		Float64("ratio", res.CompressionRatio).
		Dur("duration", res.ProcessingTime).
		Msg("Image optimized")

	return res
}

// serveCached returns a stored result, validating it against the current
// policy log-only. Stale entries are always served.
func (o *Optimizer) serveCached(opID string, entry *cache.Entry, pol policy.OptimizationPolicy, start time.Time, logger zerolog.Logger) *engine.Result {
	o.emit(func() {
		for _, w := range o.validator.ValidateReusedEntry(entry, pol) {
			logger.Warn().Str("warning", w).Msg("Reused cache entry policy mismatch")
		}
	})

	res := entry.Result
	res.Metadata.Technique = engine.TechniqueStorage
	res.ProcessingTime = 0

	o.emit(func() {
		o.sink.RecordOptimization(ImageOptimizationEvent{
			OperationID:   opID,
			ContentType:   pol.ContentType,
			Duration:      time.Since(start),
			Success:       true,
			OriginalSize:  res.OriginalSize,
			OptimizedSize: res.OptimizedSize,
			CacheHit:      true,
		})
	})

	logger.Debug().Msg("Serving cached optimization result")
	return &res
}

// resolveEngineFailure routes an engine failure to fallback or a failure
// result depending on configuration. src carries whatever the pipeline
// learned about the original before failing (dimensions, format); fallback
// results keep it so callers still see real metadata.
func (o *Optimizer) resolveEngineFailure(opID string, ct policy.ContentType, data []byte, src engine.SourceImage, start time.Time, err error, logger zerolog.Logger) *engine.Result {
	reason := "engine_failure"
	if ee, ok := err.(*engine.EngineError); ok {
		reason = string(ee.Class)
	}
	if o.config.FallbackEnabled {
		return o.fallbackResult(opID, ct, data, src, start, reason, logger)
	}
	return o.failure(opID, ct, data, start, err.Error())
}

// fallbackResult serves the original unmodified bytes.
func (o *Optimizer) fallbackResult(opID string, ct policy.ContentType, data []byte, src engine.SourceImage, start time.Time, reason string, logger zerolog.Logger) *engine.Result {
	dims := policy.Dimensions{Width: src.Width, Height: src.Height}
	format := src.Format

	res := &engine.Result{
		Data:             data,
		OriginalSize:     int64(len(data)),
		OptimizedSize:    int64(len(data)),
		CompressionRatio: 0,
		Original:         dims,
		Optimized:        dims,
		Format:           format,
		ProcessingTime:   time.Since(start),
		Metadata: engine.Metadata{
			ContentType:    ct,
			OriginalFormat: format,
			Technique:      engine.TechniqueFallback,
		},
	}

	o.emit(func() {
		o.sink.RecordFallback(FallbackOperationEvent{
			OperationID:  opID,
			ContentType:  ct,
			Duration:     res.ProcessingTime,
			Reason:       reason,
			OriginalSize: res.OriginalSize,
		})
	})

	logger.Warn().Str("reason", reason).Msg("Serving original bytes as fallback")
	return res
}

// failure builds a resolved result carrying an error and no usable buffer.
// Technique stays empty: nothing was computed, cached, or served.
func (o *Optimizer) failure(opID string, ct policy.ContentType, data []byte, start time.Time, msg string) *engine.Result {
	res := &engine.Result{
		OriginalSize:   int64(len(data)),
		ProcessingTime: time.Since(start),
		Metadata: engine.Metadata{
			ContentType: ct,
		},
		Error: msg,
	}

	o.emit(func() {
		o.sink.RecordOptimization(ImageOptimizationEvent{
			OperationID:  opID,
			ContentType:  ct,
			Duration:     res.ProcessingTime,
			Success:      false,
			OriginalSize: res.OriginalSize,
		})
	})

	return res
}

// logValidation reports validation results. Failing subscores are never
// fatal; they surface as recommendations.
func (o *Optimizer) logValidation(outcome validation.Outcome, logger zerolog.Logger) {
	for _, w := range outcome.Warnings {
		logger.Warn().Str("warning", w).Msg("Validation warning")
	}
	if !outcome.Valid {
		logger.Warn().
			Float64("confidence", outcome.ConfidenceScore).
			Strs("recommendations", outcome.Recommendations).
			Msg("Optimization outcome below validation bar")
		return
	}
	logger.Debug().Float64("confidence", outcome.ConfidenceScore).Msg("Validation passed")
}

// emit runs a validation or metrics side effect panic-isolated: internal
// failures there downgrade to a warning and never fail the call.
func (o *Optimizer) emit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn().Interface("panic", r).Msg("Metrics/validation side effect panicked")
		}
	}()
	fn()
}

// GetCompressedImageStorageMetrics exposes the reuse-cache storage metrics
// for ops tooling.
func (o *Optimizer) GetCompressedImageStorageMetrics(ctx context.Context) (*cache.StorageMetrics, error) {
	return o.cache.GetStorageMetrics(ctx)
}

// HasCompressedImage reports whether a cached result exists for the
// identity, without payload transfer.
func (o *Optimizer) HasCompressedImage(ctx context.Context, identity string) bool {
	return o.cache.HasCompressedImage(ctx, identity)
}

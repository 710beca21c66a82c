// Package engine implements the content-aware image compression engine.
//
// The engine transforms raw image bytes into an optimized buffer per policy:
// scale to fit within policy bounds preserving aspect ratio, select the
// optimal target format for the content type, and re-encode at the policy's
// target quality. Failures are always returned as typed *EngineError values
// so the orchestrator can route them to fallback.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/logging"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// Prometheus metrics for engine operations.
var (
	engineOptimizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgopt_engine_optimizations_total",
		Help: "Total optimization attempts by content type and outcome",
	}, []string{"content_type", "outcome"})

	engineDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imgopt_engine_duration_seconds",
		Help:    "Optimization duration in seconds by content type",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"content_type"})

	engineBytesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgopt_engine_bytes_saved_total",
		Help: "Total bytes saved by optimization",
	})
)

// Config holds engine configuration.
type Config struct {
	// Timeout bounds a single optimization. Expiry is returned as a
	// FailureTimeout engine error.
	Timeout time.Duration

	// MaxPixels caps the decoded pixel count. Larger inputs are rejected
	// with FailureMemory before full decode.
	MaxPixels int64
}

// DefaultConfig returns safe engine defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   8 * time.Second,
		MaxPixels: 64 << 20, // 64 megapixels
	}
}

// Engine compresses images according to per-content-type policies.
// Engine is stateless between calls and safe for concurrent use.
type Engine struct {
	config Config
	logger zerolog.Logger
}

// New creates an engine with the given configuration. Zero config fields
// fall back to defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = def.MaxPixels
	}
	return &Engine{
		config: cfg,
		logger: logging.NewLogger("engine"),
	}
}

// Optimize transforms the source image per policy. It returns either a
// result with technique "aggressive" or a *EngineError; it never panics.
// The work runs under the engine timeout and respects ctx cancellation,
// both reported as FailureTimeout.
func (e *Engine) Optimize(ctx context.Context, src SourceImage, pol policy.OptimizationPolicy) (*Result, error) {
	start := time.Now()
	defer func() {
		engineDurationSeconds.WithLabelValues(string(pol.ContentType)).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := e.optimize(src, pol, start)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		engineOptimizationsTotal.WithLabelValues(string(pol.ContentType), "timeout").Inc()
		e.logger.Warn().
			Str("identity", src.Identity).
			Dur("elapsed", time.Since(start)).
			Msg("Optimization timed out")
		return nil, &EngineError{
			Class:    FailureTimeout,
			Identity: src.Identity,
			Message:  "optimization deadline exceeded",
			Err:      ctx.Err(),
		}
	case out := <-done:
		if out.err != nil {
			class := "error"
			if ee, ok := out.err.(*EngineError); ok {
				class = string(ee.Class)
			}
			engineOptimizationsTotal.WithLabelValues(string(pol.ContentType), class).Inc()
			return nil, out.err
		}
		engineOptimizationsTotal.WithLabelValues(string(pol.ContentType), "success").Inc()
		if saved := out.res.OriginalSize - out.res.OptimizedSize; saved > 0 {
			engineBytesSavedTotal.Add(float64(saved))
		}
		return out.res, nil
	}
}

// optimize is the synchronous optimization pipeline.
func (e *Engine) optimize(src SourceImage, pol policy.OptimizationPolicy, start time.Time) (res *Result, err error) {
	// Decoders operate on untrusted bytes; a panic there must surface as a
	// typed failure, not escape to the orchestrator.
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &EngineError{
				Class:    FailureCorruptInput,
				Identity: src.Identity,
				Message:  fmt.Sprintf("panic during optimization: %v", r),
			}
		}
	}()

	if len(src.Data) == 0 {
		return nil, &EngineError{
			Class:    FailureCorruptInput,
			Identity: src.Identity,
			Message:  "empty input",
			Err:      ErrEmptyInput,
		}
	}

	if pixels := int64(src.Width) * int64(src.Height); pixels > e.config.MaxPixels {
		return nil, &EngineError{
			Class:    FailureMemory,
			Identity: src.Identity,
			Message:  fmt.Sprintf("pixel count %d exceeds budget %d", pixels, e.config.MaxPixels),
		}
	}

	img, srcFormat, err := decode(src.Data)
	if err != nil {
		return nil, &EngineError{
			Class:    FailureCorruptInput,
			Identity: src.Identity,
			Message:  "decode failed",
			Err:      err,
		}
	}

	bounds := img.Bounds()
	original := policy.Dimensions{Width: bounds.Dx(), Height: bounds.Dy()}

	// Step 1: scale to fit within effective bounds, aspect preserved.
	// High-aspect sources can scale a side below the policy minimums; the
	// clamp raises it back, trading aspect accuracy for the bounds
	// invariant (validation reports the drift). Without aggressive mode
	// the image is re-encoded at original size.
	target := original
	if pol.Aggressive {
		target = fitWithin(original, pol.EffectiveBounds())
		target = clampToMin(target, policy.Dimensions{Width: pol.MinWidth, Height: pol.MinHeight}, original)
	}
	if target != original {
		img = imaging.Resize(img, target.Width, target.Height, imaging.Lanczos)
	}

	// Step 2: format selection. Keep the source format when it already is
	// the optimal one for this content type.
	targetFormat := pol.PreferredFormat
	if targetFormat == "" {
		targetFormat = policy.OptimalFormat(pol.ContentType)
	}
	if !canEncode(targetFormat) {
		return nil, &EngineError{
			Class:    FailureUnsupportedFormat,
			Identity: src.Identity,
			Message:  fmt.Sprintf("no encoder for target format %q", targetFormat),
		}
	}

	// Step 3: encode at policy quality.
	data, err := encode(img, targetFormat, pol.Quality)
	if err != nil {
		return nil, &EngineError{
			Class:    FailureEncode,
			Identity: src.Identity,
			Message:  "encode failed",
			Err:      err,
		}
	}

	originalSize := int64(len(src.Data))
	optimizedSize := int64(len(data))

	e.logger.Debug().
		Str("identity", src.Identity).
		Str("content_type", string(pol.ContentType)).
		Str("format", targetFormat).
		Int64("original_size", originalSize).
		Int64("optimized_size", optimizedSize).
		Msg("Optimization complete")

	return &Result{
		Data:             data,
		OriginalSize:     originalSize,
		OptimizedSize:    optimizedSize,
		CompressionRatio: CompressionRatio(originalSize, optimizedSize),
		Original:         original,
		Optimized:        target,
		Format:           targetFormat,
		ProcessingTime:   time.Since(start),
		Metadata: Metadata{
			ContentType:     pol.ContentType,
			QualityUsed:     pol.Quality,
			FormatConverted: targetFormat != srcFormat,
			OriginalFormat:  srcFormat,
			Technique:       TechniqueAggressive,
		},
	}, nil
}

// fitWithin scales dims to fit inside bounds preserving aspect ratio.
// Floor rounding guarantees the result never exceeds the bounds. Images
// already inside the bounds are returned unchanged (no upscaling).
func fitWithin(dims, bounds policy.Dimensions) policy.Dimensions {
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return dims
	}
	if dims.Width <= bounds.Width && dims.Height <= bounds.Height {
		return dims
	}

	scaleW := float64(bounds.Width) / float64(dims.Width)
	scaleH := float64(bounds.Height) / float64(dims.Height)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	w := int(float64(dims.Width) * scale)
	h := int(float64(dims.Height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return policy.Dimensions{Width: w, Height: h}
}

// clampToMin raises dimensions that fell below the policy minimums. The
// clamp never exceeds the source dimension, so undersized sources pass
// through unscaled rather than upscaled.
func clampToMin(dims, min, source policy.Dimensions) policy.Dimensions {
	if min.Width > 0 && dims.Width < min.Width {
		dims.Width = min.Width
		if dims.Width > source.Width {
			dims.Width = source.Width
		}
	}
	if min.Height > 0 && dims.Height < min.Height {
		dims.Height = min.Height
		if dims.Height > source.Height {
			dims.Height = source.Height
		}
	}
	return dims
}

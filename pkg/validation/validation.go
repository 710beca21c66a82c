// Package validation scores optimization outcomes against policy on four
// independent axes and produces a confidence score plus recommendations.
//
// Validation never fails an optimization: failing subscores surface as
// recommendations and warnings, and the orchestrator only logs them. The
// one exception is structural unusability (empty output), which the
// orchestrator turns into a fallback.
package validation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/engine"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/logging"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// Subscore weights for the overall confidence score.
const (
	WeightSizeReduction         = 0.3
	WeightQualityPreservation   = 0.3
	WeightFormatOptimization    = 0.2
	WeightDimensionOptimization = 0.2
)

// Size reduction classification tiers (fractions of original size removed).
const (
	ReductionExcellent = 0.50
	ReductionGood      = 0.30
)

// minReadableDimension is the smallest dimension (px) at which rendered
// text remains readable after scaling.
const minReadableDimension = 100

// maxSaneDimension bounds structurally plausible output dimensions.
const maxSaneDimension = 20000

// Quality-preservation baselines per content type: the minimum acceptable
// byte-density ratio (optimized bytes-per-pixel relative to original).
// Text and logos need more detail retained than photos.
var qualityBaselines = map[policy.ContentType]float64{
	policy.ContentTypeText:     0.50,
	policy.ContentTypeLogo:     0.50,
	policy.ContentTypeGraphics: 0.40,
	policy.ContentTypePhoto:    0.30,
}

// Subscore is one independently computed validation axis.
type Subscore struct {
	// Valid reports whether this axis passed.
	Valid bool `json:"valid"`

	// Score is the axis score in [0,1].
	Score float64 `json:"score"`

	// Metrics holds the supporting measurements behind the score.
	Metrics map[string]float64 `json:"metrics"`
}

// Outcome is the full validation result for one optimization.
type Outcome struct {
	SizeReduction         Subscore `json:"size_reduction"`
	QualityPreservation   Subscore `json:"quality_preservation"`
	FormatOptimization    Subscore `json:"format_optimization"`
	DimensionOptimization Subscore `json:"dimension_optimization"`

	// Valid requires passing structural checks and at least 75% of the
	// subscores.
	Valid bool `json:"valid"`

	// ConfidenceScore is the weighted sum of passing subscores, in [0,1].
	ConfidenceScore float64 `json:"confidence_score"`

	// Recommendations lists actionable suggestions for failing subscores,
	// in subscore order.
	Recommendations []string `json:"recommendations,omitempty"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validator scores optimization outcomes. It is stateless and safe for
// concurrent use.
type Validator struct {
	logger zerolog.Logger
}

// New creates a validator.
func New() *Validator {
	return &Validator{logger: logging.NewLogger("validation")}
}

// Validate scores an optimization result against its policy.
// It never panics; internal failures are downgraded to an outcome warning.
func (v *Validator) Validate(src engine.SourceImage, res *engine.Result, pol policy.OptimizationPolicy) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Warn().Interface("panic", r).Msg("Validation panicked, downgrading to warning")
			out.Warnings = append(out.Warnings, fmt.Sprintf("validation aborted internally: %v", r))
			out.Valid = false
		}
	}()

	out = Outcome{}

	structuralOK := v.structuralChecks(res, &out)

	out.SizeReduction = v.scoreSizeReduction(res, pol, &out)
	out.QualityPreservation = v.scoreQualityPreservation(res, pol, &out)
	out.FormatOptimization = v.scoreFormatOptimization(res, pol, &out)
	out.DimensionOptimization = v.scoreDimensionOptimization(res, pol, &out)

	passed := 0
	confidence := 0.0
	for _, sub := range []struct {
		s Subscore
		w float64
	}{
		{out.SizeReduction, WeightSizeReduction},
		{out.QualityPreservation, WeightQualityPreservation},
		{out.FormatOptimization, WeightFormatOptimization},
		{out.DimensionOptimization, WeightDimensionOptimization},
	} {
		if sub.s.Valid {
			passed++
			confidence += sub.w
		}
	}

	out.ConfidenceScore = math.Round(confidence*1000) / 1000
	out.Valid = structuralOK && passed >= 3

	return out
}

// structuralChecks verifies the result is usable at all: non-empty output
// and sane extreme bounds.
func (v *Validator) structuralChecks(res *engine.Result, out *Outcome) bool {
	ok := true

	if len(res.Data) == 0 {
		out.Errors = append(out.Errors, "optimized output buffer is empty")
		ok = false
	}
	if res.Optimized.Width <= 0 || res.Optimized.Height <= 0 {
		out.Errors = append(out.Errors, fmt.Sprintf("optimized dimensions %dx%d are not positive",
			res.Optimized.Width, res.Optimized.Height))
		ok = false
	}
	if res.Optimized.Width > maxSaneDimension || res.Optimized.Height > maxSaneDimension {
		out.Errors = append(out.Errors, fmt.Sprintf("optimized dimensions %dx%d exceed sane bounds",
			res.Optimized.Width, res.Optimized.Height))
		ok = false
	}
	if res.OptimizedSize >= res.OriginalSize && res.OriginalSize > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"optimized size %d not smaller than original %d; compression ratio clamped to 0",
			res.OptimizedSize, res.OriginalSize))
	}

	return ok
}

// scoreSizeReduction classifies the achieved size reduction.
func (v *Validator) scoreSizeReduction(res *engine.Result, pol policy.OptimizationPolicy, out *Outcome) Subscore {
	minReduction := pol.MinSizeReduction
	if minReduction <= 0 {
		minReduction = policy.DefaultMinSizeReduction
	}

	var actual float64
	if res.OriginalSize > 0 {
		actual = 1 - float64(res.OptimizedSize)/float64(res.OriginalSize)
	}
	if actual < 0 {
		actual = 0
	}

	var score float64
	switch {
	case actual >= ReductionExcellent:
		score = 1.0
	case actual >= ReductionGood:
		score = 0.8
	case actual >= minReduction:
		score = 0.6
	default:
		score = 0.2
	}

	valid := actual >= minReduction
	if !valid {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf(
			"size reduction %.0f%% below minimum %.0f%%: enable aggressive mode or lower quality settings",
			actual*100, minReduction*100))
	}

	return Subscore{
		Valid: valid,
		Score: score,
		Metrics: map[string]float64{
			"actual_reduction": actual,
			"min_reduction":    minReduction,
		},
	}
}

// scoreQualityPreservation estimates retained visual quality from byte
// density relative to the content-type baseline, plus a readability floor
// for text content.
func (v *Validator) scoreQualityPreservation(res *engine.Result, pol policy.OptimizationPolicy, out *Outcome) Subscore {
	baseline, ok := qualityBaselines[pol.ContentType]
	if !ok {
		baseline = qualityBaselines[policy.ContentTypePhoto]
	}

	origPixels := float64(res.Original.Width) * float64(res.Original.Height)
	optPixels := float64(res.Optimized.Width) * float64(res.Optimized.Height)

	// Byte density ratio: how many bytes per pixel survived relative to the
	// source. A heavily quantized output drops well below the baseline.
	densityRatio := 1.0
	if origPixels > 0 && optPixels > 0 && res.OriginalSize > 0 {
		origDensity := float64(res.OriginalSize) / origPixels
		optDensity := float64(res.OptimizedSize) / optPixels
		if origDensity > 0 {
			densityRatio = optDensity / origDensity
		}
	}

	score := densityRatio / baseline
	if score > 1 {
		score = 1
	}
	valid := densityRatio >= baseline

	// Text must stay readable after scaling.
	readable := true
	if pol.ContentType == policy.ContentTypeText {
		smaller := res.Optimized.Width
		if res.Optimized.Height < smaller {
			smaller = res.Optimized.Height
		}
		if smaller < minReadableDimension {
			readable = false
			valid = false
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"text content scaled below readable size (%dpx < %dpx)", smaller, minReadableDimension))
		}
	}

	if !valid {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf(
			"increase quality settings for %s content", pol.ContentType))
	}

	metrics := map[string]float64{
		"density_ratio": densityRatio,
		"baseline":      baseline,
	}
	if !readable {
		metrics["readable"] = 0
	}

	return Subscore{Valid: valid, Score: score, Metrics: metrics}
}

// scoreFormatOptimization checks the technically optimal format was chosen,
// scaled by achieved compression effectiveness.
func (v *Validator) scoreFormatOptimization(res *engine.Result, pol policy.OptimizationPolicy, out *Outcome) Subscore {
	optimal := policy.OptimalFormat(pol.ContentType)
	isOptimal := res.Format == optimal

	effectiveness := res.CompressionRatio / ReductionExcellent
	if effectiveness > 1 {
		effectiveness = 1
	}

	var score float64
	if isOptimal {
		// Optimal format scores at least half even with weak compression.
		score = 0.5 + 0.5*effectiveness
	} else {
		score = 0.3 * effectiveness
		out.Recommendations = append(out.Recommendations, fmt.Sprintf(
			"use the preferred format %s for %s content (got %s)", optimal, pol.ContentType, res.Format))
	}

	metric := 0.0
	if isOptimal {
		metric = 1.0
	}

	return Subscore{
		Valid: isOptimal,
		Score: score,
		Metrics: map[string]float64{
			"optimal_format": metric,
			"effectiveness":  effectiveness,
		},
	}
}

// scoreDimensionOptimization checks bounds, aspect-ratio accuracy, and
// scores pixel-count reduction as scaling effectiveness.
func (v *Validator) scoreDimensionOptimization(res *engine.Result, pol policy.OptimizationPolicy, out *Outcome) Subscore {
	tolerance := pol.AspectRatioTolerance
	if tolerance <= 0 {
		tolerance = policy.DefaultAspectRatioTolerance
	}

	bounds := pol.EffectiveBounds()
	withinBounds := true
	if bounds.Width > 0 && res.Optimized.Width > bounds.Width {
		withinBounds = false
	}
	if bounds.Height > 0 && res.Optimized.Height > bounds.Height {
		withinBounds = false
	}
	if !withinBounds && res.Metadata.Technique != engine.TechniqueFallback {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"optimized dimensions %dx%d exceed policy bounds %dx%d",
			res.Optimized.Width, res.Optimized.Height, bounds.Width, bounds.Height))
	}

	// Min-side check. Sources already below the minimums are exempt; the
	// engine never upscales them.
	belowMin := false
	if pol.MinWidth > 0 && res.Optimized.Width < pol.MinWidth && res.Original.Width >= pol.MinWidth {
		belowMin = true
	}
	if pol.MinHeight > 0 && res.Optimized.Height < pol.MinHeight && res.Original.Height >= pol.MinHeight {
		belowMin = true
	}
	if belowMin {
		withinBounds = false
		if res.Metadata.Technique != engine.TechniqueFallback {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"optimized dimensions %dx%d fall below policy minimums %dx%d",
				res.Optimized.Width, res.Optimized.Height, pol.MinWidth, pol.MinHeight))
		}
	}

	drift := aspectDrift(res.Original, res.Optimized)
	aspectOK := drift <= tolerance
	if !aspectOK {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"aspect ratio drift %.1f%% exceeds %.1f%% tolerance", drift*100, tolerance*100))
	}

	// Scaling effectiveness: fraction of pixels removed.
	origPixels := float64(res.Original.Width) * float64(res.Original.Height)
	optPixels := float64(res.Optimized.Width) * float64(res.Optimized.Height)
	pixelReduction := 0.0
	if origPixels > 0 {
		pixelReduction = 1 - optPixels/origPixels
		if pixelReduction < 0 {
			pixelReduction = 0
		}
	}

	valid := withinBounds && aspectOK
	score := 0.0
	if valid {
		score = 0.5 + 0.5*pixelReduction
	}

	if !valid {
		out.Recommendations = append(out.Recommendations,
			"review dimension bounds and scaling configuration")
	}

	return Subscore{
		Valid: valid,
		Score: score,
		Metrics: map[string]float64{
			"aspect_drift":    drift,
			"pixel_reduction": pixelReduction,
		},
	}
}

// aspectDrift returns the relative aspect-ratio deviation between two
// dimension pairs.
func aspectDrift(original, optimized policy.Dimensions) float64 {
	if original.Height == 0 || optimized.Height == 0 || original.Width == 0 {
		return 0
	}
	origAspect := float64(original.Width) / float64(original.Height)
	optAspect := float64(optimized.Width) / float64(optimized.Height)
	if origAspect == 0 {
		return 0
	}
	return math.Abs(optAspect-origAspect) / origAspect
}

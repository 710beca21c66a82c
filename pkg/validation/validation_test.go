package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/engine"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

func photoPolicy() policy.OptimizationPolicy {
	return policy.DefaultPolicySet()[policy.ContentTypePhoto]
}

// goodResult builds a result that passes all four subscores under the
// default photo policy: strong size reduction, high retained byte density,
// optimal format, in-bounds scaled dimensions.
func goodResult() *engine.Result {
	return &engine.Result{
		Data:             make([]byte, 3000),
		OriginalSize:     10000,
		OptimizedSize:    3000,
		CompressionRatio: 0.7,
		Original:         policy.Dimensions{Width: 2000, Height: 1000},
		Optimized:        policy.Dimensions{Width: 1024, Height: 512},
		Format:           policy.FormatJPEG,
		Metadata: engine.Metadata{
			ContentType: policy.ContentTypePhoto,
			QualityUsed: 75,
			Technique:   engine.TechniqueAggressive,
		},
	}
}

func srcFor(res *engine.Result) engine.SourceImage {
	return engine.SourceImage{
		Identity: "test.jpg",
		Data:     make([]byte, res.OriginalSize),
		Width:    res.Original.Width,
		Height:   res.Original.Height,
		Format:   policy.FormatJPEG,
	}
}

func TestValidate_AllSubscoresPass(t *testing.T) {
	v := New()
	res := goodResult()

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.True(t, out.SizeReduction.Valid, "size reduction should pass")
	assert.True(t, out.QualityPreservation.Valid, "quality preservation should pass")
	assert.True(t, out.FormatOptimization.Valid, "format optimization should pass")
	assert.True(t, out.DimensionOptimization.Valid, "dimension optimization should pass")
	assert.True(t, out.Valid)
	assert.Equal(t, 1.0, out.ConfidenceScore, "all subscores passing must yield confidence 1.0")
	assert.Empty(t, out.Recommendations)
	assert.Empty(t, out.Errors)
}

func TestValidate_AllSubscoresFail(t *testing.T) {
	v := New()

	// Larger output, diluted density, wrong format, out-of-bounds upscale.
	res := &engine.Result{
		Data:             make([]byte, 12000),
		OriginalSize:     10000,
		OptimizedSize:    12000,
		CompressionRatio: 0,
		Original:         policy.Dimensions{Width: 500, Height: 500},
		Optimized:        policy.Dimensions{Width: 4000, Height: 2500},
		Format:           policy.FormatGIF,
		Metadata: engine.Metadata{
			ContentType: policy.ContentTypePhoto,
			Technique:   engine.TechniqueAggressive,
		},
	}

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.False(t, out.SizeReduction.Valid)
	assert.False(t, out.QualityPreservation.Valid)
	assert.False(t, out.FormatOptimization.Valid)
	assert.False(t, out.DimensionOptimization.Valid)
	assert.False(t, out.Valid)
	assert.Equal(t, 0.0, out.ConfidenceScore, "no subscores passing must yield confidence 0.0")
	assert.NotEmpty(t, out.Recommendations)
}

func TestValidate_ConfidenceWeights(t *testing.T) {
	v := New()

	// Wrong format only: size/quality/dimension pass, format fails.
	res := goodResult()
	res.Format = policy.FormatPNG

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.True(t, out.SizeReduction.Valid)
	assert.True(t, out.QualityPreservation.Valid)
	assert.False(t, out.FormatOptimization.Valid)
	assert.True(t, out.DimensionOptimization.Valid)
	assert.InDelta(t, 0.8, out.ConfidenceScore, 0.001, "weights 0.3+0.3+0.2 = 0.8")

	// Three of four subscores still meets the 75% bar.
	assert.True(t, out.Valid)

	require.NotEmpty(t, out.Recommendations)
	assert.Contains(t, out.Recommendations[0], "preferred format")
}

func TestValidate_TwoFailuresInvalid(t *testing.T) {
	v := New()

	res := goodResult()
	res.Format = policy.FormatPNG
	res.OptimizedSize = 9500 // below min reduction
	res.Data = make([]byte, 9500)

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.False(t, out.Valid, "two failing subscores is below the 75% bar")
	assert.InDelta(t, 0.5, out.ConfidenceScore, 0.2)
}

func TestValidate_EmptyBufferStructurallyInvalid(t *testing.T) {
	v := New()

	res := goodResult()
	res.Data = nil
	res.OptimizedSize = 0

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.False(t, out.Valid, "empty output must fail structural checks regardless of subscores")
	require.NotEmpty(t, out.Errors)
	assert.Contains(t, out.Errors[0], "empty")
}

func TestValidate_SizeReductionTiers(t *testing.T) {
	v := New()

	tests := []struct {
		name          string
		optimizedSize int64
		wantScore     float64
		wantValid     bool
	}{
		{"excellent", 4000, 1.0, true},   // 60% reduction
		{"good", 6500, 0.8, true},        // 35% reduction
		{"acceptable", 8500, 0.6, true},  // 15% reduction
		{"poor", 9500, 0.2, false},       // 5% reduction
		{"none", 10000, 0.2, false},      // 0%
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := goodResult()
			res.OptimizedSize = tt.optimizedSize
			res.Data = make([]byte, tt.optimizedSize)
			res.CompressionRatio = engine.CompressionRatio(res.OriginalSize, tt.optimizedSize)

			out := v.Validate(srcFor(res), res, photoPolicy())
			assert.Equal(t, tt.wantScore, out.SizeReduction.Score)
			assert.Equal(t, tt.wantValid, out.SizeReduction.Valid)
		})
	}
}

func TestValidate_TextReadability(t *testing.T) {
	v := New()
	pol := policy.DefaultPolicySet()[policy.ContentTypeText]

	res := goodResult()
	res.Metadata.ContentType = policy.ContentTypeText
	res.Format = policy.FormatPNG
	res.Optimized = policy.Dimensions{Width: 160, Height: 80} // smaller dim < 100px

	out := v.Validate(srcFor(res), res, pol)

	assert.False(t, out.QualityPreservation.Valid, "text below 100px smaller dimension must fail readability")
	require.NotEmpty(t, out.Warnings)

	found := false
	for _, w := range out.Warnings {
		if containsSubstring(w, "readable") {
			found = true
		}
	}
	assert.True(t, found, "expected a readability warning, got %v", out.Warnings)
}

func TestValidate_QualityBaselinesByContentType(t *testing.T) {
	v := New()

	// Byte density dropped to ~35% of original. Acceptable for photos
	// (baseline 0.30), unacceptable for text (baseline 0.50).
	build := func(ct policy.ContentType, format string) *engine.Result {
		res := goodResult()
		res.Metadata.ContentType = ct
		res.Format = format
		res.Original = policy.Dimensions{Width: 1000, Height: 1000}
		res.Optimized = policy.Dimensions{Width: 1000, Height: 1000}
		res.OriginalSize = 100000
		res.OptimizedSize = 35000
		res.Data = make([]byte, 35000)
		res.CompressionRatio = 0.65
		return res
	}

	photo := v.Validate(srcFor(build(policy.ContentTypePhoto, policy.FormatJPEG)),
		build(policy.ContentTypePhoto, policy.FormatJPEG), photoPolicy())
	assert.True(t, photo.QualityPreservation.Valid, "35%% density is fine for photos")

	textPol := policy.DefaultPolicySet()[policy.ContentTypeText]
	text := v.Validate(srcFor(build(policy.ContentTypeText, policy.FormatPNG)),
		build(policy.ContentTypeText, policy.FormatPNG), textPol)
	assert.False(t, text.QualityPreservation.Valid, "35%% density is too low for text")
}

func TestValidate_AspectDriftWarning(t *testing.T) {
	v := New()

	res := goodResult()
	// Distorted: 2:1 original squeezed to ~1.37:1.
	res.Optimized = policy.Dimensions{Width: 700, Height: 512}

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.False(t, out.DimensionOptimization.Valid)
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[0], "aspect ratio")
}

func TestValidate_BelowMinimumDimensionsInvalid(t *testing.T) {
	v := New()

	// Wide banner scaled below the photo policy MinHeight of 50.
	res := goodResult()
	res.Original = policy.Dimensions{Width: 4000, Height: 100}
	res.Optimized = policy.Dimensions{Width: 1024, Height: 25}

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.False(t, out.DimensionOptimization.Valid)
	found := false
	for _, w := range out.Warnings {
		if containsSubstring(w, "below policy minimums") {
			found = true
		}
	}
	assert.True(t, found, "expected a below-minimum warning, got %v", out.Warnings)
}

func TestValidate_UndersizedSourceExemptFromMinimums(t *testing.T) {
	v := New()

	// Source already below the minimums; the engine never upscales, so the
	// subscore must not penalize the pass-through dimensions.
	res := goodResult()
	res.Original = policy.Dimensions{Width: 40, Height: 40}
	res.Optimized = policy.Dimensions{Width: 40, Height: 40}

	out := v.Validate(srcFor(res), res, photoPolicy())

	assert.True(t, out.DimensionOptimization.Valid)
}

func TestValidate_RecommendationOrder(t *testing.T) {
	v := New()

	// Fail size and format; recommendations must come in subscore order.
	res := goodResult()
	res.OptimizedSize = 9800
	res.Data = make([]byte, 9800)
	res.CompressionRatio = 0.02
	res.Format = policy.FormatPNG

	out := v.Validate(srcFor(res), res, photoPolicy())

	require.GreaterOrEqual(t, len(out.Recommendations), 2)
	assert.Contains(t, out.Recommendations[0], "size reduction")
	assert.Contains(t, out.Recommendations[1], "preferred format")
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/pdf-image-optimizer/internal/testutil"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

func photoPolicy() policy.OptimizationPolicy {
	return policy.DefaultPolicySet()[policy.ContentTypePhoto]
}

func TestNewSourceImage(t *testing.T) {
	data := testutil.PNGImage(200, 100)

	src, err := NewSourceImage("products/1.png", data)
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}
	if src.Width != 200 || src.Height != 100 {
		t.Errorf("dimensions = %dx%d, want 200x100", src.Width, src.Height)
	}
	if src.Format != policy.FormatPNG {
		t.Errorf("format = %q, want png", src.Format)
	}
	if src.Identity != "products/1.png" {
		t.Errorf("identity = %q", src.Identity)
	}
}

func TestNewSourceImage_Empty(t *testing.T) {
	_, err := NewSourceImage("empty", nil)
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %T", err)
	}
	if ee.Class != FailureCorruptInput {
		t.Errorf("class = %q, want corrupt_input", ee.Class)
	}
	if !errors.Is(err, ErrEmptyInput) {
		t.Error("expected ErrEmptyInput in chain")
	}
}

func TestNewSourceImage_UnknownSignature(t *testing.T) {
	_, err := NewSourceImage("text", testutil.NotAnImage())
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %T", err)
	}
	if ee.Class != FailureUnsupportedFormat {
		t.Errorf("class = %q, want unsupported_format", ee.Class)
	}
}

func TestOptimize_Photo(t *testing.T) {
	eng := New(DefaultConfig())
	data := testutil.JPEGImage(400, 300, 95)

	src, err := NewSourceImage("photo.jpg", data)
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	res, err := eng.Optimize(context.Background(), src, photoPolicy())
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if res.Metadata.Technique != TechniqueAggressive {
		t.Errorf("technique = %q, want aggressive", res.Metadata.Technique)
	}
	if res.OriginalSize != int64(len(data)) {
		t.Errorf("original size = %d, want %d", res.OriginalSize, len(data))
	}
	if res.Format != policy.FormatJPEG {
		t.Errorf("format = %q, want jpeg", res.Format)
	}
	if res.Metadata.FormatConverted {
		t.Error("jpeg source to jpeg target should not count as converted")
	}
	if res.ProcessingTime <= 0 {
		t.Error("processing time should be positive")
	}
	if len(res.Data) == 0 {
		t.Error("optimized buffer is empty")
	}
}

func TestOptimize_ScalesToFitBounds(t *testing.T) {
	eng := New(DefaultConfig())
	data := testutil.JPEGImage(2000, 2000, 90)

	src, err := NewSourceImage("big.jpg", data)
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	pol := photoPolicy()
	pol.MaxWidth = 300
	pol.MaxHeight = 300
	pol.AggressiveMaxWidth = 300
	pol.AggressiveMaxHeight = 300

	res, err := eng.Optimize(context.Background(), src, pol)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if res.Optimized.Width > 300 || res.Optimized.Height > 300 {
		t.Errorf("optimized dims %dx%d exceed 300x300 cap", res.Optimized.Width, res.Optimized.Height)
	}

	origAspect := float64(res.Original.Width) / float64(res.Original.Height)
	optAspect := float64(res.Optimized.Width) / float64(res.Optimized.Height)
	drift := origAspect/optAspect - 1
	if drift < 0 {
		drift = -drift
	}
	if drift > 0.05 {
		t.Errorf("aspect ratio drift %f exceeds 5%% tolerance", drift)
	}
}

func TestOptimize_NonAggressiveKeepsDimensions(t *testing.T) {
	eng := New(DefaultConfig())
	data := testutil.JPEGImage(1800, 1700, 90)

	src, err := NewSourceImage("big.jpg", data)
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	pol := photoPolicy()
	pol.Aggressive = false
	pol.MaxWidth = 300
	pol.MaxHeight = 300

	res, err := eng.Optimize(context.Background(), src, pol)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if res.Optimized != res.Original {
		t.Errorf("non-aggressive mode resized %v to %v", res.Original, res.Optimized)
	}
}

func TestOptimize_FormatConversion(t *testing.T) {
	eng := New(DefaultConfig())

	// Photo policy converts PNG sources to JPEG.
	data := testutil.PNGImage(300, 200)
	src, err := NewSourceImage("photo.png", data)
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	res, err := eng.Optimize(context.Background(), src, photoPolicy())
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if res.Format != policy.FormatJPEG {
		t.Errorf("format = %q, want jpeg", res.Format)
	}
	if !res.Metadata.FormatConverted {
		t.Error("png source to jpeg target should count as converted")
	}
	if res.Metadata.OriginalFormat != policy.FormatPNG {
		t.Errorf("original format = %q, want png", res.Metadata.OriginalFormat)
	}
}

func TestOptimize_GraphicsToWebP(t *testing.T) {
	eng := New(DefaultConfig())
	data := testutil.PNGImage(300, 200)

	src, err := NewSourceImage("chart.png", data)
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	pol := policy.DefaultPolicySet()[policy.ContentTypeGraphics]
	res, err := eng.Optimize(context.Background(), src, pol)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if res.Format != policy.FormatWebP {
		t.Errorf("format = %q, want webp", res.Format)
	}
}

func TestOptimize_CorruptInput(t *testing.T) {
	eng := New(DefaultConfig())

	src := SourceImage{
		Identity: "corrupt.png",
		Data:     testutil.CorruptImage(),
		Width:    100,
		Height:   100,
		Format:   policy.FormatPNG,
	}

	_, err := eng.Optimize(context.Background(), src, photoPolicy())
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %T", err)
	}
	if ee.Class != FailureCorruptInput {
		t.Errorf("class = %q, want corrupt_input", ee.Class)
	}
}

func TestOptimize_PixelBudget(t *testing.T) {
	eng := New(Config{MaxPixels: 1000})

	src, err := NewSourceImage("big.png", testutil.PNGImage(100, 100))
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	_, err = eng.Optimize(context.Background(), src, photoPolicy())
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %T", err)
	}
	if ee.Class != FailureMemory {
		t.Errorf("class = %q, want memory", ee.Class)
	}
}

func TestOptimize_ContextCancelled(t *testing.T) {
	eng := New(DefaultConfig())

	src, err := NewSourceImage("photo.jpg", testutil.JPEGImage(800, 600, 90))
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = eng.Optimize(ctx, src, photoPolicy())
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %T", err)
	}
	if ee.Class != FailureTimeout {
		t.Errorf("class = %q, want timeout", ee.Class)
	}
	if !ee.Retryable() {
		t.Error("timeout failures should be retryable")
	}
}

func TestOptimize_TimeoutConfig(t *testing.T) {
	eng := New(Config{Timeout: time.Nanosecond})

	src, err := NewSourceImage("photo.jpg", testutil.JPEGImage(800, 600, 90))
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	_, err = eng.Optimize(context.Background(), src, photoPolicy())
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %T", err)
	}
	if ee.Class != FailureTimeout {
		t.Errorf("class = %q, want timeout", ee.Class)
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name   string
		dims   policy.Dimensions
		bounds policy.Dimensions
		want   policy.Dimensions
	}{
		{
			name:   "already inside",
			dims:   policy.Dimensions{Width: 100, Height: 100},
			bounds: policy.Dimensions{Width: 300, Height: 300},
			want:   policy.Dimensions{Width: 100, Height: 100},
		},
		{
			name:   "square downscale",
			dims:   policy.Dimensions{Width: 2000, Height: 2000},
			bounds: policy.Dimensions{Width: 300, Height: 300},
			want:   policy.Dimensions{Width: 300, Height: 300},
		},
		{
			name:   "landscape fits width",
			dims:   policy.Dimensions{Width: 1600, Height: 800},
			bounds: policy.Dimensions{Width: 400, Height: 400},
			want:   policy.Dimensions{Width: 400, Height: 200},
		},
		{
			name:   "floor rounding never exceeds bounds",
			dims:   policy.Dimensions{Width: 1000, Height: 999},
			bounds: policy.Dimensions{Width: 333, Height: 333},
			want:   policy.Dimensions{Width: 333, Height: 332},
		},
		{
			name:   "zero bounds disable scaling",
			dims:   policy.Dimensions{Width: 500, Height: 500},
			bounds: policy.Dimensions{},
			want:   policy.Dimensions{Width: 500, Height: 500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fitWithin(tt.dims, tt.bounds)
			if got != tt.want {
				t.Errorf("fitWithin(%v, %v) = %v, want %v", tt.dims, tt.bounds, got, tt.want)
			}
			if tt.bounds.Width > 0 && (got.Width > tt.bounds.Width || got.Height > tt.bounds.Height) {
				t.Errorf("result %v exceeds bounds %v", got, tt.bounds)
			}
		})
	}
}

func TestClampToMin(t *testing.T) {
	tests := []struct {
		name   string
		dims   policy.Dimensions
		min    policy.Dimensions
		source policy.Dimensions
		want   policy.Dimensions
	}{
		{
			name:   "short side raised to minimum",
			dims:   policy.Dimensions{Width: 1024, Height: 25},
			min:    policy.Dimensions{Width: 50, Height: 50},
			source: policy.Dimensions{Width: 4000, Height: 100},
			want:   policy.Dimensions{Width: 1024, Height: 50},
		},
		{
			name:   "within minimums unchanged",
			dims:   policy.Dimensions{Width: 300, Height: 200},
			min:    policy.Dimensions{Width: 50, Height: 50},
			source: policy.Dimensions{Width: 600, Height: 400},
			want:   policy.Dimensions{Width: 300, Height: 200},
		},
		{
			name:   "undersized source never upscaled",
			dims:   policy.Dimensions{Width: 40, Height: 40},
			min:    policy.Dimensions{Width: 50, Height: 50},
			source: policy.Dimensions{Width: 40, Height: 40},
			want:   policy.Dimensions{Width: 40, Height: 40},
		},
		{
			name:   "zero minimums disable the clamp",
			dims:   policy.Dimensions{Width: 10, Height: 10},
			min:    policy.Dimensions{},
			source: policy.Dimensions{Width: 1000, Height: 1000},
			want:   policy.Dimensions{Width: 10, Height: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampToMin(tt.dims, tt.min, tt.source)
			if got != tt.want {
				t.Errorf("clampToMin(%v, %v, %v) = %v, want %v", tt.dims, tt.min, tt.source, got, tt.want)
			}
		})
	}
}

func TestOptimize_HighAspectRespectsMinimums(t *testing.T) {
	eng := New(DefaultConfig())

	// A wide banner whose short side would scale below the policy minimum.
	data := testutil.JPEGImage(4000, 100, 90)
	src, err := NewSourceImage("banner.jpg", data)
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}

	pol := policy.DefaultPolicySet()[policy.ContentTypePhoto]
	res, err := eng.Optimize(context.Background(), src, pol)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	bounds := pol.EffectiveBounds()
	if res.Optimized.Width > bounds.Width || res.Optimized.Height > bounds.Height {
		t.Errorf("optimized %v exceeds bounds %v", res.Optimized, bounds)
	}
	if res.Optimized.Height < pol.MinHeight {
		t.Errorf("optimized height %d below policy minimum %d", res.Optimized.Height, pol.MinHeight)
	}
	if res.Optimized.Width < pol.MinWidth {
		t.Errorf("optimized width %d below policy minimum %d", res.Optimized.Width, pol.MinWidth)
	}
}

func TestCompressionRatio(t *testing.T) {
	tests := []struct {
		original, optimized int64
		want                float64
	}{
		{1000, 500, 0.5},
		{1000, 900, 0.1},
		{1000, 1000, 0},
		{1000, 1500, 0}, // clamped
		{0, 500, 0},
		{1000, 0, 0},
	}

	for _, tt := range tests {
		got := CompressionRatio(tt.original, tt.optimized)
		diff := got - tt.want
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.001 {
			t.Errorf("CompressionRatio(%d, %d) = %f, want %f", tt.original, tt.optimized, got, tt.want)
		}
	}
}

func TestSniffFormat(t *testing.T) {
	if got := sniffFormat(testutil.PNGImage(10, 10)); got != policy.FormatPNG {
		t.Errorf("png sniff = %q", got)
	}
	if got := sniffFormat(testutil.JPEGImage(10, 10, 80)); got != policy.FormatJPEG {
		t.Errorf("jpeg sniff = %q", got)
	}
	if got := sniffFormat(testutil.NotAnImage()); got != "" {
		t.Errorf("text sniff = %q, want empty", got)
	}
	if got := sniffFormat([]byte("RIFF1234AVI ")); got != "" {
		t.Errorf("non-webp RIFF sniff = %q, want empty", got)
	}
}

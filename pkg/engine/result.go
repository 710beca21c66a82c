package engine

import (
	"time"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// Technique marks how a result was produced.
type Technique string

const (
	// TechniqueAggressive marks a freshly computed optimization.
	TechniqueAggressive Technique = "aggressive"

	// TechniqueFallback marks original bytes passed through after a failure.
	TechniqueFallback Technique = "fallback"

	// TechniqueStorage marks a result served from the reuse cache.
	TechniqueStorage Technique = "storage"
)

// SourceImage is an ephemeral per-call view of the raw input image.
type SourceImage struct {
	// Identity is the stable locator for the image source.
	Identity string

	// Data is the raw image bytes.
	Data []byte

	// Width and Height are the original pixel dimensions.
	Width  int
	Height int

	// Format is the decoded source format (png, jpeg, gif, webp).
	Format string
}

// NewSourceImage builds a SourceImage from raw bytes, decoding only the
// header to learn dimensions and format.
func NewSourceImage(identity string, data []byte) (SourceImage, error) {
	if len(data) == 0 {
		return SourceImage{}, &EngineError{
			Class:    FailureCorruptInput,
			Identity: identity,
			Message:  "empty input",
			Err:      ErrEmptyInput,
		}
	}

	if sniffFormat(data) == "" {
		return SourceImage{}, &EngineError{
			Class:    FailureUnsupportedFormat,
			Identity: identity,
			Message:  "no known image signature",
		}
	}

	cfg, format, err := decodeConfig(data)
	if err != nil {
		return SourceImage{}, &EngineError{
			Class:    FailureCorruptInput,
			Identity: identity,
			Message:  "header decode failed",
			Err:      err,
		}
	}

	return SourceImage{
		Identity: identity,
		Data:     data,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
	}, nil
}

// Metadata carries provenance details about an optimization result.
type Metadata struct {
	ContentType     policy.ContentType `json:"content_type"`
	QualityUsed     int                `json:"quality_used"`
	FormatConverted bool               `json:"format_converted"`
	OriginalFormat  string             `json:"original_format"`
	Technique       Technique          `json:"technique"`
}

// Result is the outcome of optimizing a single image. It is the value the
// orchestrator always resolves to, whatever happened along the way.
type Result struct {
	// Data is the optimized image buffer. For fallback results it holds the
	// original bytes; for failure results it is empty.
	Data []byte `json:"data"`

	// OriginalSize and OptimizedSize are byte counts.
	OriginalSize  int64 `json:"original_size"`
	OptimizedSize int64 `json:"optimized_size"`

	// CompressionRatio is 1 - optimized/original, clamped to [0,1].
	CompressionRatio float64 `json:"compression_ratio"`

	// Original and Optimized are the pixel dimensions before and after.
	Original  policy.Dimensions `json:"original"`
	Optimized policy.Dimensions `json:"optimized"`

	// Format is the output encoding format.
	Format string `json:"format"`

	// ProcessingTime is how long optimization took. Zero for cache hits.
	ProcessingTime time.Duration `json:"processing_time"`

	// Metadata carries provenance details.
	Metadata Metadata `json:"metadata"`

	// Error is set on failure results when fallback is disabled.
	Error string `json:"error,omitempty"`
}

// CompressionRatio computes 1 - optimized/original, clamped to [0,1].
// Returns 0 when the optimized output is not smaller than the original.
func CompressionRatio(originalSize, optimizedSize int64) float64 {
	if originalSize <= 0 || optimizedSize <= 0 {
		return 0
	}
	ratio := 1 - float64(optimizedSize)/float64(originalSize)
	if ratio < 0 {
		return 0
	}
	return ratio
}

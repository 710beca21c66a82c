// Package policy defines per-content-type optimization policies and the
// provider interface used to look them up.
package policy

import (
	"fmt"
)

// ContentType classifies the subject matter of an image. The content type
// drives quality, dimension and format decisions in the compression engine.
type ContentType string

const (
	// ContentTypeText is rendered text (tables, labels, fine print).
	ContentTypeText ContentType = "text"

	// ContentTypePhoto is photographic content.
	ContentTypePhoto ContentType = "photo"

	// ContentTypeGraphics is illustrations, charts and rendered graphics.
	ContentTypeGraphics ContentType = "graphics"

	// ContentTypeLogo is brand marks and icons.
	ContentTypeLogo ContentType = "logo"
)

// Valid reports whether the content type is one of the known values.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeText, ContentTypePhoto, ContentTypeGraphics, ContentTypeLogo:
		return true
	}
	return false
}

// Image formats used by the optimization pipeline.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
	FormatGIF  = "gif"
)

// optimalFormats maps each content type to the technically optimal target
// format: lossless raster for text and logos, lossy-with-transparency for
// graphics, lossy photographic for photos.
var optimalFormats = map[ContentType]string{
	ContentTypeText:     FormatPNG,
	ContentTypeLogo:     FormatPNG,
	ContentTypeGraphics: FormatWebP,
	ContentTypePhoto:    FormatJPEG,
}

// OptimalFormat returns the target format for a content type.
// Unknown content types fall back to PNG, the safe lossless choice.
func OptimalFormat(ct ContentType) string {
	if f, ok := optimalFormats[ct]; ok {
		return f
	}
	return FormatPNG
}

// Dimensions holds a width/height pair in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OptimizationPolicy is the quality/dimension policy for one content type.
type OptimizationPolicy struct {
	// ContentType this policy applies to.
	ContentType ContentType `json:"content_type"`

	// Quality is the target encoding quality (0-100).
	Quality int `json:"quality"`

	// MinQuality and MaxQuality bound the acceptable quality range.
	MinQuality int `json:"min_quality"`
	MaxQuality int `json:"max_quality"`

	// MinWidth/MinHeight are the smallest acceptable output dimensions.
	MinWidth  int `json:"min_width"`
	MinHeight int `json:"min_height"`

	// MaxWidth/MaxHeight cap output dimensions in normal mode.
	MaxWidth  int `json:"max_width"`
	MaxHeight int `json:"max_height"`

	// AggressiveMaxWidth/AggressiveMaxHeight cap output dimensions when
	// aggressive mode is active. Zero means same as MaxWidth/MaxHeight.
	AggressiveMaxWidth  int `json:"aggressive_max_width"`
	AggressiveMaxHeight int `json:"aggressive_max_height"`

	// PreferredFormat is the target encoding format for this content type.
	PreferredFormat string `json:"preferred_format"`

	// Aggressive enables tighter dimension caps and scaling. When false the
	// engine re-encodes without resizing.
	Aggressive bool `json:"aggressive"`

	// MinSizeReduction is the minimum acceptable size reduction (fraction,
	// 0-1) before validation flags the outcome as poor.
	MinSizeReduction float64 `json:"min_size_reduction"`

	// AspectRatioTolerance is the maximum allowed aspect-ratio drift between
	// original and optimized dimensions (fraction, 0-1).
	AspectRatioTolerance float64 `json:"aspect_ratio_tolerance"`
}

// EffectiveBounds returns the dimension caps in effect for this policy,
// taking aggressive mode into account.
func (p OptimizationPolicy) EffectiveBounds() Dimensions {
	if p.Aggressive && p.AggressiveMaxWidth > 0 && p.AggressiveMaxHeight > 0 {
		return Dimensions{Width: p.AggressiveMaxWidth, Height: p.AggressiveMaxHeight}
	}
	return Dimensions{Width: p.MaxWidth, Height: p.MaxHeight}
}

// Validate checks the policy for internal consistency.
func (p OptimizationPolicy) Validate() error {
	if !p.ContentType.Valid() {
		return fmt.Errorf("invalid content type: %q", p.ContentType)
	}
	if p.Quality < 0 || p.Quality > 100 {
		return fmt.Errorf("quality must be in [0,100], got %d", p.Quality)
	}
	if p.MinQuality > p.MaxQuality {
		return fmt.Errorf("min quality %d exceeds max quality %d", p.MinQuality, p.MaxQuality)
	}
	if p.Quality < p.MinQuality || p.Quality > p.MaxQuality {
		return fmt.Errorf("quality %d outside bounds [%d,%d]", p.Quality, p.MinQuality, p.MaxQuality)
	}
	if p.MinWidth > p.MaxWidth || p.MinHeight > p.MaxHeight {
		return fmt.Errorf("min dimensions %dx%d exceed max dimensions %dx%d",
			p.MinWidth, p.MinHeight, p.MaxWidth, p.MaxHeight)
	}
	if p.AspectRatioTolerance < 0 || p.AspectRatioTolerance > 1 {
		return fmt.Errorf("aspect ratio tolerance must be in [0,1], got %f", p.AspectRatioTolerance)
	}
	return nil
}

// Default policy constants shared across content types.
const (
	// DefaultAspectRatioTolerance is the allowed aspect-ratio drift.
	DefaultAspectRatioTolerance = 0.05

	// DefaultMinSizeReduction is the minimum size reduction validation
	// accepts before flagging the outcome.
	DefaultMinSizeReduction = 0.10
)

// PolicySet is the full set of policies, one per content type.
type PolicySet map[ContentType]OptimizationPolicy

// DefaultPolicySet returns the centrally defined default policies.
//
// Text and logos keep high quality and a lossless format so glyph edges stay
// sharp; photos tolerate stronger lossy compression; graphics sit in between
// and target WebP for transparency support.
func DefaultPolicySet() PolicySet {
	return PolicySet{
		ContentTypeText: {
			ContentType:          ContentTypeText,
			Quality:              90,
			MinQuality:           75,
			MaxQuality:           100,
			MinWidth:             100,
			MinHeight:            100,
			MaxWidth:             1200,
			MaxHeight:            1200,
			AggressiveMaxWidth:   800,
			AggressiveMaxHeight:  800,
			PreferredFormat:      FormatPNG,
			Aggressive:           true,
			MinSizeReduction:     DefaultMinSizeReduction,
			AspectRatioTolerance: DefaultAspectRatioTolerance,
		},
		ContentTypePhoto: {
			ContentType:          ContentTypePhoto,
			Quality:              75,
			MinQuality:           50,
			MaxQuality:           90,
			MinWidth:             50,
			MinHeight:            50,
			MaxWidth:             1600,
			MaxHeight:            1600,
			AggressiveMaxWidth:   1024,
			AggressiveMaxHeight:  1024,
			PreferredFormat:      FormatJPEG,
			Aggressive:           true,
			MinSizeReduction:     DefaultMinSizeReduction,
			AspectRatioTolerance: DefaultAspectRatioTolerance,
		},
		ContentTypeGraphics: {
			ContentType:          ContentTypeGraphics,
			Quality:              80,
			MinQuality:           60,
			MaxQuality:           95,
			MinWidth:             50,
			MinHeight:            50,
			MaxWidth:             1400,
			MaxHeight:            1400,
			AggressiveMaxWidth:   1000,
			AggressiveMaxHeight:  1000,
			PreferredFormat:      FormatWebP,
			Aggressive:           true,
			MinSizeReduction:     DefaultMinSizeReduction,
			AspectRatioTolerance: DefaultAspectRatioTolerance,
		},
		ContentTypeLogo: {
			ContentType:          ContentTypeLogo,
			Quality:              95,
			MinQuality:           85,
			MaxQuality:           100,
			MinWidth:             32,
			MinHeight:            32,
			MaxWidth:             600,
			MaxHeight:            600,
			AggressiveMaxWidth:   400,
			AggressiveMaxHeight:  400,
			PreferredFormat:      FormatPNG,
			Aggressive:           true,
			MinSizeReduction:     DefaultMinSizeReduction,
			AspectRatioTolerance: DefaultAspectRatioTolerance,
		},
	}
}

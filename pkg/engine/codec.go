package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif" // register GIF decoder

	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/chai2010/webp"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// Magic-byte signatures for early format sniffing. Decoding is still the
// authoritative check; sniffing exists to reject obvious non-images before
// handing bytes to the decoders.
var formatSignatures = map[string][]byte{
	policy.FormatJPEG: {0xFF, 0xD8},
	policy.FormatPNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	policy.FormatGIF:  {0x47, 0x49, 0x46, 0x38},
	policy.FormatWebP: {0x52, 0x49, 0x46, 0x46},
}

// DetectFormat reports the container format of raw bytes by magic-byte
// signature, or "" when unrecognized. Unlike NewSourceImage it never
// decodes, so it works on corrupt payloads with an intact header.
func DetectFormat(data []byte) string {
	return sniffFormat(data)
}

// sniffFormat detects the image format from leading bytes.
// Returns "" when no known signature matches.
func sniffFormat(data []byte) string {
	for format, sig := range formatSignatures {
		if !bytes.HasPrefix(data, sig) {
			continue
		}
		// RIFF containers carry a secondary WEBP marker.
		if format == policy.FormatWebP {
			if len(data) < 12 || !bytes.Equal(data[8:12], []byte("WEBP")) {
				continue
			}
		}
		return format
	}
	return ""
}

// decodeConfig reads image dimensions and format without decoding pixel data.
func decodeConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}

// decode decodes the full image.
func decode(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// encode serializes an image in the target format at the given quality.
// Quality applies to lossy formats only; PNG always encodes lossless.
func encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case policy.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("png encode: %w", err)
		}
	case policy.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("jpeg encode: %w", err)
		}
	case policy.FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, fmt.Errorf("webp encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("no encoder for format %q", format)
	}

	return buf.Bytes(), nil
}

// canEncode reports whether the engine has an encoder for the format.
func canEncode(format string) bool {
	switch format {
	case policy.FormatPNG, policy.FormatJPEG, policy.FormatWebP:
		return true
	}
	return false
}

// Package testutil provides testing utilities for the image optimizer:
// in-memory test image generation and configurable source fetcher mocks.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
)

// PNGImage generates an in-memory PNG with the given dimensions.
// The content is a flat fill with a thin border, which compresses well and
// resembles rendered text/logo content.
func PNGImage(width, height int) []byte {
	img := flatImage(width, height, color.NRGBA{R: 240, G: 240, B: 240, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEGImage generates an in-memory JPEG with the given dimensions at the
// given quality. The content is deterministic pseudo-random noise, which
// resists compression and resembles photographic content.
func JPEGImage(width, height, quality int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(42))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CorruptImage returns bytes with a valid PNG signature followed by garbage,
// so format sniffing passes but decoding fails.
func CorruptImage() []byte {
	sig := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	return append(sig, []byte("definitely not a real png chunk stream")...)
}

// NotAnImage returns bytes with no known image signature.
func NotAnImage() []byte {
	return []byte("plain text, not an image at all")
}

func flatImage(width, height int, fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	border := color.NRGBA{R: 30, G: 30, B: 30, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				img.SetNRGBA(x, y, border)
			} else {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	return img
}

// Package raster loads source images and decodes them into directly indexable
// RGBA pixel grids.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned for images with a zero dimension.
var ErrEmptyImage = errors.New("raster: image has zero width or height")

// PixelDecoder produces the full RGBA pixel grid of an image.
// Repeated calls must return logically identical data.
type PixelDecoder interface {
	Decode() (*image.RGBA, error)
}

// Decoder converts an image.Image to *image.RGBA exactly once and memoizes
// the result. Safe for concurrent use.
type Decoder struct {
	img image.Image

	once  sync.Once
	rgba  *image.RGBA
	err   error
	count int
}

// NewDecoder wraps img for decode-once access.
func NewDecoder(img image.Image) *Decoder {
	return &Decoder{img: img}
}

// Decode returns the decoded pixel grid, converting on first use only.
// The returned image has its origin at (0, 0) and must not be mutated.
func (d *Decoder) Decode() (*image.RGBA, error) {
	d.once.Do(func() {
		d.count++
		d.rgba, d.err = toRGBA(d.img)
	})
	return d.rgba, d.err
}

// toRGBA copies img into a zero-origin RGBA grid. Zero-origin RGBA input is
// returned as is.
func toRGBA(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst, nil
}

// Load decodes an image file (PNG, JPEG, GIF or WebP).
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return img, nil
}

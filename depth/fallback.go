package depth

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Radial is the deterministic fallback: a radial gradient that is nearest
// (1.0) at the image center and falls to 0.0 at the corners.
type Radial struct{}

// Name implements Provider.
func (Radial) Name() string { return "radial" }

// Estimate implements Provider. It never fails for a non-empty image.
func (Radial) Estimate(_ context.Context, img image.Image) (*Buffer, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &EstimationError{Provider: "radial", Err: ErrUnsupportedFormat}
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	buf := NewBuffer(w, h)
	maxDist := math.Sqrt(0.5)
	for y := 0; y < h; y++ {
		dy := (float64(y)+0.5)/float64(h) - 0.5
		for x := 0; x < w; x++ {
			dx := (float64(x)+0.5)/float64(w) - 0.5
			d := math.Sqrt(dx*dx+dy*dy) / maxDist
			buf.Set(x, y, float32(clamp01(1-d)))
		}
	}
	return buf, nil
}

// Luminance treats perceptual lightness (CIE L*) as nearness: bright pixels
// come forward. Invert flips the relation.
type Luminance struct {
	Invert bool
}

// Name implements Provider.
func (Luminance) Name() string { return "luminance" }

// Estimate implements Provider.
func (l Luminance) Estimate(ctx context.Context, img image.Image) (*Buffer, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &EstimationError{Provider: l.Name(), Err: ErrUnsupportedFormat}
	}
	b := img.Bounds()
	buf := NewBuffer(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < b.Dx(); x++ {
			c, ok := colorful.MakeColor(img.At(b.Min.X+x, b.Min.Y+y))
			if !ok {
				// Fully transparent pixel
				continue
			}
			lightness, _, _ := c.Lab()
			v := clamp01(lightness)
			if l.Invert {
				v = 1 - v
			}
			buf.Set(x, y, float32(v))
		}
	}
	return buf, nil
}

// Static serves a precomputed depth map, typically a grayscale image loaded
// from disk. White is nearest.
type Static struct {
	depth *Buffer
}

// FromImage converts a depth map image to a Static provider.
func FromImage(img image.Image) (*Static, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &EstimationError{Provider: "static", Err: ErrUnsupportedFormat}
	}
	b := img.Bounds()
	buf := NewBuffer(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			buf.Set(x, y, float32(g.Y)/0xffff)
		}
	}
	return NewStatic(buf)
}

// NewStatic wraps an existing buffer.
func NewStatic(buf *Buffer) (*Static, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("static depth: %w", err)
	}
	return &Static{depth: buf}, nil
}

// Name implements Provider.
func (s *Static) Name() string { return "static" }

// Estimate implements Provider. The stored map is returned at its own
// resolution; Chain resamples it to the image.
func (s *Static) Estimate(_ context.Context, img image.Image) (*Buffer, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &EstimationError{Provider: s.Name(), Err: ErrUnsupportedFormat}
	}
	return s.depth.Clone(), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

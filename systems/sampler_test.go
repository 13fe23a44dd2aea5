package systems

import (
	"errors"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"testing"

	"github.com/pthm-cable/depthcloud/depth"
	"github.com/pthm-cable/depthcloud/raster"
)

// countingDecoder counts full-buffer decodes.
type countingDecoder struct {
	img   *image.RGBA
	calls atomic.Int32
}

func (d *countingDecoder) Decode() (*image.RGBA, error) {
	d.calls.Add(1)
	return d.img, nil
}

func twoByTwo() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestColorSamplerNearest(t *testing.T) {
	s, err := NewColorSampler(raster.NewDecoder(twoByTwo()))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		u, v    float64
		r, g, b float32
	}{
		{"origin", 0, 0, 1, 0, 0},
		{"just below far corner", 0.99, 0.99, 1, 0, 0},
		{"center", 0.5, 0.5, 1, 0, 0},
		{"far corner", 1, 1, 1, 1, 1},
		{"top right", 1, 0, 0, 1, 0},
		{"bottom left", 0, 1, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := s.Sample(tt.u, tt.v)
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("Sample(%v,%v) = (%v,%v,%v), want (%v,%v,%v)",
					tt.u, tt.v, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestDepthSamplerNearest(t *testing.T) {
	buf := &depth.Buffer{Width: 2, Height: 2, Values: []float32{0.1, 0.2, 0.3, 0.4}}
	s, err := NewDepthSampler(buf)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		u, v float64
		want float32
	}{
		{0, 0, 0.1},
		{0.99, 0.99, 0.1},
		{0.5, 0.5, 0.1},
		{1, 0, 0.2},
		{0, 1, 0.3},
		{1, 1, 0.4},
	}
	for _, tt := range tests {
		if got := s.Sample(tt.u, tt.v); got != tt.want {
			t.Errorf("Sample(%v,%v) = %v, want %v", tt.u, tt.v, got, tt.want)
		}
	}
}

func TestColorSamplerStraightAlpha(t *testing.T) {
	tests := []struct {
		name    string
		c       color.NRGBA
		r, g, b float32
	}{
		{"opaque", color.NRGBA{R: 255, G: 51, A: 255}, 1, 0.2, 0},
		{"half alpha", color.NRGBA{R: 255, A: 128}, 1, 0, 0},
		{"low alpha", color.NRGBA{R: 200, G: 100, A: 64}, 200.0 / 255, 100.0 / 255, 0},
		{"transparent", color.NRGBA{R: 255, G: 255, B: 255}, 0, 0, 0},
	}

	// Low alpha loses precision in the premultiplied grid
	const tol = 1.0 / 32

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
			for y := 0; y < 2; y++ {
				for x := 0; x < 2; x++ {
					img.SetNRGBA(x, y, tt.c)
				}
			}
			s, err := NewColorSampler(raster.NewDecoder(img))
			if err != nil {
				t.Fatal(err)
			}
			r, g, b := s.Sample(0.5, 0.5)
			if math.Abs(float64(r-tt.r)) > tol || math.Abs(float64(g-tt.g)) > tol || math.Abs(float64(b-tt.b)) > tol {
				t.Errorf("Sample() = (%v,%v,%v), want (%v,%v,%v)", r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestColorSamplerDecodesOnce(t *testing.T) {
	const n = 64
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	dec := &countingDecoder{img: img}

	s, err := NewColorSampler(dec)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100000; i++ {
		u := float64(i%n) / n
		s.Sample(u, 1-u)
	}

	if got := dec.calls.Load(); got != 1 {
		t.Errorf("decode called %d times, want 1", got)
	}
}

func TestSamplerEmptyImage(t *testing.T) {
	if _, err := NewDepthSampler(&depth.Buffer{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("depth sampler: expected ErrEmptyImage, got %v", err)
	}

	empty := image.NewRGBA(image.Rect(0, 0, 0, 3))
	if _, err := NewColorSampler(raster.NewDecoder(empty)); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("color sampler: expected ErrEmptyImage, got %v", err)
	}
}

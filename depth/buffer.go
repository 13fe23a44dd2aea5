// Package depth defines the depth provider contract and its implementations:
// model-based estimation, deterministic fallbacks, resampling, normalization
// and a persistent cache.
package depth

import (
	"fmt"
	"math"
)

// Buffer is a single-channel depth grid, row-major, values in [0, 1].
type Buffer struct {
	Width  int
	Height int
	Values []float32
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Values: make([]float32, width*height),
	}
}

// Uniform returns a buffer filled with v.
func Uniform(width, height int, v float32) *Buffer {
	b := NewBuffer(width, height)
	for i := range b.Values {
		b.Values[i] = v
	}
	return b
}

// At returns the value at pixel (x, y).
func (b *Buffer) At(x, y int) float32 {
	return b.Values[y*b.Width+x]
}

// Set writes the value at pixel (x, y).
func (b *Buffer) Set(x, y int, v float32) {
	b.Values[y*b.Width+x] = v
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Width: b.Width, Height: b.Height, Values: make([]float32, len(b.Values))}
	copy(out.Values, b.Values)
	return out
}

// Validate checks dimensions and that every value is a finite number in [0, 1].
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("depth: nil buffer")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("depth: invalid dimensions %dx%d", b.Width, b.Height)
	}
	if len(b.Values) != b.Width*b.Height {
		return fmt.Errorf("depth: %d values for %dx%d buffer", len(b.Values), b.Width, b.Height)
	}
	for i, v := range b.Values {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			return fmt.Errorf("depth: value %v at index %d outside [0,1]", v, i)
		}
	}
	return nil
}

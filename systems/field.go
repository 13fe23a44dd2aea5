package systems

import (
	"errors"
	"fmt"
)

// ErrInvalidDensity is returned for a density below 1.
var ErrInvalidDensity = errors.New("density must be at least 1")

// Particle holds a particle's fixed home coordinate in UV space.
type Particle struct {
	BaseU, BaseV float64
}

// ParticleField is the immutable, row-major grid of base coordinates covering
// an image. It is replaced, never resized.
type ParticleField struct {
	SampleWidth  int
	SampleHeight int
	particles    []Particle
}

// BuildField lays out min(imageW, density) x min(imageH, density) particles
// on an even grid spanning [0,1]^2. A single-sample axis sits at 0.5.
func BuildField(imageW, imageH, density int) (*ParticleField, error) {
	if imageW <= 0 || imageH <= 0 {
		return nil, ErrEmptyImage
	}
	if density < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDensity, density)
	}

	sw := min(imageW, density)
	sh := min(imageH, density)

	f := &ParticleField{
		SampleWidth:  sw,
		SampleHeight: sh,
		particles:    make([]Particle, 0, sw*sh),
	}
	for y := 0; y < sh; y++ {
		v := gridCoord(y, sh)
		for x := 0; x < sw; x++ {
			f.particles = append(f.particles, Particle{BaseU: gridCoord(x, sw), BaseV: v})
		}
	}
	return f, nil
}

func gridCoord(i, n int) float64 {
	if n == 1 {
		return 0.5
	}
	return float64(i) / float64(n-1)
}

// Len returns the particle count.
func (f *ParticleField) Len() int {
	return len(f.particles)
}

// Base returns particle i's base coordinate.
func (f *ParticleField) Base(i int) (u, v float64) {
	p := f.particles[i]
	return p.BaseU, p.BaseV
}

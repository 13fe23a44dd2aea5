package systems

import (
	"math"
	"math/rand"
)

// PerlinNoise generates coherent 3D gradient noise.
// The permutation table is built once at construction and never written again,
// so a single instance can be shared by any number of goroutines.
type PerlinNoise struct {
	perm [512]int
}

// NewPerlinNoise creates a new Perlin noise generator.
func NewPerlinNoise(seed int64) *PerlinNoise {
	p := &PerlinNoise{}
	rng := rand.New(rand.NewSource(seed))

	var perm [256]int
	for i := range perm {
		perm[i] = i
	}

	// Fisher-Yates
	for i := len(perm) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	// Duplicate so corner hashes never need to wrap
	for i := 0; i < 256; i++ {
		p.perm[i] = perm[i]
		p.perm[i+256] = perm[i]
	}

	return p
}

// gradients are the 12 cube-edge directions, padded to 16 so a 4-bit hash
// indexes them directly.
var gradients = [16][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
	{1, 1, 0}, {0, -1, 1}, {-1, 1, 0}, {0, -1, -1},
}

// Noise3D returns a noise value in approximately [-1, 1] for 3D coordinates.
func (p *PerlinNoise) Noise3D(x, y, z float64) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	ix, iy, iz := int(fx)&255, int(fy)&255, int(fz)&255
	x, y, z = x-fx, y-fy, z-fz

	// Corner contributions, indexed by (dx | dy<<1 | dz<<2)
	var c [8]float64
	for k := 0; k < 8; k++ {
		dx, dy, dz := k&1, (k>>1)&1, (k>>2)&1
		h := p.perm[p.perm[p.perm[ix+dx]+iy+dy]+iz+dz] & 15
		g := gradients[h]
		c[k] = g[0]*(x-float64(dx)) + g[1]*(y-float64(dy)) + g[2]*(z-float64(dz))
	}

	u, v, w := fade(x), fade(y), fade(z)
	x00 := lerp(u, c[0], c[1])
	x10 := lerp(u, c[2], c[3])
	x01 := lerp(u, c[4], c[5])
	x11 := lerp(u, c[6], c[7])
	return lerp(w, lerp(v, x00, x10), lerp(v, x01, x11))
}

// fade is the quintic 6t^5 - 15t^4 + 10t^3, C2 continuous at lattice boundaries.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

package systems

// DefaultCurlEpsilon is the finite-difference step used for curl noise.
const DefaultCurlEpsilon = 0.01

// Potential offsets decorrelate the three components of the vector potential.
const (
	potentialOffsetB = 31.416
	potentialOffsetC = 47.853
)

// Vec3 is a plain 3-component vector.
type Vec3 struct {
	X, Y, Z float64
}

// CurlNoise is a divergence-free vector field: the numerical curl of a vector
// potential whose components are three decorrelated fBm stacks of Perlin noise.
type CurlNoise struct {
	noise *PerlinNoise
	eps   float64
}

// NewCurlNoise creates a curl field over the given scalar noise.
// A non-positive eps falls back to DefaultCurlEpsilon.
func NewCurlNoise(noise *PerlinNoise, eps float64) *CurlNoise {
	if eps <= 0 {
		eps = DefaultCurlEpsilon
	}
	return &CurlNoise{noise: noise, eps: eps}
}

// Epsilon returns the finite-difference step.
func (c *CurlNoise) Epsilon() float64 {
	return c.eps
}

// fbm sums three octaves at doubling frequency and halving amplitude.
func (c *CurlNoise) fbm(x, y, z float64) float64 {
	return c.noise.Noise3D(x, y, z) +
		0.5*c.noise.Noise3D(x*2, y*2, z*2) +
		0.25*c.noise.Noise3D(x*4, y*4, z*4)
}

// psi returns one component of the vector potential at a point.
func (c *CurlNoise) psi(component int, x, y, z float64) float64 {
	switch component {
	case 1:
		return c.fbm(x+potentialOffsetB, y+potentialOffsetB, z+potentialOffsetB)
	case 2:
		return c.fbm(x+potentialOffsetC, y+potentialOffsetC, z+potentialOffsetC)
	default:
		return c.fbm(x, y, z)
	}
}

// Curl3D returns curl(psi) at (x, y, z) using symmetric differences.
// Only the six partials the curl needs are evaluated.
func (c *CurlNoise) Curl3D(x, y, z float64) Vec3 {
	e := c.eps
	inv := 1 / (2 * e)

	dPsi3dy := (c.psi(2, x, y+e, z) - c.psi(2, x, y-e, z)) * inv
	dPsi2dz := (c.psi(1, x, y, z+e) - c.psi(1, x, y, z-e)) * inv
	dPsi1dz := (c.psi(0, x, y, z+e) - c.psi(0, x, y, z-e)) * inv
	dPsi3dx := (c.psi(2, x+e, y, z) - c.psi(2, x-e, y, z)) * inv
	dPsi2dx := (c.psi(1, x+e, y, z) - c.psi(1, x-e, y, z)) * inv
	dPsi1dy := (c.psi(0, x, y+e, z) - c.psi(0, x, y-e, z)) * inv

	return Vec3{
		X: dPsi3dy - dPsi2dz,
		Y: dPsi1dz - dPsi3dx,
		Z: dPsi2dx - dPsi1dy,
	}
}

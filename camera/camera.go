// Package camera provides an orbit camera for viewing the point cloud.
package camera

import "math"

// Camera orbits a target point. Angles are in radians.
type Camera struct {
	// Target is the orbit center in world coordinates
	TargetX, TargetY, TargetZ float32

	// Yaw rotates around the world Y axis, Pitch tilts toward the poles
	Yaw, Pitch float32

	// Distance from the target
	Distance float32

	// Vertical field of view in degrees
	FovY float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Constraints
	MinDistance, MaxDistance float32
	MaxPitch                 float32
}

// New creates a camera looking at the origin from +Z.
func New(viewportW, viewportH float32) *Camera {
	return &Camera{
		Distance:    1.6,
		FovY:        45,
		ViewportW:   viewportW,
		ViewportH:   viewportH,
		MinDistance: 0.3,
		MaxDistance: 8,
		MaxPitch:    1.45, // just short of straight up/down
	}
}

// Position returns the eye position in world coordinates.
func (c *Camera) Position() (x, y, z float32) {
	cp := float32(math.Cos(float64(c.Pitch)))
	x = c.TargetX + c.Distance*cp*float32(math.Sin(float64(c.Yaw)))
	y = c.TargetY + c.Distance*float32(math.Sin(float64(c.Pitch)))
	z = c.TargetZ + c.Distance*cp*float32(math.Cos(float64(c.Yaw)))
	return x, y, z
}

// DistanceTo returns the distance from the eye to a world point.
func (c *Camera) DistanceTo(x, y, z float32) float32 {
	ex, ey, ez := c.Position()
	dx, dy, dz := x-ex, y-ey, z-ez
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}

// Rotate orbits by the given screen-pixel drag. A full viewport width drag
// is one half turn.
func (c *Camera) Rotate(dx, dy float32) {
	if c.ViewportW <= 0 || c.ViewportH <= 0 {
		return
	}
	c.Yaw = wrapAngle(c.Yaw - dx/c.ViewportW*math.Pi)
	c.Pitch = clamp(c.Pitch+dy/c.ViewportH*math.Pi/2, -c.MaxPitch, c.MaxPitch)
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// SetDistance sets the orbit distance, clamped to min/max.
func (c *Camera) SetDistance(d float32) {
	c.Distance = clamp(d, c.MinDistance, c.MaxDistance)
}

// ZoomBy divides the distance by factor (factor > 1 moves closer).
func (c *Camera) ZoomBy(factor float32) {
	if factor <= 0 {
		return
	}
	c.SetDistance(c.Distance / factor)
}

// Frame fits a cloud of the given half-extents into view.
func (c *Camera) Frame(halfW, halfH float32) {
	fov := float64(c.FovY) * math.Pi / 180
	extent := max(halfH, halfW*c.ViewportH/max(c.ViewportW, 1))
	d := extent / float32(math.Tan(fov/2))
	c.SetDistance(d * 1.15)
}

// Reset returns the camera to the default orientation and distance.
func (c *Camera) Reset() {
	c.TargetX, c.TargetY, c.TargetZ = 0, 0, 0
	c.Yaw, c.Pitch = 0, 0
	c.SetDistance(1.6)
}

// wrapAngle keeps an angle in [-pi, pi).
func wrapAngle(a float32) float32 {
	r := mod(a+math.Pi, 2*math.Pi)
	return r - math.Pi
}

// mod computes the positive modulo (Go's % can return negative).
func mod(x, m float32) float32 {
	r := float32(math.Mod(float64(x), float64(m)))
	if r < 0 {
		r += m
	}
	return r
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

package renderer

import (
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/depthcloud/camera"
	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/systems"
)

// PointCloud draws particle buffers as round, depth-attenuated billboards
// with an optional additive glow pass.
type PointCloud struct {
	pointSize   float32
	attenuation float32
	glow        bool
	glowAlpha   float32
	theme       Theme

	sprite      rl.Texture2D
	material    rl.Material
	points      quadBatch
	halo        quadBatch
	initialized bool
}

// NewPointCloud creates a point cloud renderer.
func NewPointCloud(particles config.ParticlesConfig, render config.RenderConfig, theme Theme) *PointCloud {
	return &PointCloud{
		pointSize:   float32(particles.PointSize),
		attenuation: float32(particles.SizeAttenuation),
		glow:        render.Glow,
		glowAlpha:   float32(render.GlowStrength),
		theme:       theme,
	}
}

// Init creates the point sprite (must be called after the raylib window is
// created, and again after a context restore).
func (p *PointCloud) Init() {
	if p.initialized {
		return
	}
	// Soft round sprite; the billboard quad is masked to a disc
	img := rl.GenImageGradientRadial(32, 32, 0.6, rl.White, rl.Blank)
	p.sprite = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	rl.SetTextureFilter(p.sprite, rl.FilterBilinear)

	p.material = rl.LoadMaterialDefault()
	rl.SetMaterialTexture(&p.material, rl.MapDiffuse, p.sprite)
	p.initialized = true
}

// SetGlow toggles the glow pass.
func (p *PointCloud) SetGlow(on bool) {
	p.glow = on
}

// SetPointSize changes the base point size.
func (p *PointCloud) SetPointSize(size float32) {
	p.pointSize = size
}

// Draw renders buf from cam. Must be called between BeginDrawing/EndDrawing.
func (p *PointCloud) Draw(buf *systems.Buffers, cam *camera.Camera) {
	if !p.initialized || buf == nil {
		return
	}
	rc := ToRaylib(cam)
	n := buf.Len()
	right, up := billboardBasis(
		[3]float32{rc.Position.X, rc.Position.Y, rc.Position.Z},
		[3]float32{rc.Target.X, rc.Target.Y, rc.Target.Z},
	)
	st := quadStyle{size: p.pointSize, attenuation: p.attenuation, scale: 1, gain: p.theme.PointGain, alpha: 1}

	rl.BeginMode3D(rc)
	p.points.resize(n)
	p.points.draw(buf.Positions, buf.Colors, right, up, st, p.material)

	if p.glow && p.glowAlpha > 0 {
		st.scale, st.alpha = 3, p.glowAlpha
		p.halo.resize(n)
		rl.BeginBlendMode(rl.BlendAdditive)
		p.halo.draw(buf.Positions, buf.Colors, right, up, st, p.material)
		rl.EndBlendMode()
	}
	rl.EndMode3D()
}

// Unload frees GPU resources.
func (p *PointCloud) Unload() {
	if !p.initialized {
		return
	}
	p.points.unload()
	p.halo.unload()
	rl.UnloadTexture(p.sprite)
	rl.MemFree(unsafe.Pointer(p.material.Maps))
	p.initialized = false
}

// Invalidate forgets GPU resources without freeing them, after the context
// that owned them was lost. CPU-side mesh memory is still released.
func (p *PointCloud) Invalidate() {
	p.points.drop()
	p.halo.drop()
	p.initialized = false
}

// PointSize grows points that sit closer to the viewer (larger z).
func PointSize(base, attenuation, z float32) float32 {
	if z < 0 {
		z = 0
	}
	return base * (1 + attenuation*z)
}

func unit8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// ToRaylib converts the orbit camera to a raylib perspective camera.
func ToRaylib(c *camera.Camera) rl.Camera3D {
	x, y, z := c.Position()
	return rl.Camera3D{
		Position:   rl.Vector3{X: x, Y: y, Z: z},
		Target:     rl.Vector3{X: c.TargetX, Y: c.TargetY, Z: c.TargetZ},
		Up:         rl.Vector3{X: 0, Y: 1, Z: 0},
		Fovy:       c.FovY,
		Projection: rl.CameraPerspective,
	}
}

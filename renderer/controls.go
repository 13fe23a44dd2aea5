package renderer

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/depthcloud/systems"
)

const (
	panelWidth  = 260
	sliderWidth = panelWidth - 90
	rowHeight   = 38
)

// ControlValues is the state edited by the control panel.
type ControlValues struct {
	Density   int
	PointSize float32
	Glow      bool
	Animation systems.AnimationParams
}

// Changes reports which values the user edited this frame.
type Changes struct {
	Density   bool // apply on release to avoid rebuilding every drag step
	Animation bool
	PointSize bool
	Glow      bool
	Export    bool
	ResetView bool
}

// Controls draws the parameter panel with raygui.
type Controls struct {
	Values     ControlValues
	MaxDensity int

	densityDrag  float32
	draggingDens bool
}

// NewControls creates a panel with initial values.
func NewControls(v ControlValues, maxDensity int) *Controls {
	return &Controls{Values: v, MaxDensity: maxDensity, densityDrag: float32(v.Density)}
}

// Draw renders the panel at (x, y) and returns what changed.
func (c *Controls) Draw(x, y float32, theme Theme) Changes {
	var ch Changes
	v := &c.Values
	anim := &v.Animation

	rl.DrawText("Point Cloud", int32(x), int32(y), 18, theme.Text)
	y += 28

	// Density (sample grid side); committed when the mouse is released
	label(x, y, "Density", fmt.Sprintf("%d", int(c.densityDrag)), theme)
	y += 16
	d := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: sliderWidth, Height: 16},
		"", "", c.densityDrag, 16, float32(c.MaxDensity))
	if d != c.densityDrag {
		c.densityDrag = d
		c.draggingDens = true
	}
	if c.draggingDens && !rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		c.draggingDens = false
		if int(c.densityDrag) != v.Density {
			v.Density = int(c.densityDrag)
			ch.Density = true
		}
	}
	y += rowHeight - 16

	label(x, y, "Displacement", fmt.Sprintf("%.2f", anim.DisplacementScale), theme)
	y += 16
	if s := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: sliderWidth, Height: 16},
		"", "", float32(anim.DisplacementScale), 0, 2); s != float32(anim.DisplacementScale) {
		anim.DisplacementScale = float64(s)
		ch.Animation = true
	}
	y += rowHeight - 16

	label(x, y, "Point size", fmt.Sprintf("%.4f", v.PointSize), theme)
	y += 16
	if s := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: sliderWidth, Height: 16},
		"", "", v.PointSize, 0.001, 0.02); s != v.PointSize {
		v.PointSize = s
		ch.PointSize = true
	}
	y += rowHeight - 10

	if on := gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 16, Height: 16}, "Animate", anim.Enabled); on != anim.Enabled {
		anim.Enabled = on
		ch.Animation = true
	}
	if on := gui.CheckBox(rl.Rectangle{X: x + 120, Y: y, Width: 16, Height: 16}, "Glow", v.Glow); on != v.Glow {
		v.Glow = on
		ch.Glow = true
	}
	y += 28

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 120, Height: 26}, "Noise: "+anim.Noise.String()) {
		if anim.Noise == systems.NoiseSmooth {
			anim.Noise = systems.NoiseCurl
		} else {
			anim.Noise = systems.NoiseSmooth
		}
		ch.Animation = true
	}
	y += 36

	label(x, y, "Speed", fmt.Sprintf("%.2f", anim.Speed), theme)
	y += 16
	if s := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: sliderWidth, Height: 16},
		"", "", float32(anim.Speed), 0.05, 3); s != float32(anim.Speed) {
		anim.Speed = float64(s)
		ch.Animation = true
	}
	y += rowHeight - 16

	label(x, y, "Intensity", fmt.Sprintf("%.3f", anim.Intensity), theme)
	y += 16
	if s := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: sliderWidth, Height: 16},
		"", "", float32(anim.Intensity), 0, 0.2); s != float32(anim.Intensity) {
		anim.Intensity = float64(s)
		ch.Animation = true
	}
	y += rowHeight

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 120, Height: 26}, "Export PLY") {
		ch.Export = true
	}
	if gui.Button(rl.Rectangle{X: x + 130, Y: y, Width: 100, Height: 26}, "Reset view") {
		ch.ResetView = true
	}

	return ch
}

// Busy reports whether a slider drag is in progress, so the viewer can
// suppress camera orbiting.
func (c *Controls) Busy() bool {
	return c.draggingDens
}

func label(x, y float32, name, value string, theme Theme) {
	rl.DrawText(name, int32(x), int32(y), 14, theme.Muted)
	rl.DrawText(value, int32(x+sliderWidth+10), int32(y+16), 14, theme.Text)
}

package renderer

import (
	"testing"

	"github.com/pthm-cable/depthcloud/config"
)

func TestNewThemeDark(t *testing.T) {
	th := NewTheme(config.RenderConfig{Theme: "dark", Background: [3]uint8{12, 12, 16}})

	if th.Light {
		t.Error("expected dark theme")
	}
	if th.PointGain != 1 {
		t.Errorf("dark theme point gain = %f, want 1", th.PointGain)
	}
	if th.Background.R != 12 || th.Background.B != 16 {
		t.Errorf("background = %v, want configured color", th.Background)
	}
	// Text must stand out from the background
	if int(th.Text.R)-int(th.Background.R) < 100 {
		t.Errorf("text %v too close to background %v", th.Text, th.Background)
	}
}

func TestNewThemeLight(t *testing.T) {
	th := NewTheme(config.RenderConfig{Theme: "light", Background: [3]uint8{12, 12, 16}})

	if !th.Light {
		t.Error("expected light theme")
	}
	if th.Background.R < 200 {
		t.Errorf("light background %v should be bright", th.Background)
	}
	if th.PointGain >= 1 || th.PointGain < 0.7 {
		t.Errorf("light theme point gain = %f, want in [0.7, 1)", th.PointGain)
	}
	if th.Text.R > 80 {
		t.Errorf("light theme text %v should be dark", th.Text)
	}
}

func TestPointSize(t *testing.T) {
	tests := []struct {
		name      string
		base, att float32
		z         float32
		want      float32
	}{
		{"flat", 0.004, 0.5, 0, 0.004},
		{"near", 0.004, 0.5, 1, 0.006},
		{"no attenuation", 0.004, 0, 1, 0.004},
		{"negative depth", 0.004, 0.5, -1, 0.004},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PointSize(tt.base, tt.att, tt.z)
			if d := got - tt.want; d > 1e-7 || d < -1e-7 {
				t.Errorf("PointSize() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestFillQuads(t *testing.T) {
	right, up := [3]float32{1, 0, 0}, [3]float32{0, 1, 0}
	positions := []float32{0, 0, 0, 1, 2, 0}
	colors := []float32{1, 0.5, 0, 2, -1, 1}
	st := quadStyle{size: 0.004, scale: 1, gain: 0.5, alpha: 1}

	verts := make([]float32, 2*12)
	cols := make([]uint8, 2*16)
	fillQuads(verts, cols, positions, colors, right, up, st)

	tests := []struct {
		name    string
		point   int
		corner  int
		x, y, z float32
	}{
		{"top left", 0, 0, -0.002, 0.002, 0},
		{"bottom left", 0, 1, -0.002, -0.002, 0},
		{"bottom right", 0, 2, 0.002, -0.002, 0},
		{"offset top right", 1, 3, 1.002, 2.002, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verts[tt.point*12+tt.corner*3:]
			if !near(v[0], tt.x) || !near(v[1], tt.y) || !near(v[2], tt.z) {
				t.Errorf("corner = (%v,%v,%v), want (%v,%v,%v)", v[0], v[1], v[2], tt.x, tt.y, tt.z)
			}
		})
	}

	// Every corner of a point carries the same color
	for k := 0; k < 4; k++ {
		c := cols[k*4 : k*4+4]
		if c[0] != 128 || c[1] != 64 || c[2] != 0 || c[3] != 255 {
			t.Errorf("corner %d color = %v", k, c)
		}
	}
	// Out of range channels clamp
	if c := cols[16:20]; c[0] != 255 || c[1] != 0 || c[2] != 128 {
		t.Errorf("clamped color = %v", c)
	}
}

func TestBillboardBasis(t *testing.T) {
	tests := []struct {
		name        string
		pos, target [3]float32
	}{
		{"front", [3]float32{0, 0, 5}, [3]float32{}},
		{"orbit", [3]float32{3, 2, 4}, [3]float32{0.5, 0.5, 0}},
		{"straight down", [3]float32{0, 5, 0}, [3]float32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			right, up := billboardBasis(tt.pos, tt.target)
			f := normalize3(sub3(tt.target, tt.pos))
			if !near(dot3(right, right), 1) || !near(dot3(up, up), 1) {
				t.Errorf("basis not unit: right=%v up=%v", right, up)
			}
			if !near(dot3(right, up), 0) || !near(dot3(right, f), 0) || !near(dot3(up, f), 0) {
				t.Errorf("basis not orthogonal: right=%v up=%v forward=%v", right, up, f)
			}
		})
	}

	right, up := billboardBasis([3]float32{0, 0, 5}, [3]float32{})
	if right != [3]float32{1, 0, 0} || up != [3]float32{0, 1, 0} {
		t.Errorf("front view basis = %v, %v", right, up)
	}
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-5 && d > -1e-5
}

func TestBackgroundGradient(t *testing.T) {
	dark := NewTheme(config.RenderConfig{Theme: "dark", Background: [3]uint8{12, 12, 16}})
	top, bottom := BackgroundGradient(dark)
	if bottom != dark.Background {
		t.Errorf("bottom = %v, want theme background %v", bottom, dark.Background)
	}
	if top.R <= bottom.R {
		t.Errorf("dark theme top %v should be lighter than bottom %v", top, bottom)
	}

	light := NewTheme(config.RenderConfig{Theme: "light", Background: [3]uint8{12, 12, 16}})
	top, bottom = BackgroundGradient(light)
	if top.R >= bottom.R {
		t.Errorf("light theme top %v should be darker than bottom %v", top, bottom)
	}
}

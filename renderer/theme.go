package renderer

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/depthcloud/config"
)

// Theme holds the presentation palette derived from the background color.
type Theme struct {
	Background color.RGBA
	Text       color.RGBA
	Muted      color.RGBA
	Accent     color.RGBA
	// PointGain scales point colors so the cloud keeps contrast against the
	// background. Dark themes use 1.
	PointGain float32
	Light     bool
}

// NewTheme builds a palette for the configured theme ("dark" or "light").
func NewTheme(cfg config.RenderConfig) Theme {
	bg := colorful.Color{
		R: float64(cfg.Background[0]) / 255,
		G: float64(cfg.Background[1]) / 255,
		B: float64(cfg.Background[2]) / 255,
	}
	light := cfg.Theme == "light"
	if light {
		// Mirror the configured background's lightness
		h, c, l := bg.Hcl()
		bg = colorful.Hcl(h, c, 1-l).Clamped()
	}

	fg := colorful.Color{R: 1, G: 1, B: 1}
	if light {
		fg = colorful.Color{R: 0, G: 0, B: 0}
	}
	accent, _ := colorful.Hex("#4fb3ff")

	l, _, _ := bg.Lab()
	gain := float32(1)
	if l > 0.5 {
		// Dim points on bright backgrounds; 0.7 at pure white
		gain = float32(1 - 0.3*(l-0.5)/0.5)
	}

	return Theme{
		Background: toRGBA(bg),
		Text:       toRGBA(bg.BlendLab(fg, 0.85)),
		Muted:      toRGBA(bg.BlendLab(fg, 0.45)),
		Accent:     toRGBA(bg.BlendLab(accent, 0.9)),
		PointGain:  gain,
		Light:      light,
	}
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

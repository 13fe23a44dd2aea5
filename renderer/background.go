package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// BackgroundRenderer draws a soft vertical gradient behind the cloud, derived
// from the theme background so points keep the same contrast everywhere.
type BackgroundRenderer struct {
	top, bottom      color.RGBA
	screenW, screenH int32
}

// NewBackgroundRenderer creates a background for the theme.
func NewBackgroundRenderer(screenW, screenH int32, theme Theme) *BackgroundRenderer {
	top, bottom := BackgroundGradient(theme)
	return &BackgroundRenderer{top: top, bottom: bottom, screenW: screenW, screenH: screenH}
}

// Resize updates the screen dimensions.
func (b *BackgroundRenderer) Resize(screenW, screenH int32) {
	b.screenW = screenW
	b.screenH = screenH
}

// Draw fills the screen with the gradient.
func (b *BackgroundRenderer) Draw() {
	rl.DrawRectangleGradientV(0, 0, b.screenW, b.screenH, b.top, b.bottom)
}

// BackgroundGradient returns the top and bottom colors: the theme background
// at the bottom and a slightly lifted (or, on light themes, deepened) shade
// at the top.
func BackgroundGradient(theme Theme) (top, bottom color.RGBA) {
	bg := colorful.Color{
		R: float64(theme.Background.R) / 255,
		G: float64(theme.Background.G) / 255,
		B: float64(theme.Background.B) / 255,
	}
	h, c, l := bg.Hcl()
	shift := 0.06
	if theme.Light {
		shift = -0.04
	}
	lifted := colorful.Hcl(h, c, l+shift).Clamped()
	return toRGBA(lifted), theme.Background
}

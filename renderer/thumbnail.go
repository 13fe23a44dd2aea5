package renderer

import (
	"image"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Thumbnail shows the source image in a corner. The texture is re-created
// whenever the image or GPU epoch changes.
type Thumbnail struct {
	tex    rl.Texture2D
	img    image.Image
	epoch  uint64
	loaded bool
}

// Sync uploads img if it differs from the current texture or the context
// was restored since.
func (t *Thumbnail) Sync(img image.Image, epoch uint64) {
	if img == nil {
		return
	}
	if t.loaded && t.img == img && t.epoch == epoch {
		return
	}
	if t.loaded && t.epoch == epoch {
		rl.UnloadTexture(t.tex)
	}
	// After a restore the old texture died with its context.

	rimg := rl.NewImageFromImage(img)
	t.tex = rl.LoadTextureFromImage(rimg)
	rl.UnloadImage(rimg)
	rl.SetTextureFilter(t.tex, rl.FilterBilinear)

	t.img = img
	t.epoch = epoch
	t.loaded = true
}

// Draw renders the thumbnail fitted into a maxW x maxH box at (x, y).
func (t *Thumbnail) Draw(x, y, maxW, maxH float32, theme Theme) {
	if !t.loaded {
		return
	}
	w, h := float32(t.tex.Width), float32(t.tex.Height)
	scale := min(maxW/w, maxH/h)
	dst := rl.Rectangle{X: x, Y: y, Width: w * scale, Height: h * scale}
	rl.DrawTexturePro(t.tex, rl.Rectangle{Width: w, Height: h}, dst, rl.Vector2{}, 0, rl.White)
	rl.DrawRectangleLinesEx(dst, 1, theme.Muted)
}

// Unload frees the texture.
func (t *Thumbnail) Unload() {
	if t.loaded {
		rl.UnloadTexture(t.tex)
		t.loaded = false
	}
}

package systems

import (
	"fmt"

	"github.com/pthm-cable/depthcloud/depth"
	"github.com/pthm-cable/depthcloud/raster"
)

// ErrEmptyImage is returned when a sampler or field is built over an image
// with a zero dimension.
var ErrEmptyImage = raster.ErrEmptyImage

// DepthSampler is a nearest-neighbor lookup into a resident depth grid.
// It is read-only after construction and safe for concurrent use.
type DepthSampler struct {
	width, height int
	values        []float32
}

// NewDepthSampler takes ownership of buf's values. buf must not be modified
// afterwards.
func NewDepthSampler(buf *depth.Buffer) (*DepthSampler, error) {
	if buf == nil || buf.Width <= 0 || buf.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if len(buf.Values) != buf.Width*buf.Height {
		return nil, fmt.Errorf("depth sampler: %d values for %dx%d grid", len(buf.Values), buf.Width, buf.Height)
	}
	return &DepthSampler{width: buf.Width, height: buf.Height, values: buf.Values}, nil
}

// Size returns the grid dimensions.
func (s *DepthSampler) Size() (int, int) {
	return s.width, s.height
}

// Sample returns the depth at (u, v) in [0,1]^2. Coordinates must already be
// clamped.
func (s *DepthSampler) Sample(u, v float64) float32 {
	x := int(u * float64(s.width-1))
	y := int(v * float64(s.height-1))
	return s.values[y*s.width+x]
}

// ColorSampler is a nearest-neighbor lookup into a resident RGB grid with
// channels normalized to [0, 1]. Safe for concurrent use.
type ColorSampler struct {
	width, height int
	rgb           []float32
}

// NewColorSampler decodes the image once and keeps normalized straight RGB.
// The decoded grid is alpha-premultiplied, so translucent pixels are divided
// by their alpha; fully transparent ones come out black. Alpha is then
// dropped.
func NewColorSampler(dec raster.PixelDecoder) (*ColorSampler, error) {
	img, err := dec.Decode()
	if err != nil {
		return nil, err
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}

	rgb := make([]float32, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			px := row[x*4 : x*4+4]
			scale := float32(1) / 255
			if a := px[3]; a == 0 {
				scale = 0
			} else if a < 255 {
				scale = 1 / float32(a)
			}
			rgb[i] = min(float32(px[0])*scale, 1)
			rgb[i+1] = min(float32(px[1])*scale, 1)
			rgb[i+2] = min(float32(px[2])*scale, 1)
		}
	}
	return &ColorSampler{width: w, height: h, rgb: rgb}, nil
}

// Size returns the grid dimensions.
func (s *ColorSampler) Size() (int, int) {
	return s.width, s.height
}

// Sample returns the color at (u, v) in [0,1]^2. Coordinates must already be
// clamped.
func (s *ColorSampler) Sample(u, v float64) (r, g, b float32) {
	x := int(u * float64(s.width-1))
	y := int(v * float64(s.height-1))
	i := (y*s.width + x) * 3
	return s.rgb[i], s.rgb[i+1], s.rgb[i+2]
}

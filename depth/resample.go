package depth

import (
	"image"
	"image/color"
	"sort"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// Resample rescales buf to width x height with bilinear filtering.
// Values are carried through a 16-bit gray image.
func Resample(buf *Buffer, width, height int) *Buffer {
	if buf.Width == width && buf.Height == height {
		return buf.Clone()
	}

	src := image.NewGray16(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			src.SetGray16(x, y, color.Gray16{Y: uint16(clamp01(float64(buf.At(x, y)))*0xffff + 0.5)})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := NewBuffer(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Set(x, y, float32(dst.Gray16At(x, y).Y)/0xffff)
		}
	}
	return out
}

// Normalize maps raw values to [0, 1], clipping at the nearPct and farPct
// percentiles (0-100) so outliers do not compress the useful range. Raw
// values may be any finite range. With invert set, the result is flipped.
func Normalize(raw []float32, width, height int, nearPct, farPct float64, invert bool) *Buffer {
	out := NewBuffer(width, height)
	if len(raw) == 0 {
		return out
	}

	sorted := make([]float64, len(raw))
	for i, v := range raw {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)

	lo := stat.Quantile(nearPct/100, stat.Empirical, sorted, nil)
	hi := stat.Quantile(farPct/100, stat.Empirical, sorted, nil)
	span := hi - lo

	for i, v := range raw {
		var n float64
		if span > 0 {
			n = clamp01((float64(v) - lo) / span)
		}
		if invert {
			n = 1 - n
		}
		out.Values[i] = float32(n)
	}
	return out
}

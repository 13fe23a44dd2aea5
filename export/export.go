// Package export writes point cloud snapshots.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/depthcloud/systems"
)

// ErrEmpty is returned when there are no particles to export.
var ErrEmpty = errors.New("export: no particles")

// WritePLY writes buf as an ASCII PLY point cloud with 8-bit colors.
func WritePLY(w io.Writer, buf *systems.Buffers) error {
	if buf == nil || buf.Len() == 0 {
		return ErrEmpty
	}
	n := buf.Len()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\ncomment depthcloud frame %d\n", buf.Version)
	fmt.Fprintf(bw, "element vertex %d\n", n)
	bw.WriteString("property float x\nproperty float y\nproperty float z\n")
	bw.WriteString("property uchar red\nproperty uchar green\nproperty uchar blue\nend_header\n")

	for i := 0; i < n; i++ {
		p := buf.Positions[i*3 : i*3+3]
		c := buf.Colors[i*3 : i*3+3]
		fmt.Fprintf(bw, "%g %g %g %d %d %d\n", p[0], p[1], p[2], toByte(c[0]), toByte(c[1]), toByte(c[2]))
	}
	return bw.Flush()
}

func toByte(v float32) uint8 {
	return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
}

// Summary describes the spatial and color distribution of a snapshot.
type Summary struct {
	Particles int
	MinX      float64
	MaxX      float64
	MinY      float64
	MaxY      float64
	MinZ      float64
	MaxZ      float64
	MeanZ     float64
	StdZ      float64
	MeanColor [3]float64
}

// Summarize computes per-axis extents, depth statistics and mean color.
func Summarize(buf *systems.Buffers) (Summary, error) {
	if buf == nil || buf.Len() == 0 {
		return Summary{}, ErrEmpty
	}
	n := buf.Len()

	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	var rgb [3][]float64
	for k := range rgb {
		rgb[k] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		xs[i] = float64(buf.Positions[i*3])
		ys[i] = float64(buf.Positions[i*3+1])
		zs[i] = float64(buf.Positions[i*3+2])
		for k := range rgb {
			rgb[k][i] = float64(buf.Colors[i*3+k])
		}
	}

	s := Summary{
		Particles: n,
		MinX:      floats.Min(xs),
		MaxX:      floats.Max(xs),
		MinY:      floats.Min(ys),
		MaxY:      floats.Max(ys),
		MinZ:      floats.Min(zs),
		MaxZ:      floats.Max(zs),
	}
	s.MeanZ, s.StdZ = stat.MeanStdDev(zs, nil)
	if n == 1 {
		s.StdZ = 0
	}
	for k := range rgb {
		s.MeanColor[k] = stat.Mean(rgb[k], nil)
	}
	return s, nil
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("particles", s.Particles),
		slog.Float64("min_z", s.MinZ),
		slog.Float64("max_z", s.MaxZ),
		slog.Float64("mean_z", s.MeanZ),
		slog.Float64("std_z", s.StdZ),
		slog.Float64("width", s.MaxX-s.MinX),
		slog.Float64("height", s.MaxY-s.MinY),
	)
}

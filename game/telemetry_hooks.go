package game

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/depthcloud/export"
	"github.com/pthm-cable/depthcloud/telemetry"
)

// flushTelemetry logs and writes perf stats once per perf window.
func (g *Game) flushTelemetry() {
	window := int64(g.cfg.Telemetry.PerfWindow)
	if window <= 0 || g.frame == 0 || g.frame%window != 0 {
		return
	}
	particles := 0
	if g.buf != nil {
		particles = g.buf.Len()
	}

	stats := g.perf.Stats()
	stats.LogStats(particles)

	if err := g.output.WritePerf(stats, g.frame, particles); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

// ExportSnapshot writes the current frame as a PLY file and returns its path.
// An empty path picks a timestamped name in the export directory.
func (g *Game) ExportSnapshot(path string) (string, error) {
	if g.buf == nil {
		return "", export.ErrEmpty
	}
	if path == "" {
		name := fmt.Sprintf("depthcloud_%s_%06d.ply", time.Now().Format("20060102_150405"), g.frame)
		path = filepath.Join(g.opts.ExportDir, name)
	}

	summary, err := export.Summarize(g.buf)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating snapshot: %w", err)
	}
	if err := export.WritePLY(f, g.buf); err != nil {
		f.Close()
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot: %w", err)
	}

	g.rec.Record(telemetry.NewEvent(telemetry.LevelInfo, telemetry.KindExport, "snapshot exported",
		"path", path,
		"frame", g.frame,
		"summary", summary,
	))
	return path, nil
}

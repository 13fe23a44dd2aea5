package game

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/depthcloud/depth"
	"github.com/pthm-cable/depthcloud/renderer"
	"github.com/pthm-cable/depthcloud/session"
	"github.com/pthm-cable/depthcloud/telemetry"
	"github.com/pthm-cable/depthcloud/ui"
)

const (
	logPanelLines = 12
	logLineHeight = 16
	thumbMaxW     = 200
	thumbMaxH     = 150
)

// drawUI renders the enabled overlays and the status line.
func (g *Game) drawUI() {
	var corner image.Image
	switch {
	case g.overlays.IsEnabled(ui.OverlayThumbnail):
		corner = g.session.Image()
	case g.overlays.IsEnabled(ui.OverlayDepthMap):
		corner = g.depthPreview()
	}
	if corner != nil && !g.session.Lost() {
		g.thumb.Sync(corner, g.gpuEpoch)
	}

	for _, id := range g.overlays.EnabledOverlays() {
		switch id {
		case ui.OverlayControls:
			g.applyControls(g.controls.Draw(12, 12, g.theme))
		case ui.OverlayThumbnail, ui.OverlayDepthMap:
			if corner != nil {
				g.thumb.Draw(g.screenWidth-thumbMaxW-12, 12, thumbMaxW, thumbMaxH, g.theme)
			}
		case ui.OverlayLog:
			g.drawLogPanel()
		case ui.OverlayHelp:
			ui.DrawHelp(controlsWidth, 12, g.overlays, g.theme.Background, g.theme.Text, g.theme.Muted)
		}
	}

	g.drawStatus()
}

// depthPreview returns a grayscale image of the committed depth buffer.
func (g *Game) depthPreview() image.Image {
	d := g.session.Depth()
	if d == nil {
		return nil
	}
	if d != g.depthSrc {
		g.depthSrc = d
		g.depthImg = depthImage(d)
	}
	return g.depthImg
}

// depthImage renders a depth buffer with white as near.
func depthImage(d *depth.Buffer) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, d.Width, d.Height))
	for i, v := range d.Values {
		img.Pix[i] = uint8(v*255 + 0.5)
	}
	return img
}

// applyControls pushes edited values into the session and renderer.
func (g *Game) applyControls(ch renderer.Changes) {
	v := g.controls.Values
	if ch.Animation {
		if err := g.session.SetAnimation(v.Animation); err != nil {
			slog.Warn("animation parameters rejected", "error", err)
			g.controls.Values.Animation = g.session.Animation()
		}
	}
	if ch.Density {
		g.setDensityAsync(v.Density)
	}
	if ch.PointSize {
		g.cloud.SetPointSize(v.PointSize)
	}
	if ch.Glow {
		g.cloud.SetGlow(v.Glow)
	}
	if ch.Export {
		g.exportSnapshot()
	}
	if ch.ResetView {
		g.resetView()
	}
}

// setDensityAsync rebuilds the field off the frame goroutine.
func (g *Game) setDensityAsync(n int) {
	g.loads.Add(1)
	go func() {
		defer g.loads.Done()
		err := g.session.SetDensity(g.ctx, n)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, session.ErrSuperseded) {
			slog.Debug("density change not applied", "density", n, "error", err)
		}
	}()
}

// drawStatus draws a one-line summary at the bottom of the screen.
func (g *Game) drawStatus() {
	y := int32(g.screenHeight) - 24
	x := int32(12)

	var status string
	loading, loadErr := g.loadStatus()
	switch {
	case g.session.Lost():
		status = "graphics context lost (F9 to restore)"
	case loading > 0:
		status = "estimating depth..."
	case loadErr != nil:
		status = "load failed: " + loadErr.Error()
	case g.buf == nil:
		status = "drop an image on the window (H for help)"
	default:
		status = fmt.Sprintf("%d particles  density %d  %d fps", g.buf.Len(), g.session.Density(), rl.GetFPS())
	}
	if g.paused {
		status += "  [paused]"
	}
	rl.DrawText(status, x, y, 16, g.theme.Text)
}

// drawLogPanel draws the most recent events from the log buffer.
func (g *Game) drawLogPanel() {
	events := g.logs.Events()
	if len(events) > logPanelLines {
		events = events[len(events)-logPanelLines:]
	}

	h := float32(logPanelLines*logLineHeight + 12)
	x := float32(controlsWidth)
	y := g.screenHeight - h - 36
	w := g.screenWidth - x - 12
	bg := g.theme.Background
	bg.A = 220
	rl.DrawRectangle(int32(x), int32(y), int32(w), int32(h), bg)
	rl.DrawRectangleLines(int32(x), int32(y), int32(w), int32(h), g.theme.Muted)

	ty := int32(y) + 6
	for _, e := range events {
		line := fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
		rl.DrawText(line, int32(x)+8, ty, 14, g.levelColor(e.Level))
		ty += logLineHeight
	}
}

func (g *Game) levelColor(l telemetry.Level) rl.Color {
	switch l {
	case telemetry.LevelWarn:
		return rl.Orange
	case telemetry.LevelError:
		return rl.Red
	case telemetry.LevelDebug:
		return g.theme.Muted
	default:
		return g.theme.Text
	}
}

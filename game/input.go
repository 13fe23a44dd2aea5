package game

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/depthcloud/ui"
)

// controlsWidth is the screen width reserved for the control panel.
const controlsWidth = 280

// handleInput processes keyboard, mouse and file-drop input.
func (g *Game) handleInput() {
	// Window resize propagation
	g.handleResize()

	// Fullscreen toggle
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}
	g.handleOverlayKeys()

	if rl.IsKeyPressed(rl.KeyE) {
		g.exportSnapshot()
	}

	// Simulated context loss: first press loses, second restores
	if rl.IsKeyPressed(rl.KeyF9) {
		g.toggleContextLoss()
	}

	g.handleDroppedFiles()
	g.handleCameraInput()
}

// handleOverlayKeys checks for overlay toggle key presses.
func (g *Game) handleOverlayKeys() {
	for key := rl.GetKeyPressed(); key != 0; key = rl.GetKeyPressed() {
		if id, on, ok := g.overlays.HandleKeyPress(key); ok {
			slog.Debug("overlay toggled", "overlay", string(id), "enabled", on)
		}
	}
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h
	g.camera.Resize(w, h)
	g.background.Resize(int32(w), int32(h))
}

// handleDroppedFiles starts loading the last file dropped on the window.
func (g *Game) handleDroppedFiles() {
	if !rl.IsFileDropped() {
		return
	}
	files := rl.LoadDroppedFiles()
	defer rl.UnloadDroppedFiles()
	if len(files) == 0 {
		return
	}
	path := files[len(files)-1]
	slog.Info("loading dropped image", "path", path)
	g.LoadFileAsync(path)
}

// handleCameraInput orbits with a left drag and zooms with the wheel.
func (g *Game) handleCameraInput() {
	overPanel := g.overlays.IsEnabled(ui.OverlayControls) && rl.GetMouseX() < controlsWidth
	if g.controls.Busy() {
		overPanel = true
	}

	if !overPanel && rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		d := rl.GetMouseDelta()
		g.camera.Rotate(d.X, d.Y)
	}

	if !overPanel {
		if wheel := rl.GetMouseWheelMove(); wheel != 0 {
			g.camera.ZoomBy(1 + wheel*0.1)
		}
	}

	// Keyboard zoom with +/- (= and - keys)
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		g.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		g.camera.ZoomBy(0.8)
	}

	// Home key to reset camera
	if rl.IsKeyPressed(rl.KeyHome) {
		g.resetView()
	}
}

// resetView restores the default orbit and refits the loaded image.
func (g *Game) resetView() {
	g.camera.Reset()
	if g.aspect > 0 {
		g.camera.Frame(float32(g.aspect/2), 0.5)
	}
}

// toggleContextLoss drops or re-creates GPU resources as a real context loss
// and restore would.
func (g *Game) toggleContextLoss() {
	if !g.session.Lost() {
		g.session.ContextLost()
		g.cloud.Unload()
		g.cloud.Invalidate()
		g.thumb.Unload()
		g.depthSrc = nil
		return
	}
	if err := g.session.ContextRestored(g.ctx); err != nil {
		slog.Error("context restore failed", "error", err)
	}
}

func (g *Game) exportSnapshot() {
	path, err := g.ExportSnapshot("")
	if err != nil {
		slog.Error("export failed", "error", err)
		return
	}
	slog.Info("snapshot exported", "path", path)
}

// Package game runs the depthcloud viewer loop: it owns the session, the
// presentation resources and the per-frame update order.
package game

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/depthcloud/camera"
	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/depth"
	"github.com/pthm-cable/depthcloud/raster"
	"github.com/pthm-cable/depthcloud/renderer"
	"github.com/pthm-cable/depthcloud/session"
	"github.com/pthm-cable/depthcloud/systems"
	"github.com/pthm-cable/depthcloud/telemetry"
	"github.com/pthm-cable/depthcloud/ui"
)

// Game holds the viewer state.
type Game struct {
	cfg  *config.Config
	opts Options

	session   *session.Session
	providers *depth.Built
	depthMap  *depth.Static // -depth map, used for the startup image only

	// Telemetry
	rec    telemetry.Recorder
	logs   *telemetry.LogBuffer
	output *telemetry.OutputManager
	perf   *telemetry.PerfCollector

	// Rendering (nil when headless)
	camera     *camera.Camera
	background *renderer.BackgroundRenderer
	cloud      *renderer.PointCloud
	thumb      *renderer.Thumbnail
	controls   *renderer.Controls
	theme      renderer.Theme
	overlays   *ui.OverlayRegistry

	// Depth map preview, regenerated when the committed depth changes
	depthSrc *depth.Buffer
	depthImg *image.Gray

	// Background loads
	ctx        context.Context
	cancel     context.CancelFunc
	loadCancel context.CancelFunc
	loads      sync.WaitGroup
	loadMu     sync.Mutex
	loadErr    error
	loading    int

	// State
	frame    int64
	elapsed  float64
	paused   bool
	buf      *systems.Buffers
	aspect   float64
	gpuEpoch uint64

	screenWidth, screenHeight float32
}

// New creates a game. In graphics mode the raylib window must already exist.
func New(cfg *config.Config, opts Options) (*Game, error) {
	outDir := cfg.Telemetry.OutputDir
	if opts.OutputDir != "" {
		outDir = opts.OutputDir
	}
	output, err := telemetry.NewOutputManager(outDir)
	if err != nil {
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	logs := telemetry.NewLogBuffer(cfg.Telemetry.LogBufferSize)
	recorders := []telemetry.Recorder{telemetry.NewSlogRecorder(nil), logs}
	if output != nil {
		recorders = append(recorders, output)
	}
	rec := telemetry.Multi(recorders...)

	var depthMap *depth.Static
	if opts.DepthPath != "" {
		img, err := raster.Load(opts.DepthPath)
		if err != nil {
			output.Close()
			return nil, fmt.Errorf("loading depth map: %w", err)
		}
		depthMap, err = depth.FromImage(img)
		if err != nil {
			output.Close()
			return nil, fmt.Errorf("loading depth map: %w", err)
		}
	}

	providers, err := depth.FromConfig(cfg.Depth, rec)
	if err != nil {
		output.Close()
		return nil, err
	}

	sess, err := session.New(cfg, providers.Provider, providers.Fallback, rec)
	if err != nil {
		providers.Close()
		output.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Game{
		cfg:       cfg,
		opts:      opts,
		session:   sess,
		providers: providers,
		depthMap:  depthMap,
		rec:       rec,
		logs:      logs,
		output:    output,
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		ctx:       ctx,
		cancel:    cancel,
	}

	slog.Info("session started",
		"session", sess.ID.String(),
		"depth", providers.Provider.Name(),
		"fallback", providers.Fallback.Name(),
		"density", sess.Density(),
	)

	if !opts.Headless {
		g.initGraphics()
	}
	return g, nil
}

// initGraphics creates presentation resources.
func (g *Game) initGraphics() {
	g.screenWidth = float32(rl.GetScreenWidth())
	g.screenHeight = float32(rl.GetScreenHeight())

	g.theme = renderer.NewTheme(g.cfg.Render)
	g.camera = camera.New(g.screenWidth, g.screenHeight)
	g.background = renderer.NewBackgroundRenderer(int32(g.screenWidth), int32(g.screenHeight), g.theme)
	g.cloud = renderer.NewPointCloud(g.cfg.Particles, g.cfg.Render, g.theme)
	g.cloud.Init()
	g.thumb = &renderer.Thumbnail{}
	g.overlays = ui.NewOverlayRegistry()
	g.controls = renderer.NewControls(renderer.ControlValues{
		Density:   g.session.Density(),
		PointSize: float32(g.cfg.Particles.PointSize),
		Glow:      g.cfg.Render.Glow,
		Animation: g.session.Animation(),
	}, g.cfg.Particles.MaxDensity)
}

// Session returns the underlying session.
func (g *Game) Session() *session.Session {
	return g.session
}

// Frame returns the number of frames computed so far.
func (g *Game) Frame() int64 {
	return g.frame
}

// Buffers returns the most recent frame output, or nil.
func (g *Game) Buffers() *systems.Buffers {
	return g.buf
}

// LoadFile decodes the image at path and loads it into the session with the
// configured depth providers. It blocks until depth estimation and the field
// build finish.
func (g *Game) LoadFile(ctx context.Context, path string) error {
	return g.loadFile(ctx, path, nil)
}

// LoadInitial is LoadFile for the image named on the command line: its depth
// comes from Options.DepthPath when one was given.
func (g *Game) LoadInitial(ctx context.Context, path string) error {
	return g.loadFile(ctx, path, g.depthProvider())
}

// depthProvider returns the -depth map as a provider, or nil.
func (g *Game) depthProvider() depth.Provider {
	if g.depthMap == nil {
		return nil
	}
	return g.depthMap
}

func (g *Game) loadFile(ctx context.Context, path string, provider depth.Provider) error {
	img, err := raster.Load(path)
	if err != nil {
		return err
	}
	if err := g.session.LoadImageWith(ctx, img, provider); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadFileAsync starts loading path in the background, cancelling any load
// still in flight.
func (g *Game) LoadFileAsync(path string) {
	g.loadAsync(path, nil)
}

// LoadInitialAsync is the background form of LoadInitial.
func (g *Game) LoadInitialAsync(path string) {
	g.loadAsync(path, g.depthProvider())
}

func (g *Game) loadAsync(path string, provider depth.Provider) {
	if g.loadCancel != nil {
		g.loadCancel()
	}
	ctx, cancel := context.WithCancel(g.ctx)
	g.loadCancel = cancel

	g.loadMu.Lock()
	g.loading++
	g.loadMu.Unlock()

	g.loads.Add(1)
	go func() {
		defer g.loads.Done()
		err := g.loadFile(ctx, path, provider)
		// A newer load won; its outcome is the one to report.
		stale := errors.Is(err, session.ErrSuperseded) || errors.Is(err, context.Canceled)

		g.loadMu.Lock()
		g.loading--
		if !stale {
			g.loadErr = err
		}
		g.loadMu.Unlock()

		if err != nil && !stale {
			slog.Error("image load failed", "path", path, "error", err)
		}
	}()
}

// loadStatus reports in-flight loads and the last load error.
func (g *Game) loadStatus() (int, error) {
	g.loadMu.Lock()
	defer g.loadMu.Unlock()
	return g.loading, g.loadErr
}

// step computes one frame of particle output.
func (g *Game) step(dt float64) {
	if !g.paused {
		g.elapsed += dt
	}

	g.perf.StartPhase(telemetry.PhaseAdopt)
	if g.session.Adopt() {
		g.onAdopt()
	}

	g.perf.StartPhase(telemetry.PhaseFrameUpdate)
	buf, ok := g.session.Frame(g.elapsed)
	if ok {
		g.buf = buf
		g.frame++
	} else if g.session.Lost() {
		g.buf = nil
	}
}

// onAdopt reframes the camera when the image shape changes.
func (g *Game) onAdopt() {
	aspect := g.session.Aspect()
	if aspect == g.aspect {
		return
	}
	g.aspect = aspect
	if g.camera != nil {
		g.camera.Frame(float32(aspect/2), 0.5)
	}
}

// UpdateHeadless runs one frame at the configured fixed timestep without
// touching raylib.
func (g *Game) UpdateHeadless() {
	g.perf.StartFrame()
	g.step(g.cfg.Derived.FrameDT)
	g.perf.EndFrame()
	g.flushTelemetry()
}

// Update processes input and computes the next frame.
func (g *Game) Update() {
	g.perf.StartFrame()
	g.handleInput()
	g.step(float64(rl.GetFrameTime()))
}

// Draw renders the frame and the UI, then finishes the perf sample.
func (g *Game) Draw() {
	g.perf.StartPhase(telemetry.PhaseDraw)

	if epoch := g.session.GPUEpoch(); epoch != g.gpuEpoch {
		// Context restored: GPU resources must be re-created.
		g.gpuEpoch = epoch
		g.cloud.Init()
	}

	rl.BeginDrawing()
	rl.ClearBackground(g.theme.Background)
	g.background.Draw()

	if !g.session.Lost() {
		g.cloud.Draw(g.buf, g.camera)
	}

	g.perf.StartPhase(telemetry.PhaseUI)
	g.drawUI()

	rl.EndDrawing()

	g.perf.EndFrame()
	g.perf.RecordPresent()
	g.flushTelemetry()
}

// Unload stops background work and frees all resources.
func (g *Game) Unload() {
	g.cancel()
	g.loads.Wait()

	if g.cloud != nil {
		g.cloud.Unload()
	}
	if g.thumb != nil {
		g.thumb.Unload()
	}
	g.session.Close()
	if err := g.providers.Close(); err != nil {
		slog.Error("failed to close depth providers", "error", err)
	}
	if err := g.output.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}

// Package session owns the image buffers and particle field for the loaded
// image and hands frames to the presentation layer.
//
// Builds (image load, density change, context restore) may run on any
// goroutine. The newest request wins: a build commits only if no newer
// request was issued while it ran. Frame, and Close, must be called from the
// single frame goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/depth"
	"github.com/pthm-cable/depthcloud/raster"
	"github.com/pthm-cable/depthcloud/systems"
	"github.com/pthm-cable/depthcloud/telemetry"
)

// ErrSuperseded is returned by a build that lost to a newer request.
var ErrSuperseded = errors.New("session: superseded by a newer request")

// source is the CPU-side data for one loaded image. It survives context loss.
type source struct {
	img      image.Image
	decoder  *raster.Decoder
	depth    *depth.Buffer
	provider string

	depthS *systems.DepthSampler
	colorS *systems.ColorSampler
}

func (s *source) size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// frameState is a committed, fully built field ready to animate.
type frameState struct {
	src     *source
	updater *systems.FrameUpdater
}

// Session holds everything derived from the current image.
type Session struct {
	ID uuid.UUID

	cfg      *config.Config
	provider depth.Provider
	fallback depth.Provider
	rec      telemetry.Recorder
	noise    *systems.PerlinNoise
	curl     *systems.CurlNoise
	updOpts  systems.UpdaterOptions

	imageGen atomic.Uint64

	mu       sync.Mutex
	fieldGen uint64 // guarded by mu
	loading  int    // in-flight image loads, guarded by mu
	src      *source
	pending  *frameState
	params   systems.AnimationParams
	density  int

	// Owned by the frame goroutine.
	current *frameState

	lost     atomic.Bool
	gpuEpoch atomic.Uint64
}

// New creates an empty session. fallback is substituted when provider fails
// with a depth.EstimationError; nil selects depth.Radial.
func New(cfg *config.Config, provider, fallback depth.Provider, rec telemetry.Recorder) (*Session, error) {
	kind, err := systems.ParseNoiseKind(cfg.Animation.Noise)
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		fallback = depth.Radial{}
	}

	id := uuid.New()
	noise := systems.NewPerlinNoise(cfg.Noise.Seed)

	s := &Session{
		ID:       id,
		cfg:      cfg,
		provider: provider,
		fallback: fallback,
		rec:      telemetry.WithSession(rec, id),
		noise:    noise,
		curl:     systems.NewCurlNoise(noise, cfg.Animation.CurlEpsilon),
		updOpts: systems.UpdaterOptions{
			Workers:           cfg.Workers.Count,
			ParallelThreshold: cfg.Workers.ParallelThreshold,
			BatchCount:        cfg.Animation.BatchCount,
			Frequency:         cfg.Noise.Frequency,
			TimeScale:         cfg.Noise.TimeScale,
			Offset:            cfg.Noise.DecorrelationOffset,
		},
		params: systems.AnimationParams{
			Enabled:           cfg.Animation.Enabled,
			Noise:             kind,
			Speed:             cfg.Animation.Speed,
			Intensity:         cfg.Animation.Intensity,
			DisplacementScale: cfg.Particles.DisplacementScale,
		},
	}
	s.density = s.clampDensity(cfg.Particles.Density)
	return s, nil
}

// LoadImage estimates depth for img, builds samplers and a particle field at
// the current density, and stages the result for the next frame. The
// previous field stays visible until then. Returns ErrSuperseded if a newer
// image was requested meanwhile.
func (s *Session) LoadImage(ctx context.Context, img image.Image) error {
	return s.LoadImageWith(ctx, img, nil)
}

// LoadImageWith is LoadImage with provider estimating depth for this image
// only, in place of the session's provider. The fallback still applies. A
// nil provider uses the session's own.
func (s *Session) LoadImageWith(ctx context.Context, img image.Image, provider depth.Provider) error {
	if provider == nil {
		provider = s.provider
	}
	ig := s.imageGen.Add(1)
	start := time.Now()

	s.mu.Lock()
	s.loading++
	fgStart := s.fieldGen
	s.mu.Unlock()

	src, err := s.prepareSource(ctx, img, provider)
	if err != nil {
		s.abandonLoad(ctx, fgStart)
		return err
	}
	if s.imageGen.Load() != ig {
		s.rec.Record(telemetry.NewSupersededEvent(ig, s.imageGen.Load()))
		s.abandonLoad(ctx, fgStart)
		return ErrSuperseded
	}

	w, h := src.size()
	s.rec.Record(telemetry.NewEvent(telemetry.LevelInfo, telemetry.KindImageLoaded, "image loaded",
		"width", w, "height", h, "depth", src.provider, "took_ms", time.Since(start).Milliseconds()))

	for {
		s.mu.Lock()
		fg, density := s.fieldGen, s.density
		s.mu.Unlock()

		st, err := s.buildState(src, density, fg)
		if err != nil {
			s.abandonLoad(ctx, fgStart)
			return err
		}

		s.mu.Lock()
		if s.imageGen.Load() != ig {
			s.loading--
			s.mu.Unlock()
			st.updater.Close()
			s.rec.Record(telemetry.NewSupersededEvent(ig, s.imageGen.Load()))
			return ErrSuperseded
		}
		if s.fieldGen != fg {
			// Density changed mid-build; rebuild against the same image.
			s.mu.Unlock()
			st.updater.Close()
			continue
		}
		s.src = src
		s.stage(st)
		s.loading--
		s.mu.Unlock()
		return nil
	}
}

// abandonLoad ends a load that did not commit. A density change skipped
// because of this load is applied to the existing image.
func (s *Session) abandonLoad(ctx context.Context, fgStart uint64) {
	s.mu.Lock()
	s.loading--
	stale := s.loading == 0 && s.fieldGen != fgStart && s.src != nil
	s.mu.Unlock()

	if stale {
		if err := s.rebuildField(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			s.rec.Record(telemetry.NewEvent(telemetry.LevelError, telemetry.KindFieldBuilt,
				"field rebuild failed", "error", err.Error()))
		}
	}
}

// prepareSource decodes img once, estimates depth and builds both samplers.
func (s *Session) prepareSource(ctx context.Context, img image.Image, provider depth.Provider) (*source, error) {
	dec := raster.NewDecoder(img)
	rgba, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	// Providers see the decoded grid, never the lazily decoded original.
	buf, name, err := s.estimate(ctx, rgba, provider)
	if err != nil {
		return nil, err
	}

	src := &source{img: rgba, decoder: dec, depth: buf, provider: name}
	if err := src.buildSamplers(); err != nil {
		return nil, err
	}
	return src, nil
}

func (src *source) buildSamplers() error {
	ds, err := systems.NewDepthSampler(src.depth)
	if err != nil {
		return fmt.Errorf("building depth sampler: %w", err)
	}
	cs, err := systems.NewColorSampler(src.decoder)
	if err != nil {
		return fmt.Errorf("building color sampler: %w", err)
	}
	src.depthS, src.colorS = ds, cs
	return nil
}

// estimate runs p, substituting the fallback on estimation failure. The
// buffer always matches the image dimensions.
func (s *Session) estimate(ctx context.Context, img image.Image, p depth.Provider) (*depth.Buffer, string, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	if p != nil {
		buf, err := p.Estimate(ctx, img)
		if err == nil {
			return fitDepth(buf, w, h), p.Name(), nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		var ee *depth.EstimationError
		if !errors.As(err, &ee) {
			return nil, "", err
		}
		s.rec.Record(telemetry.NewDepthFallbackEvent(s.fallback.Name(), err))
	}

	buf, err := s.fallback.Estimate(ctx, img)
	if err != nil {
		return nil, "", fmt.Errorf("fallback depth: %w", err)
	}
	return fitDepth(buf, w, h), s.fallback.Name(), nil
}

func fitDepth(buf *depth.Buffer, w, h int) *depth.Buffer {
	if buf.Width != w || buf.Height != h {
		return depth.Resample(buf, w, h)
	}
	return buf
}

// buildState constructs a field and updater for src.
func (s *Session) buildState(src *source, density int, generation uint64) (*frameState, error) {
	start := time.Now()
	w, h := src.size()

	field, err := systems.BuildField(w, h, density)
	if err != nil {
		return nil, fmt.Errorf("building particle field: %w", err)
	}
	upd, err := systems.NewFrameUpdater(field, src.depthS, src.colorS, s.noise, s.curl,
		float64(w)/float64(h), s.updOpts)
	if err != nil {
		return nil, err
	}

	s.rec.Record(telemetry.NewFieldBuiltEvent(generation, field.SampleWidth, field.SampleHeight, time.Since(start)))
	return &frameState{src: src, updater: upd}, nil
}

// stage replaces the pending state. Caller holds mu.
func (s *Session) stage(st *frameState) {
	if s.pending != nil {
		s.pending.updater.Close()
	}
	s.pending = st
}

// SetDensity changes the sampling density, clamped to the configured
// ceiling, and rebuilds the field. While an image load is in flight the load
// picks up the new density instead.
func (s *Session) SetDensity(ctx context.Context, n int) error {
	clamped := s.clampDensity(n)

	s.mu.Lock()
	s.density = clamped
	s.fieldGen++
	inflight := s.loading > 0
	src := s.src
	s.mu.Unlock()

	s.warnDensity(clamped, src)

	if inflight || src == nil {
		return nil
	}
	return s.rebuildField(ctx)
}

// rebuildField builds a new field for the committed image at the current
// density.
func (s *Session) rebuildField(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	fg, density, src := s.fieldGen, s.density, s.src
	s.mu.Unlock()
	if src == nil {
		return nil
	}

	st, err := s.buildState(src, density, fg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fieldGen != fg || s.src != src {
		st.updater.Close()
		s.rec.Record(telemetry.NewSupersededEvent(fg, s.fieldGen))
		return ErrSuperseded
	}
	s.stage(st)
	return nil
}

func (s *Session) clampDensity(n int) int {
	limit := s.cfg.Particles.MaxDensity
	clamped := min(max(n, 1), limit)
	if clamped != n {
		s.rec.Record(telemetry.NewEvent(telemetry.LevelWarn, telemetry.KindDensityClamped,
			"density clamped", "requested", n, "density", clamped, "max", limit))
	}
	return clamped
}

func (s *Session) warnDensity(density int, src *source) {
	count := density * density
	if src != nil {
		w, h := src.size()
		count = min(w, density) * min(h, density)
	}
	if warn := s.cfg.Particles.WarnParticles; warn > 0 && count > warn {
		s.rec.Record(telemetry.NewEvent(telemetry.LevelWarn, telemetry.KindDensityWarning,
			"high particle count may exhaust GPU memory", "particles", count, "threshold", warn))
	}
}

// Density returns the current (clamped) density.
func (s *Session) Density() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.density
}

// SetAnimation replaces the animation parameters from the next frame on.
// Speed must be positive and intensity non-negative.
func (s *Session) SetAnimation(p systems.AnimationParams) error {
	if !(p.Speed > 0) {
		return fmt.Errorf("animation speed must be > 0, got %v", p.Speed)
	}
	if !(p.Intensity >= 0) {
		return fmt.Errorf("animation intensity must be >= 0, got %v", p.Intensity)
	}
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
	return nil
}

// Animation returns the current animation parameters.
func (s *Session) Animation() systems.AnimationParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Frame adopts any staged build and computes one frame. It returns false,
// with no buffers, while nothing is loaded or the context is lost.
func (s *Session) Frame(elapsed float64) (*systems.Buffers, bool) {
	if s.lost.Load() {
		return nil, false
	}

	s.Adopt()

	s.mu.Lock()
	params := s.params
	s.mu.Unlock()

	if s.current == nil {
		return nil, false
	}

	buf := s.current.updater.Update(elapsed, params)
	// Loss during the update abandons the frame.
	if s.lost.Load() {
		return nil, false
	}
	return buf, true
}

// Adopt swaps in a staged build, if any, and reports whether it did. Frame
// calls it implicitly; callers may call it first to time adoption on its own.
// Frame goroutine only.
func (s *Session) Adopt() bool {
	s.mu.Lock()
	next := s.pending
	s.pending = nil
	s.mu.Unlock()

	if next == nil {
		return false
	}
	if s.current != nil {
		s.current.updater.Close()
	}
	s.current = next
	return true
}

// Aspect returns the width/height ratio of the image being displayed, or 0.
// Frame goroutine only.
func (s *Session) Aspect() float64 {
	if s.current == nil {
		return 0
	}
	return s.current.updater.Aspect()
}

// Image returns the most recently committed image, or nil.
func (s *Session) Image() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return nil
	}
	return s.src.img
}

// Depth returns the depth buffer of the committed image, or nil. It must not
// be modified.
func (s *Session) Depth() *depth.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return nil
	}
	return s.src.depth
}

// ContextLost marks GPU-resident state invalid. Safe to call from any
// goroutine; frames return nothing until ContextRestored.
func (s *Session) ContextLost() {
	if s.lost.Swap(true) {
		return
	}
	s.rec.Record(telemetry.NewEvent(telemetry.LevelWarn, telemetry.KindContextLost, "graphics context lost"))
}

// Lost reports whether the context is currently lost.
func (s *Session) Lost() bool {
	return s.lost.Load()
}

// ContextRestored rebuilds samplers and the particle field from the retained
// CPU-side image and depth buffer, then advances the GPU epoch so the
// presentation layer re-creates its textures.
func (s *Session) ContextRestored(ctx context.Context) error {
	if !s.lost.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.src
	s.mu.Unlock()

	if old != nil {
		src := &source{img: old.img, decoder: raster.NewDecoder(old.img), depth: old.depth.Clone(), provider: old.provider}
		if err := src.buildSamplers(); err != nil {
			return err
		}

		s.mu.Lock()
		fg, density := s.fieldGen, s.density
		s.mu.Unlock()

		st, err := s.buildState(src, density, fg)
		if err != nil {
			return err
		}

		s.mu.Lock()
		if s.src != old || s.fieldGen != fg {
			// A newer build already replaced the image or field.
			s.mu.Unlock()
			st.updater.Close()
		} else {
			s.src = src
			s.stage(st)
			s.mu.Unlock()
		}
	}

	epoch := s.gpuEpoch.Add(1)
	s.lost.Store(false)
	s.rec.Record(telemetry.NewEvent(telemetry.LevelInfo, telemetry.KindContextRestored,
		"graphics context restored", "epoch", epoch))
	return nil
}

// GPUEpoch increments on every context restore. Presentation code compares
// it to decide when textures must be re-created.
func (s *Session) GPUEpoch() uint64 {
	return s.gpuEpoch.Load()
}

// Close stops the worker pools. Call from the frame goroutine once frames
// are no longer requested.
func (s *Session) Close() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		pending.updater.Close()
	}
	if s.current != nil {
		s.current.updater.Close()
		s.current = nil
	}
}

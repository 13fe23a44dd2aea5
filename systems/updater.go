package systems

import (
	"errors"
	"fmt"
	"strings"
)

// NoiseKind selects the UV displacement field.
type NoiseKind uint8

const (
	// NoiseSmooth offsets U and V with two decorrelated Perlin lookups.
	NoiseSmooth NoiseKind = iota
	// NoiseCurl offsets U and V with the x/y components of curl noise.
	NoiseCurl
)

func (k NoiseKind) String() string {
	switch k {
	case NoiseSmooth:
		return "smooth"
	case NoiseCurl:
		return "curl"
	default:
		return fmt.Sprintf("NoiseKind(%d)", k)
	}
}

// ParseNoiseKind parses "smooth" (or "perlin") and "curl".
func ParseNoiseKind(s string) (NoiseKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smooth", "perlin":
		return NoiseSmooth, nil
	case "curl":
		return NoiseCurl, nil
	default:
		return 0, fmt.Errorf("unknown noise kind %q", s)
	}
}

// AnimationParams is read once at the start of every frame.
type AnimationParams struct {
	Enabled           bool
	Noise             NoiseKind
	Speed             float64 // > 0
	Intensity         float64 // UV displacement amplitude, >= 0
	DisplacementScale float64 // Z for depth 1.0
}

// Buffers holds per-particle output, three floats per particle, in field
// order. It is owned by the FrameUpdater and valid until the next Update.
type Buffers struct {
	Positions []float32
	Colors    []float32
	// Version increments after every completed update.
	Version uint64
}

// Len returns the particle count.
func (b *Buffers) Len() int {
	return len(b.Positions) / 3
}

// FrameListener is notified once per completed update.
type FrameListener interface {
	FrameUpdated(*Buffers)
}

// UpdaterOptions tunes the frame updater. Zero values select defaults.
type UpdaterOptions struct {
	// Workers is the pool size. 0 means GOMAXPROCS, 1 disables the pool.
	Workers int
	// ParallelThreshold is the particle count below which updates run on the
	// calling goroutine.
	ParallelThreshold int
	// BatchCount > 1 updates only every Nth particle per animated frame,
	// round-robin. The first frame always updates everything.
	BatchCount int
	Listener   FrameListener

	// Noise-space mapping: query = (u*Frequency, v*Frequency, t*TimeScale),
	// and the V lookup of smooth noise is shifted by Offset.
	Frequency float64
	TimeScale float64
	Offset    float64
}

func (o *UpdaterOptions) applyDefaults() {
	if o.ParallelThreshold <= 0 {
		o.ParallelThreshold = defaultParallelThreshold
	}
	if o.BatchCount < 1 {
		o.BatchCount = 1
	}
	if o.Frequency == 0 {
		o.Frequency = 3
	}
	if o.TimeScale == 0 {
		o.TimeScale = 0.5
	}
	if o.Offset == 0 {
		o.Offset = 100
	}
}

// FrameUpdater recomputes particle positions and colors from the immutable
// field, samplers and noise. Update must be called from one goroutine.
type FrameUpdater struct {
	field  *ParticleField
	depthS *DepthSampler
	colorS *ColorSampler
	noise  *PerlinNoise
	curl   *CurlNoise
	aspect float64
	opts   UpdaterOptions

	buffers Buffers
	pool    *workerPool

	// Per-frame state, written before dispatch and read by workers.
	params     AnimationParams
	t          float64
	batch      int // -1 updates every particle
	batchIndex int
	primed     bool
	closed     bool
}

// NewFrameUpdater wires a field to its samplers. aspect is imageW/imageH.
func NewFrameUpdater(field *ParticleField, depthS *DepthSampler, colorS *ColorSampler,
	noise *PerlinNoise, curl *CurlNoise, aspect float64, opts UpdaterOptions) (*FrameUpdater, error) {
	if field == nil || depthS == nil || colorS == nil {
		return nil, errors.New("frame updater: field and samplers are required")
	}
	if noise == nil {
		return nil, errors.New("frame updater: noise is required")
	}
	if curl == nil {
		curl = NewCurlNoise(noise, DefaultCurlEpsilon)
	}
	if !(aspect > 0) {
		return nil, fmt.Errorf("frame updater: invalid aspect %v", aspect)
	}
	opts.applyDefaults()

	n := field.Len()
	u := &FrameUpdater{
		field:  field,
		depthS: depthS,
		colorS: colorS,
		noise:  noise,
		curl:   curl,
		aspect: aspect,
		opts:   opts,
		buffers: Buffers{
			Positions: make([]float32, n*3),
			Colors:    make([]float32, n*3),
		},
	}
	if opts.Workers != 1 {
		u.pool = newWorkerPool(opts.Workers, u.computeChunk)
	}
	return u, nil
}

// Aspect returns the image aspect ratio.
func (u *FrameUpdater) Aspect() float64 {
	return u.aspect
}

// Buffers returns the output of the last update.
func (u *FrameUpdater) Buffers() *Buffers {
	return &u.buffers
}

// Update computes one frame at elapsed seconds and returns the output
// buffers. All particle writes finish before it returns.
func (u *FrameUpdater) Update(elapsed float64, params AnimationParams) *Buffers {
	if u.closed {
		panic("systems: Update on closed FrameUpdater")
	}

	u.params = params
	u.t = elapsed * params.Speed
	u.batch = -1
	if params.Enabled && u.opts.BatchCount > 1 && u.primed {
		u.batch = u.batchIndex
		u.batchIndex = (u.batchIndex + 1) % u.opts.BatchCount
	}

	n := u.field.Len()
	if u.pool == nil || n < u.opts.ParallelThreshold {
		u.computeChunk(0, n)
	} else {
		u.pool.run(n)
	}

	u.primed = true
	u.buffers.Version++
	if u.opts.Listener != nil {
		u.opts.Listener.FrameUpdated(&u.buffers)
	}
	return &u.buffers
}

// Close stops the worker pool. The updater cannot be used afterwards.
func (u *FrameUpdater) Close() {
	if u.closed {
		return
	}
	u.closed = true
	if u.pool != nil {
		u.pool.stopWorkers()
	}
}

// computeChunk updates particles in [start, end). It reads only immutable
// shared state and writes only its own output slots.
func (u *FrameUpdater) computeChunk(start, end int) {
	step := 1
	if u.batch >= 0 {
		bc := u.opts.BatchCount
		step = bc
		// First index in range belonging to the current batch
		start += ((u.batch-start)%bc + bc) % bc
	}

	p := &u.params
	freq := u.opts.Frequency
	qt := u.t * u.opts.TimeScale
	off := u.opts.Offset
	scale := float32(p.DisplacementScale)
	pos := u.buffers.Positions
	col := u.buffers.Colors

	for i := start; i < end; i += step {
		bu, bv := u.field.Base(i)
		su, sv := bu, bv

		if p.Enabled {
			qx, qy := bu*freq, bv*freq
			var du, dv float64
			if p.Noise == NoiseCurl {
				c := u.curl.Curl3D(qx, qy, qt)
				du, dv = c.X, c.Y
			} else {
				du = u.noise.Noise3D(qx, qy, qt)
				dv = u.noise.Noise3D(qx+off, qy+off, qt)
			}
			su = clampUnit(bu + du*p.Intensity)
			sv = clampUnit(bv + dv*p.Intensity)
		}

		d := u.depthS.Sample(su, sv)
		r, g, b := u.colorS.Sample(su, sv)

		j := i * 3
		pos[j] = float32((su - 0.5) * u.aspect)
		pos[j+1] = float32(-(sv - 0.5))
		pos[j+2] = d * scale
		col[j] = r
		col[j+1] = g
		col[j+2] = b
	}
}

// clampUnit clamps to [0, 1]. NaN maps to 0.
func clampUnit(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

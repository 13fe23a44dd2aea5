package systems

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/depthcloud/depth"
	"github.com/pthm-cable/depthcloud/raster"
)

type countingListener struct {
	calls   int
	version uint64
}

func (l *countingListener) FrameUpdated(b *Buffers) {
	l.calls++
	l.version = b.Version
}

// gradientImage has a distinct color per pixel.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(w-1, 1)), G: uint8(y * 255 / max(h-1, 1)), B: 128, A: 255})
		}
	}
	return img
}

func radialDepth(w, h int) *depth.Buffer {
	buf := depth.NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x)/float64(w) - 0.5
			dy := float64(y)/float64(h) - 0.5
			buf.Set(x, y, float32(clampUnit(1-math.Hypot(dx, dy))))
		}
	}
	return buf
}

func newTestUpdater(t testing.TB, img *image.RGBA, dbuf *depth.Buffer, density int, opts UpdaterOptions) *FrameUpdater {
	t.Helper()
	w, h := img.Rect.Dx(), img.Rect.Dy()

	field, err := BuildField(w, h, density)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := NewDepthSampler(dbuf)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := NewColorSampler(raster.NewDecoder(img))
	if err != nil {
		t.Fatal(err)
	}
	noise := NewPerlinNoise(1337)
	u, err := NewFrameUpdater(field, ds, cs, noise, NewCurlNoise(noise, DefaultCurlEpsilon),
		float64(w)/float64(h), opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(u.Close)
	return u
}

func TestEndToEndStaticGrid(t *testing.T) {
	red := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(red.Pix); i += 4 {
		red.Pix[i], red.Pix[i+3] = 255, 255
	}
	u := newTestUpdater(t, red, depth.Uniform(4, 4, 0.5), 4, UpdaterOptions{Workers: 1})

	buf := u.Update(0, AnimationParams{Enabled: false, DisplacementScale: 1})
	if buf.Len() != 16 {
		t.Fatalf("particles = %d, want 16", buf.Len())
	}

	grid := []float64{-0.5, -1.0 / 6, 1.0 / 6, 0.5}
	for i := 0; i < 16; i++ {
		x, y, z := buf.Positions[i*3], buf.Positions[i*3+1], buf.Positions[i*3+2]
		r, g, b := buf.Colors[i*3], buf.Colors[i*3+1], buf.Colors[i*3+2]

		if r != 1 || g != 0 || b != 0 {
			t.Errorf("particle %d color = (%v,%v,%v), want (1,0,0)", i, r, g, b)
		}
		if z != 0.5 {
			t.Errorf("particle %d z = %v, want 0.5", i, z)
		}
		wantX := grid[i%4]
		wantY := -grid[i/4]
		if math.Abs(float64(x)-wantX) > 1e-6 || math.Abs(float64(y)-wantY) > 1e-6 {
			t.Errorf("particle %d at (%v,%v), want (%v,%v)", i, x, y, wantX, wantY)
		}
	}
}

func TestUpdateIdempotentWhenDisabled(t *testing.T) {
	u := newTestUpdater(t, gradientImage(32, 24), radialDepth(32, 24), 32, UpdaterOptions{Workers: 1})
	params := AnimationParams{Enabled: false, Noise: NoiseCurl, Speed: 2, Intensity: 0.3, DisplacementScale: 0.7}

	first := u.Update(1.5, params)
	pos := append([]float32(nil), first.Positions...)
	col := append([]float32(nil), first.Colors...)

	second := u.Update(42.0, params)
	for i := range pos {
		if second.Positions[i] != pos[i] || second.Colors[i] != col[i] {
			t.Fatalf("output changed at %d between disabled frames", i)
		}
	}
}

func TestUVClampProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 20; trial++ {
		w := 2 + rng.Intn(60)
		h := 2 + rng.Intn(60)
		u := newTestUpdater(t, gradientImage(w, h), radialDepth(w, h), 2+rng.Intn(64), UpdaterOptions{Workers: 1})
		aspect := u.Aspect()

		for _, kind := range []NoiseKind{NoiseSmooth, NoiseCurl} {
			params := AnimationParams{
				Enabled:           true,
				Noise:             kind,
				Speed:             0.1 + rng.Float64()*3,
				Intensity:         rng.Float64() * 0.5,
				DisplacementScale: 1,
			}
			buf := u.Update(rng.Float64()*1000, params)
			for i := 0; i < buf.Len(); i++ {
				x, y := float64(buf.Positions[i*3]), float64(buf.Positions[i*3+1])
				// x = (u-0.5)*aspect, y = -(v-0.5)
				su := x/aspect + 0.5
				sv := 0.5 - y
				if su < -1e-6 || su > 1+1e-6 || sv < -1e-6 || sv > 1+1e-6 {
					t.Fatalf("trial %d %v: particle %d sampled (%v,%v)", trial, kind, i, su, sv)
				}
			}
		}
	}
}

func TestAnimationMovesParticles(t *testing.T) {
	for _, kind := range []NoiseKind{NoiseSmooth, NoiseCurl} {
		t.Run(kind.String(), func(t *testing.T) {
			u := newTestUpdater(t, gradientImage(64, 64), radialDepth(64, 64), 64, UpdaterOptions{Workers: 1})
			rest := append([]float32(nil), u.Update(0, AnimationParams{DisplacementScale: 1}).Positions...)

			buf := u.Update(3.7, AnimationParams{Enabled: true, Noise: kind, Speed: 1, Intensity: 0.05, DisplacementScale: 1})
			moved := 0
			for i := 0; i < buf.Len(); i++ {
				if buf.Positions[i*3] != rest[i*3] || buf.Positions[i*3+1] != rest[i*3+1] {
					moved++
				}
			}
			if moved < buf.Len()/2 {
				t.Errorf("only %d of %d particles moved", moved, buf.Len())
			}
		})
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	img := gradientImage(200, 150)
	dbuf := radialDepth(200, 150)
	serial := newTestUpdater(t, img, dbuf, 200, UpdaterOptions{Workers: 1})
	pooled := newTestUpdater(t, img, dbuf, 200, UpdaterOptions{Workers: 4, ParallelThreshold: 1})

	params := AnimationParams{Enabled: true, Noise: NoiseCurl, Speed: 1, Intensity: 0.1, DisplacementScale: 0.5}
	for _, elapsed := range []float64{0, 0.5, 10} {
		a := serial.Update(elapsed, params)
		b := pooled.Update(elapsed, params)
		for i := range a.Positions {
			if a.Positions[i] != b.Positions[i] || a.Colors[i] != b.Colors[i] {
				t.Fatalf("elapsed %v: slot %d differs between serial and pooled", elapsed, i)
			}
		}
	}
}

func TestBatchedUpdate(t *testing.T) {
	img := gradientImage(40, 40)
	dbuf := radialDepth(40, 40)
	const batches = 4
	batched := newTestUpdater(t, img, dbuf, 40, UpdaterOptions{Workers: 2, ParallelThreshold: 1, BatchCount: batches})
	full := newTestUpdater(t, img, dbuf, 40, UpdaterOptions{Workers: 1})

	params := AnimationParams{Enabled: true, Noise: NoiseSmooth, Speed: 1, Intensity: 0.1, DisplacementScale: 1}

	// The first frame primes every particle
	first := append([]float32(nil), batched.Update(1, params).Positions...)
	want := full.Update(1, params)
	for i := range first {
		if first[i] != want.Positions[i] {
			t.Fatalf("priming frame differs at slot %d", i)
		}
	}

	// The second frame only touches batch 0
	got := batched.Update(2, params)
	want = full.Update(2, params)
	for i := 0; i < got.Len(); i++ {
		expect := first[i*3 : i*3+3]
		if i%batches == 0 {
			expect = want.Positions[i*3 : i*3+3]
		}
		for k := 0; k < 3; k++ {
			if got.Positions[i*3+k] != expect[k] {
				t.Fatalf("particle %d component %d = %v, want %v", i, k, got.Positions[i*3+k], expect[k])
			}
		}
	}
}

func TestListenerNotifiedOncePerFrame(t *testing.T) {
	l := &countingListener{}
	u := newTestUpdater(t, gradientImage(8, 8), radialDepth(8, 8), 8, UpdaterOptions{Workers: 1, Listener: l})

	for i := 0; i < 3; i++ {
		u.Update(float64(i), AnimationParams{DisplacementScale: 1})
	}
	if l.calls != 3 || l.version != 3 {
		t.Errorf("listener calls=%d version=%d, want 3/3", l.calls, l.version)
	}
}

func TestParseNoiseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    NoiseKind
		wantErr bool
	}{
		{"smooth", NoiseSmooth, false},
		{"Perlin", NoiseSmooth, false},
		{" curl ", NoiseCurl, false},
		{"wobble", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseNoiseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseNoiseKind(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewFrameUpdaterRejectsMissingInputs(t *testing.T) {
	if _, err := NewFrameUpdater(nil, nil, nil, NewPerlinNoise(1), nil, 1, UpdaterOptions{}); err == nil {
		t.Error("expected error for missing field and samplers")
	}
}

func benchmarkUpdate(b *testing.B, workers int) {
	img := gradientImage(512, 512)
	u := newTestUpdater(b, img, radialDepth(512, 512), 512, UpdaterOptions{Workers: workers})
	params := AnimationParams{Enabled: true, Noise: NoiseSmooth, Speed: 1, Intensity: 0.02, DisplacementScale: 0.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		u.Update(float64(i)/60, params)
	}
}

func BenchmarkFrameUpdateSerial(b *testing.B) { benchmarkUpdate(b, 1) }

func BenchmarkFrameUpdatePooled(b *testing.B) { benchmarkUpdate(b, 0) }

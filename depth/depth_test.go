package depth

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/telemetry"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// failing is a provider that always fails with err.
type failing struct {
	name string
	err  error
}

func (f failing) Name() string { return f.name }

func (f failing) Estimate(context.Context, image.Image) (*Buffer, error) {
	return nil, &EstimationError{Provider: f.name, Err: f.err}
}

// fixed returns a copy of buf regardless of input.
type fixed struct {
	buf   *Buffer
	calls int
}

func (f *fixed) Name() string { return "fixed" }

func (f *fixed) Estimate(context.Context, image.Image) (*Buffer, error) {
	f.calls++
	return f.buf.Clone(), nil
}

func TestBufferValidate(t *testing.T) {
	tests := []struct {
		name    string
		buf     *Buffer
		wantErr bool
	}{
		{"ok", Uniform(2, 2, 0.5), false},
		{"nil", nil, true},
		{"zero width", &Buffer{Width: 0, Height: 2}, true},
		{"short values", &Buffer{Width: 2, Height: 2, Values: make([]float32, 3)}, true},
		{"out of range", &Buffer{Width: 1, Height: 1, Values: []float32{1.5}}, true},
		{"nan", &Buffer{Width: 1, Height: 1, Values: []float32{float32(math.NaN())}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRadialCenterNearest(t *testing.T) {
	buf, err := Radial{}.Estimate(context.Background(), solidImage(9, 9, color.Black))
	if err != nil {
		t.Fatal(err)
	}
	if err := buf.Validate(); err != nil {
		t.Fatal(err)
	}

	center := buf.At(4, 4)
	corner := buf.At(0, 0)
	if center <= corner {
		t.Errorf("center %v should be nearer than corner %v", center, corner)
	}
	if center < 0.9 {
		t.Errorf("center depth = %v, want close to 1", center)
	}
}

func TestRadialRejectsEmpty(t *testing.T) {
	_, err := Radial{}.Estimate(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 4)))
	var ee *EstimationError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EstimationError, got %v", err)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLuminance(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.White)
	img.Set(1, 0, color.RGBA{A: 255})

	buf, err := Luminance{}.Estimate(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(buf.At(0, 0))-1) > 1e-3 {
		t.Errorf("white = %v, want 1", buf.At(0, 0))
	}
	if buf.At(1, 0) > 1e-3 {
		t.Errorf("black = %v, want 0", buf.At(1, 0))
	}

	inv, err := Luminance{Invert: true}.Estimate(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if inv.At(0, 0) > 1e-3 {
		t.Errorf("inverted white = %v, want 0", inv.At(0, 0))
	}
}

func TestStaticFromImage(t *testing.T) {
	dm := image.NewGray(image.Rect(0, 0, 2, 1))
	dm.SetGray(0, 0, color.Gray{Y: 255})
	dm.SetGray(1, 0, color.Gray{Y: 0})

	s, err := FromImage(dm)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := s.Estimate(context.Background(), solidImage(4, 2, color.White))
	if err != nil {
		t.Fatal(err)
	}
	if buf.Width != 2 || buf.Height != 1 {
		t.Fatalf("static buffer is %dx%d, want native 2x1", buf.Width, buf.Height)
	}
	if buf.At(0, 0) != 1 || buf.At(1, 0) != 0 {
		t.Errorf("values = %v, want [1 0]", buf.Values)
	}
}

func TestNewStaticValidates(t *testing.T) {
	tests := []struct {
		name    string
		buf     *Buffer
		wantErr bool
	}{
		{"valid", &Buffer{Width: 2, Height: 1, Values: []float32{0, 1}}, false},
		{"nil", nil, true},
		{"short", &Buffer{Width: 2, Height: 2, Values: []float32{0, 1}}, true},
		{"out of range", &Buffer{Width: 1, Height: 1, Values: []float32{1.5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStatic(tt.buf)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewStatic() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChainFirstSuccessResampled(t *testing.T) {
	rec := telemetry.NewLogBuffer(16)
	good := &fixed{buf: Uniform(2, 2, 0.25)}
	chain := NewChain(rec,
		failing{name: "model", err: ErrModelUnavailable},
		good,
		&fixed{buf: Uniform(2, 2, 0.75)},
	)

	buf, err := chain.Estimate(context.Background(), solidImage(8, 6, color.White))
	if err != nil {
		t.Fatal(err)
	}
	if buf.Width != 8 || buf.Height != 6 {
		t.Errorf("buffer is %dx%d, want image size 8x6", buf.Width, buf.Height)
	}
	for i, v := range buf.Values {
		if math.Abs(float64(v)-0.25) > 1e-3 {
			t.Fatalf("value[%d] = %v, want 0.25", i, v)
		}
	}
	if good.calls != 1 {
		t.Errorf("good provider called %d times, want 1", good.calls)
	}

	var failed int
	for _, e := range rec.Events() {
		if e.Kind == telemetry.KindDepthAttemptFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("recorded %d failed attempts, want 1", failed)
	}
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(nil,
		failing{name: "a", err: ErrModelUnavailable},
		failing{name: "b", err: ErrUnsupportedFormat},
	)

	_, err := chain.Estimate(context.Background(), solidImage(2, 2, color.White))
	var ee *EstimationError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EstimationError, got %T %v", err, err)
	}
	if !errors.Is(err, ErrModelUnavailable) || !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("joined error should wrap both causes: %v", err)
	}
}

func TestChainRejectsInvalidBuffer(t *testing.T) {
	bad := &fixed{buf: &Buffer{Width: 1, Height: 1, Values: []float32{2}}}
	chain := NewChain(nil, bad, Radial{})

	buf, err := chain.Estimate(context.Background(), solidImage(3, 3, color.White))
	if err != nil {
		t.Fatal(err)
	}
	if err := buf.Validate(); err != nil {
		t.Errorf("chain returned invalid buffer: %v", err)
	}
}

func TestChainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(nil, Radial{}).Estimate(ctx, solidImage(2, 2, color.White))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestResample(t *testing.T) {
	src := NewBuffer(2, 1)
	src.Set(0, 0, 0)
	src.Set(1, 0, 1)

	out := Resample(src, 8, 4)
	if out.Width != 8 || out.Height != 4 {
		t.Fatalf("resampled to %dx%d", out.Width, out.Height)
	}
	if err := out.Validate(); err != nil {
		t.Fatal(err)
	}
	// Left edge stays dark, right edge stays bright
	if out.At(0, 0) >= out.At(7, 0) {
		t.Errorf("gradient lost: left %v, right %v", out.At(0, 0), out.At(7, 0))
	}
}

func TestNormalizePercentiles(t *testing.T) {
	raw := make([]float32, 100)
	for i := range raw {
		raw[i] = float32(i)
	}
	raw[99] = 1e6 // outlier

	buf := Normalize(raw, 10, 10, 0, 98, false)
	if err := buf.Validate(); err != nil {
		t.Fatal(err)
	}
	if buf.Values[0] != 0 {
		t.Errorf("min = %v, want 0", buf.Values[0])
	}
	// The outlier is clipped rather than squashing everything else to 0
	if buf.Values[50] < 0.4 || buf.Values[50] > 0.6 {
		t.Errorf("mid value = %v, want about 0.5", buf.Values[50])
	}
	if buf.Values[99] != 1 {
		t.Errorf("outlier = %v, want clipped to 1", buf.Values[99])
	}

	inv := Normalize(raw, 10, 10, 0, 98, true)
	if inv.Values[0] != 1 {
		t.Errorf("inverted min = %v, want 1", inv.Values[0])
	}
}

func TestNormalizeFlat(t *testing.T) {
	raw := []float32{3, 3, 3, 3}
	buf := Normalize(raw, 2, 2, 2, 98, false)
	for _, v := range buf.Values {
		if v != 0 {
			t.Errorf("flat input should normalize to 0, got %v", v)
		}
	}
}

func TestFromConfigSkipsUnavailableModel(t *testing.T) {
	cfg := config.Default().Depth
	cfg.Providers = []string{StrategyONNX, StrategyLuminance}
	cfg.ONNX.ModelPath = "" // never available

	rec := telemetry.NewLogBuffer(16)
	built, err := FromConfig(cfg, rec)
	if err != nil {
		t.Fatal(err)
	}
	defer built.Close()

	chain, ok := built.Provider.(*Chain)
	if !ok {
		t.Fatalf("provider is %T, want *Chain", built.Provider)
	}
	if chain.Len() != 1 {
		t.Errorf("chain has %d strategies, want 1 (luminance)", chain.Len())
	}
	if built.Fallback.Name() != StrategyRadial {
		t.Errorf("fallback = %s, want radial", built.Fallback.Name())
	}
	if rec.Len() == 0 {
		t.Error("expected an event for the skipped model")
	}
}

func TestFromConfigUnknownStrategy(t *testing.T) {
	cfg := config.Default().Depth
	cfg.Providers = []string{"sonar"}
	if _, err := FromConfig(cfg, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestFromConfigReportsCache(t *testing.T) {
	cfg := config.Default().Depth
	cfg.Providers = []string{StrategyLuminance}
	cfg.CachePath = filepath.Join(t.TempDir(), "depth.db")

	// Seed the cache file with one entry
	c, err := OpenCache(cfg.CachePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(context.Background(), "k", Uniform(2, 2, 0.5)); err != nil {
		t.Fatal(err)
	}
	c.Close()

	rec := telemetry.NewLogBuffer(16)
	built, err := FromConfig(cfg, rec)
	if err != nil {
		t.Fatal(err)
	}
	defer built.Close()

	var opened *telemetry.Event
	for _, e := range rec.Events() {
		if e.Kind == telemetry.KindDepthCacheOpened {
			opened = &e
		}
	}
	if opened == nil {
		t.Fatal("expected a cache opened event")
	}
	if !strings.Contains(opened.ToCSV().Attrs, "entries=1") {
		t.Errorf("attrs = %q, want entries=1", opened.ToCSV().Attrs)
	}
}

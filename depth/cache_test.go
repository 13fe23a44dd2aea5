package depth

import (
	"context"
	"image/color"
	"testing"

	"github.com/pthm-cable/depthcloud/telemetry"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(":memory:")
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachePutGet(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	buf := NewBuffer(3, 2)
	for i := range buf.Values {
		buf.Values[i] = float32(i) / 5
	}

	if err := c.Put(ctx, "k", buf); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if got.Width != 3 || got.Height != 2 {
		t.Fatalf("dims = %dx%d", got.Width, got.Height)
	}
	for i := range buf.Values {
		if got.Values[i] != buf.Values[i] {
			t.Errorf("value[%d] = %v, want %v", i, got.Values[i], buf.Values[i])
		}
	}

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("miss returned ok=%v err=%v", ok, err)
	}

	// Overwriting a key does not add an entry
	if err := c.Put(ctx, "k", buf); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "k2", buf); err != nil {
		t.Fatal(err)
	}
	if n, err := c.Len(ctx); err != nil || n != 2 {
		t.Errorf("Len() = %d, %v, want 2", n, err)
	}
}

func TestKeyDependsOnContentAndProvider(t *testing.T) {
	red := solidImage(4, 4, color.RGBA{R: 255, A: 255})
	blue := solidImage(4, 4, color.RGBA{B: 255, A: 255})

	k1, err := Key("onnx", red)
	if err != nil {
		t.Fatal(err)
	}
	k2, _ := Key("onnx", red)
	k3, _ := Key("onnx", blue)
	k4, _ := Key("luminance", red)

	if k1 != k2 {
		t.Error("same image and provider should give the same key")
	}
	if k1 == k3 {
		t.Error("different pixels should give different keys")
	}
	if k1 == k4 {
		t.Error("different providers should give different keys")
	}
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	inner := &fixed{buf: Uniform(4, 4, 0.5)}
	rec := telemetry.NewLogBuffer(16)
	p := &Cached{Inner: inner, Cache: openTestCache(t), Rec: rec}
	img := solidImage(4, 4, color.White)

	for i := 0; i < 3; i++ {
		buf, err := p.Estimate(ctx, img)
		if err != nil {
			t.Fatal(err)
		}
		if buf.At(1, 1) != 0.5 {
			t.Errorf("call %d: value = %v, want 0.5", i, buf.At(1, 1))
		}
	}

	if inner.calls != 1 {
		t.Errorf("inner provider called %d times, want 1", inner.calls)
	}

	var hits int
	for _, e := range rec.Events() {
		if e.Kind == telemetry.KindDepthCacheHit {
			hits++
		}
	}
	if hits != 2 {
		t.Errorf("cache hits = %d, want 2", hits)
	}
}

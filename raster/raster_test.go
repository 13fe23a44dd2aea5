package raster

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestDecoderDecodesOnce(t *testing.T) {
	d := NewDecoder(checker(8, 8))

	var wg sync.WaitGroup
	results := make([]*image.RGBA, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rgba, err := d.Decode()
			if err != nil {
				t.Errorf("decode: %v", err)
			}
			results[i] = rgba
		}(i)
	}
	wg.Wait()

	if d.count != 1 {
		t.Errorf("expected 1 conversion, got %d", d.count)
	}
	for i, r := range results {
		if r != results[0] {
			t.Errorf("result %d differs from first decode", i)
		}
	}
}

func TestDecoderPixels(t *testing.T) {
	d := NewDecoder(checker(2, 2))
	rgba, err := d.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := rgba.RGBAAt(0, 0); got.R != 255 || got.B != 0 {
		t.Errorf("pixel (0,0) = %v, want red", got)
	}
	if got := rgba.RGBAAt(1, 0); got.B != 255 || got.R != 0 {
		t.Errorf("pixel (1,0) = %v, want blue", got)
	}
}

func TestDecoderRebasesSubImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.SetRGBA(2, 2, color.RGBA{G: 200, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	rgba, err := NewDecoder(sub).Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rgba.Bounds().Min != (image.Point{}) {
		t.Errorf("expected zero origin, got %v", rgba.Bounds().Min)
	}
	if got := rgba.RGBAAt(0, 0).G; got != 200 {
		t.Errorf("expected rebased pixel G=200, got %d", got)
	}
}

func TestDecoderEmptyImage(t *testing.T) {
	_, err := NewDecoder(image.NewRGBA(image.Rect(0, 0, 0, 5))).Decode()
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}

	_, err = NewDecoder(nil).Decode()
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage for nil image, got %v", err)
	}
}

func TestLoadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, checker(3, 5)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 5 {
		t.Errorf("expected 3x5, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

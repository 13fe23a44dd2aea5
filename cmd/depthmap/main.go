// Depth map tool - runs the configured depth strategies on an image and
// writes the result as a 16-bit grayscale PNG (white = near) for inspection.
//
// Usage: go run ./cmd/depthmap -image photo.jpg -out depth.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/depth"
	"github.com/pthm-cable/depthcloud/raster"
	"github.com/pthm-cable/depthcloud/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	imagePath := flag.String("image", "", "Input image")
	outPath := flag.String("out", "depth.png", "Output PNG path")
	providers := flag.String("providers", "", "Comma-separated strategy order (empty = use config)")
	timeout := flag.Duration("timeout", time.Minute, "Estimation timeout")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: depthmap -image <path> [-out depth.png]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *providers != "" {
		cfg.Depth.Providers = strings.Split(*providers, ",")
	}

	if err := run(cfg.Depth, *imagePath, *outPath, *timeout); err != nil {
		slog.Error("depth map failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.DepthConfig, imagePath, outPath string, timeout time.Duration) error {
	img, err := raster.Load(imagePath)
	if err != nil {
		return err
	}

	rec := telemetry.NewSlogRecorder(nil)
	built, err := depth.FromConfig(cfg, rec)
	if err != nil {
		return err
	}
	defer built.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf, err := built.Provider.Estimate(ctx, img)
	var ee *depth.EstimationError
	if errors.As(err, &ee) {
		rec.Record(telemetry.NewDepthFallbackEvent(built.Fallback.Name(), err))
		buf, err = built.Fallback.Estimate(ctx, img)
	}
	if err != nil {
		return err
	}

	if err := writePNG(outPath, buf); err != nil {
		return err
	}
	fmt.Printf("Depth map written to: %s (%dx%d)\n", outPath, buf.Width, buf.Height)
	return nil
}

func writePNG(path string, buf *depth.Buffer) error {
	img := image.NewGray16(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(buf.At(x, y)*0xffff + 0.5)})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding png: %w", err)
	}
	return f.Close()
}

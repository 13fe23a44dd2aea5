package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	imagePath := flag.String("image", "", "Image to load at startup")
	depthPath := flag.String("depth", "", "Grayscale depth map for -image (white = near)")
	headless := flag.Bool("headless", false, "Run without graphics (benchmark mode)")
	frames := flag.Int("frames", 600, "Frames to run in headless mode")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	exportPath := flag.String("export", "", "Write a PLY snapshot of the last headless frame")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	opts := game.Options{
		Headless:  *headless,
		OutputDir: *outputDir,
		DepthPath: *depthPath,
		ExportDir: *outputDir,
	}

	if *headless {
		os.Exit(runHeadless(cfg, opts, *imagePath, *frames, *exportPath))
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "depthcloud")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.New(cfg, opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return
	}
	defer g.Unload()

	if *imagePath != "" {
		g.LoadInitialAsync(*imagePath)
	}

	for !rl.WindowShouldClose() {
		g.Update()
		g.Draw()
	}
}

// runHeadless loads the image, runs the frame loop and returns an exit code.
func runHeadless(cfg *config.Config, opts game.Options, imagePath string, frames int, exportPath string) int {
	if imagePath == "" {
		slog.Error("headless mode requires -image")
		return 2
	}

	g, err := game.New(cfg, opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return 1
	}
	defer g.Unload()

	// Headless mode - pure CPU, no raylib needed
	if err := g.LoadInitial(context.Background(), imagePath); err != nil {
		slog.Error("failed to load image", "error", err)
		return 1
	}

	slog.Info("starting headless run",
		"image", imagePath,
		"frames", frames,
		"density", g.Session().Density(),
	)

	for int(g.Frame()) < frames {
		g.UpdateHeadless()
	}
	slog.Info("headless run finished", "frames", g.Frame())

	if exportPath != "" {
		if _, err := g.ExportSnapshot(exportPath); err != nil {
			slog.Error("export failed", "error", err)
			return 1
		}
	}
	return 0
}

// Noise preview tool - interactive visualization of the particle
// displacement fields with sliders.
//
// Usage: go run ./cmd/noisepreview [-config path]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/systems"
)

const (
	windowWidth  = 1000
	windowHeight = 640
	previewSize  = 512
	gridSize     = 192
	panelWidth   = windowWidth - previewSize - 30
)

// previewParams holds the values the sliders edit.
type previewParams struct {
	Noise     systems.NoiseKind
	Frequency float32
	TimeScale float32
	Offset    float32
	Epsilon   float32
	Seed      int64
}

func defaultParams(cfg *config.Config) previewParams {
	kind, _ := systems.ParseNoiseKind(cfg.Animation.Noise)
	return previewParams{
		Noise:     kind,
		Frequency: float32(cfg.Noise.Frequency),
		TimeScale: float32(cfg.Noise.TimeScale),
		Offset:    float32(cfg.Noise.DecorrelationOffset),
		Epsilon:   float32(cfg.Animation.CurlEpsilon),
		Seed:      cfg.Noise.Seed,
	}
}

// fieldStats summarizes the last generated field.
type fieldStats struct {
	MinMag, MaxMag, AvgMag float64
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rl.InitWindow(windowWidth, windowHeight, "Noise Field Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	params := defaultParams(cfg)
	noise := systems.NewPerlinNoise(params.Seed)

	img := rl.GenImageColor(gridSize, gridSize, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	pixels := make([]color.RGBA, gridSize*gridSize)

	var t float64
	animating := true
	var stats fieldStats

	for !rl.WindowShouldClose() {
		if animating {
			t += float64(rl.GetFrameTime())
		}

		curl := systems.NewCurlNoise(noise, float64(params.Epsilon))
		stats = generate(pixels, noise, curl, params, t)
		rl.UpdateTexture(texture, pixels)

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: gridSize, Height: gridSize},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("|d| min %.3f  max %.3f  avg %.3f", stats.MinMag, stats.MaxMag, stats.AvgMag),
			15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Time: %.1f  (noise time %.2f)", t, t*float64(params.TimeScale)),
			15, statsY+20, 16, rl.DarkGray)
		if params.Noise == systems.NoiseCurl {
			rl.DrawText("hue = direction, brightness = magnitude", 15, statsY+40, 14, rl.Gray)
		} else {
			rl.DrawText("red = U offset, green = V offset", 15, statsY+40, 14, rl.Gray)
		}

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Displacement Field", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		params.Frequency = slider(panelX, &panelY, "Frequency (UV to noise space)", "%.2f", params.Frequency, 0.5, 12)
		params.TimeScale = slider(panelX, &panelY, "Time scale", "%.2f", params.TimeScale, 0, 2)
		params.Offset = slider(panelX, &panelY, "U/V decorrelation offset", "%.1f", params.Offset, 0, 200)
		params.Epsilon = slider(panelX, &panelY, "Curl epsilon", "%.4f", params.Epsilon, 0.0005, 0.05)

		newSeed := int64(slider(panelX, &panelY, "Seed", "%.0f", float32(params.Seed), 0, 99999))
		if newSeed != params.Seed {
			params.Seed = newSeed
			noise = systems.NewPerlinNoise(params.Seed)
		}
		panelY += 10

		// Buttons
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Noise: "+params.Noise.String()) {
			if params.Noise == systems.NoiseSmooth {
				params.Noise = systems.NoiseCurl
			} else {
				params.Noise = systems.NoiseSmooth
			}
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, toggleText(animating, "Stop", "Animate")) {
			animating = !animating
		}
		panelY += 40

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Reset Time") {
			t = 0
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaultParams(cfg)
			noise = systems.NewPerlinNoise(params.Seed)
			t = 0
		}
		panelY += 50

		// Output YAML
		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		for _, line := range yamlLines(params) {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			var yaml string
			for _, line := range yamlLines(params) {
				yaml += line + "\n"
			}
			rl.SetClipboardText(yaml)
		}

		rl.EndDrawing()
	}
}

// slider draws a labelled slider bar and advances y.
func slider(x float32, y *float32, label, format string, value, min, max float32) float32 {
	rl.DrawText(label, int32(x), int32(*y), 14, rl.Gray)
	*y += 18
	v := gui.SliderBar(
		rl.Rectangle{X: x, Y: *y, Width: float32(panelWidth - 80), Height: 20},
		"", "",
		value, min, max,
	)
	rl.DrawText(fmt.Sprintf(format, v), int32(x+float32(panelWidth-70)), int32(*y+2), 16, rl.DarkGray)
	*y += 35
	return v
}

func yamlLines(p previewParams) []string {
	return []string{
		"animation:",
		fmt.Sprintf("  noise: %s", p.Noise),
		fmt.Sprintf("  curl_epsilon: %.4f", p.Epsilon),
		"noise:",
		fmt.Sprintf("  seed: %d", p.Seed),
		fmt.Sprintf("  frequency: %.2f", p.Frequency),
		fmt.Sprintf("  time_scale: %.2f", p.TimeScale),
		fmt.Sprintf("  decorrelation_offset: %.1f", p.Offset),
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// generate samples the displacement direction the frame updater would apply
// at each texel, before intensity scaling.
func generate(pixels []color.RGBA, noise *systems.PerlinNoise, curl *systems.CurlNoise, p previewParams, t float64) fieldStats {
	freq := float64(p.Frequency)
	nt := t * float64(p.TimeScale)
	off := float64(p.Offset)

	mags := make([]float64, len(pixels))
	dus := make([]float64, len(pixels))
	dvs := make([]float64, len(pixels))

	stats := fieldStats{MinMag: math.Inf(1)}
	for y := 0; y < gridSize; y++ {
		v := (float64(y) + 0.5) / gridSize
		for x := 0; x < gridSize; x++ {
			u := (float64(x) + 0.5) / gridSize

			var du, dv float64
			if p.Noise == systems.NoiseCurl {
				c := curl.Curl3D(u*freq, v*freq, nt)
				du, dv = c.X, c.Y
			} else {
				du = noise.Noise3D(u*freq, v*freq, nt)
				dv = noise.Noise3D(u*freq+off, v*freq+off, nt)
			}

			i := y*gridSize + x
			m := math.Hypot(du, dv)
			dus[i], dvs[i], mags[i] = du, dv, m
			stats.MinMag = math.Min(stats.MinMag, m)
			stats.MaxMag = math.Max(stats.MaxMag, m)
			stats.AvgMag += m
		}
	}
	stats.AvgMag /= float64(len(pixels))

	norm := stats.MaxMag
	if norm == 0 {
		norm = 1
	}
	for i := range pixels {
		var c colorful.Color
		if p.Noise == systems.NoiseCurl {
			hue := math.Atan2(dvs[i], dus[i])*180/math.Pi + 180
			c = colorful.Hsv(hue, 0.8, 0.15+0.85*mags[i]/norm)
		} else {
			c = colorful.Color{R: 0.5 + 0.5*dus[i], G: 0.5 + 0.5*dvs[i], B: 0.35}
		}
		r, g, b := c.Clamped().RGB255()
		pixels[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return stats
}

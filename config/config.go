// Package config provides configuration loading and access for depthcloud.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all viewer and pipeline configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Particles ParticlesConfig `yaml:"particles"`
	Animation AnimationConfig `yaml:"animation"`
	Noise     NoiseConfig     `yaml:"noise"`
	Depth     DepthConfig     `yaml:"depth"`
	Workers   WorkersConfig   `yaml:"workers"`
	Render    RenderConfig    `yaml:"render"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// ParticlesConfig holds point cloud sampling parameters.
type ParticlesConfig struct {
	Density           int     `yaml:"density"`            // Grid side length requested by the user
	MaxDensity        int     `yaml:"max_density"`        // Hard ceiling on density (bounds memory)
	WarnParticles     int     `yaml:"warn_particles"`     // Emit a warning above this particle count
	DisplacementScale float64 `yaml:"displacement_scale"` // Z amplitude for depth 1.0
	PointSize         float64 `yaml:"point_size"`         // World-space point size
	SizeAttenuation   float64 `yaml:"size_attenuation"`   // Extra size per unit of depth
}

// AnimationConfig holds the initial animation parameters.
type AnimationConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Noise       string  `yaml:"noise"`        // "smooth" or "curl"
	Speed       float64 `yaml:"speed"`        // Time multiplier (> 0)
	Intensity   float64 `yaml:"intensity"`    // UV displacement amplitude (>= 0)
	CurlEpsilon float64 `yaml:"curl_epsilon"` // Finite-difference step for curl noise
	BatchCount  int     `yaml:"batch_count"`  // Update 1/N of particles per frame (1 = all)
}

// NoiseConfig holds noise sampling constants.
type NoiseConfig struct {
	Seed                int64   `yaml:"seed"`
	Frequency           float64 `yaml:"frequency"`            // UV to noise-space scale
	TimeScale           float64 `yaml:"time_scale"`           // Noise-space time per animated second
	DecorrelationOffset float64 `yaml:"decorrelation_offset"` // Shift between U and V noise lookups
}

// DepthConfig holds depth provider settings.
type DepthConfig struct {
	Providers []string   `yaml:"providers"`  // Strategy order, e.g. [onnx, luminance]
	Fallback  string     `yaml:"fallback"`   // Used when every provider fails
	NearPct   float64    `yaml:"near_pct"`   // Percentile clipped to depth 0
	FarPct    float64    `yaml:"far_pct"`    // Percentile clipped to depth 1
	Invert    bool       `yaml:"invert"`     // Flip depth after normalization
	CachePath string     `yaml:"cache_path"` // SQLite depth cache ("" disables)
	ONNX      ONNXConfig `yaml:"onnx"`
}

// ONNXConfig holds monocular depth model settings.
type ONNXConfig struct {
	ModelPath         string     `yaml:"model_path"`
	SharedLibraryPath string     `yaml:"shared_library_path"`
	InputName         string     `yaml:"input_name"`
	OutputName        string     `yaml:"output_name"`
	InputWidth        int        `yaml:"input_width"`
	InputHeight       int        `yaml:"input_height"`
	Mean              [3]float32 `yaml:"mean"`
	Std               [3]float32 `yaml:"std"`
	// Model outputs inverse depth (near = large), which already matches the
	// nearness convention. Metric depth output is flipped during normalization.
	InverseDepth bool `yaml:"inverse_depth"`
}

// WorkersConfig holds frame update parallelism.
type WorkersConfig struct {
	Count             int `yaml:"count"`              // 0 = GOMAXPROCS
	ParallelThreshold int `yaml:"parallel_threshold"` // Below this particle count, update serially
}

// RenderConfig holds presentation settings.
type RenderConfig struct {
	Theme        string   `yaml:"theme"` // "dark" or "light"
	Glow         bool     `yaml:"glow"`
	GlowStrength float64  `yaml:"glow_strength"`
	Background   [3]uint8 `yaml:"background"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow    int    `yaml:"perf_window"`     // Frames averaged per perf report
	LogBufferSize int    `yaml:"log_buffer_size"` // Events kept for the debug panel
	OutputDir     string `yaml:"output_dir"`      // CSV output directory ("" disables)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	FrameDT      float64 // 1 / Screen.TargetFPS
	MaxParticles int     // MaxDensity^2
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// validate rejects values the pipeline cannot run with.
func (c *Config) validate() error {
	if c.Particles.MaxDensity < 2 {
		return fmt.Errorf("particles.max_density must be >= 2, got %d", c.Particles.MaxDensity)
	}
	if c.Animation.Speed <= 0 {
		return fmt.Errorf("animation.speed must be > 0, got %v", c.Animation.Speed)
	}
	if c.Animation.Intensity < 0 {
		return fmt.Errorf("animation.intensity must be >= 0, got %v", c.Animation.Intensity)
	}
	switch c.Animation.Noise {
	case "smooth", "curl":
	default:
		return fmt.Errorf("animation.noise must be smooth or curl, got %q", c.Animation.Noise)
	}
	if c.Depth.NearPct < 0 || c.Depth.FarPct > 100 || c.Depth.NearPct >= c.Depth.FarPct {
		return fmt.Errorf("depth percentiles must satisfy 0 <= near < far <= 100, got %v/%v",
			c.Depth.NearPct, c.Depth.FarPct)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	fps := c.Screen.TargetFPS
	if fps <= 0 {
		fps = 60
	}
	c.Derived.FrameDT = 1.0 / float64(fps)
	c.Derived.MaxParticles = c.Particles.MaxDensity * c.Particles.MaxDensity

	if c.Animation.BatchCount < 1 {
		c.Animation.BatchCount = 1
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

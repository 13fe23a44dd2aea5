package game

// Options configures a Game beyond the loaded config file.
type Options struct {
	// Headless runs without raylib; Draw must not be called.
	Headless bool
	// OutputDir overrides telemetry.output_dir when non-empty.
	OutputDir string
	// DepthPath is a grayscale depth map for the image passed to LoadInitial.
	// Later loads use the configured providers.
	DepthPath string
	// ExportDir receives PLY snapshots ("" = working directory).
	ExportDir string
}

package depth

// ONNXOptions configures the monocular depth model provider.
type ONNXOptions struct {
	// ModelPath is the .onnx file. Required.
	ModelPath string
	// SharedLibraryPath locates the onnxruntime library. If empty, the
	// ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable is respected.
	SharedLibraryPath string

	InputName   string
	OutputName  string
	InputWidth  int
	InputHeight int

	// Per-channel RGB normalization applied after scaling pixels to [0, 1].
	Mean [3]float32
	Std  [3]float32

	// InverseDepth reports that the model emits disparity (near = large).
	InverseDepth bool

	// Percentile clip and final inversion applied to the raw output.
	NearPct float64
	FarPct  float64
	Invert  bool
}

// DefaultONNXOptions returns settings for common 256x256 MiDaS-style exports.
func DefaultONNXOptions() ONNXOptions {
	return ONNXOptions{
		InputName:    "image",
		OutputName:   "depth",
		InputWidth:   256,
		InputHeight:  256,
		Mean:         [3]float32{0.485, 0.456, 0.406},
		Std:          [3]float32{0.229, 0.224, 0.225},
		InverseDepth: true,
		NearPct:      2,
		FarPct:       98,
	}
}

// flip reports whether normalized model output must be inverted to make
// larger values nearer.
func (o ONNXOptions) flip() bool {
	return o.Invert != !o.InverseDepth
}

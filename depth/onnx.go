//go:build cgo

package depth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	resize "github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

var (
	ortMu   sync.Mutex
	ortRefs int
)

// acquireRuntime initializes the process-wide onnxruntime environment on
// first use. Every successful call must be paired with releaseRuntime.
func acquireRuntime(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortRefs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		} else if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return err
		}
	}
	ortRefs++
	return nil
}

func releaseRuntime() {
	ortMu.Lock()
	defer ortMu.Unlock()

	ortRefs--
	if ortRefs == 0 {
		ort.DestroyEnvironment()
	}
}

// ONNXProvider runs a monocular depth model through onnxruntime.
type ONNXProvider struct {
	opts ONNXOptions

	// Runs share input/output tensors, so they are serialized.
	mu      sync.Mutex
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	session *ort.AdvancedSession
	closed  bool
}

// NewONNXProvider loads the model. Failures wrap ErrModelUnavailable.
func NewONNXProvider(opts ONNXOptions) (*ONNXProvider, error) {
	if opts.ModelPath == "" {
		return nil, &EstimationError{Provider: "onnx", Err: fmt.Errorf("%w: no model path", ErrModelUnavailable)}
	}
	if opts.InputWidth <= 0 || opts.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid model input size %dx%d", opts.InputWidth, opts.InputHeight)
	}
	if opts.InputName == "" || opts.OutputName == "" {
		return nil, errors.New("input and output names must be provided")
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, &EstimationError{Provider: "onnx", Err: fmt.Errorf("%w: %v", ErrModelUnavailable, err)}
	}

	if err := acquireRuntime(opts.SharedLibraryPath); err != nil {
		return nil, &EstimationError{Provider: "onnx", Err: fmt.Errorf("%w: %v", ErrModelUnavailable, err)}
	}

	p := &ONNXProvider{opts: opts}
	if err := p.init(); err != nil {
		p.destroy()
		releaseRuntime()
		return nil, &EstimationError{Provider: "onnx", Err: fmt.Errorf("%w: %v", ErrModelUnavailable, err)}
	}
	return p, nil
}

func (p *ONNXProvider) init() error {
	w, h := int64(p.opts.InputWidth), int64(p.opts.InputHeight)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, h, w))
	if err != nil {
		return err
	}
	p.input = input

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, h, w))
	if err != nil {
		return err
	}
	p.output = output

	session, err := ort.NewAdvancedSession(
		p.opts.ModelPath,
		[]string{p.opts.InputName},
		[]string{p.opts.OutputName},
		[]ort.Value{p.input},
		[]ort.Value{p.output},
		nil,
	)
	if err != nil {
		return err
	}
	p.session = session
	return nil
}

func (p *ONNXProvider) destroy() {
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
	if p.output != nil {
		p.output.Destroy()
		p.output = nil
	}
	if p.input != nil {
		p.input.Destroy()
		p.input = nil
	}
}

// Name implements Provider.
func (p *ONNXProvider) Name() string { return "onnx" }

// Estimate implements Provider. The buffer has the model's native
// resolution; Chain resamples it to the image.
func (p *ONNXProvider) Estimate(ctx context.Context, img image.Image) (*Buffer, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &EstimationError{Provider: p.Name(), Err: ErrUnsupportedFormat}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, &EstimationError{Provider: p.Name(), Err: ErrModelUnavailable}
	}

	fillInput(p.input.GetData(), img, p.opts)

	if err := p.session.Run(); err != nil {
		return nil, &EstimationError{Provider: p.Name(), Err: fmt.Errorf("running model: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Normalize(p.output.GetData(), p.opts.InputWidth, p.opts.InputHeight,
		p.opts.NearPct, p.opts.FarPct, p.opts.flip()), nil
}

// Close releases the session and the runtime reference.
func (p *ONNXProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.destroy()
	releaseRuntime()
	return nil
}

// fillInput writes img as a normalized NCHW RGB tensor, composited over white.
func fillInput(data []float32, img image.Image, opts ONNXOptions) {
	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)

	dst := resize.Resize(uint(opts.InputWidth), uint(opts.InputHeight), flat, resize.Bicubic)

	std := opts.Std
	for i := range std {
		if std[i] == 0 {
			std[i] = 1
		}
	}

	numPixels := opts.InputWidth * opts.InputHeight
	idx := 0
	for y := 0; y < opts.InputHeight; y++ {
		for x := 0; x < opts.InputWidth; x++ {
			c := color.RGBAModel.Convert(dst.At(x, y)).(color.RGBA)
			data[idx] = (float32(c.R)/255 - opts.Mean[0]) / std[0]
			data[numPixels+idx] = (float32(c.G)/255 - opts.Mean[1]) / std[1]
			data[2*numPixels+idx] = (float32(c.B)/255 - opts.Mean[2]) / std[2]
			idx++
		}
	}
}

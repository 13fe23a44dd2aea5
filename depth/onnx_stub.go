//go:build !cgo

package depth

import (
	"context"
	"fmt"
	"image"
)

// ONNXProvider is unavailable without cgo.
type ONNXProvider struct{}

// NewONNXProvider always fails in non-cgo builds.
func NewONNXProvider(opts ONNXOptions) (*ONNXProvider, error) {
	return nil, &EstimationError{
		Provider: "onnx",
		Err:      fmt.Errorf("%w: onnxruntime requires cgo; rebuild with CGO_ENABLED=1", ErrModelUnavailable),
	}
}

// Name implements Provider.
func (p *ONNXProvider) Name() string { return "onnx" }

// Estimate implements Provider.
func (p *ONNXProvider) Estimate(context.Context, image.Image) (*Buffer, error) {
	return nil, &EstimationError{Provider: p.Name(), Err: ErrModelUnavailable}
}

// Close is a no-op.
func (p *ONNXProvider) Close() error { return nil }

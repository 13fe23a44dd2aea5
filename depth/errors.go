package depth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat means the provider cannot process the input image.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrModelUnavailable means the provider's model could not be loaded or run.
	ErrModelUnavailable = errors.New("depth model unavailable")
)

// EstimationError is returned by providers that fail to produce a depth buffer.
type EstimationError struct {
	Provider string
	Err      error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("depth estimation (%s): %v", e.Provider, e.Err)
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}

// estimationErr wraps err unless it is already an EstimationError.
func estimationErr(provider string, err error) error {
	var ee *EstimationError
	if errors.As(err, &ee) {
		return err
	}
	return &EstimationError{Provider: provider, Err: err}
}

package depth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/pthm-cable/depthcloud/telemetry"
)

// Provider estimates a depth buffer for an image.
//
// Estimate returns a buffer covering the image's full extent with values in
// [0, 1]. Failures are reported as *EstimationError.
type Provider interface {
	Name() string
	Estimate(ctx context.Context, img image.Image) (*Buffer, error)
}

// Chain tries providers in order and returns the first success, resampled to
// the image dimensions. It is itself a Provider.
type Chain struct {
	providers []Provider
	rec       telemetry.Recorder
}

// NewChain creates a strategy chain. Nil providers are skipped.
func NewChain(rec telemetry.Recorder, providers ...Provider) *Chain {
	if rec == nil {
		rec = telemetry.Nop
	}
	c := &Chain{rec: rec}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Name lists the chained providers.
func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Len returns the number of strategies.
func (c *Chain) Len() int {
	return len(c.providers)
}

// Estimate implements Provider. When every strategy fails the returned
// *EstimationError wraps all attempt errors.
func (c *Chain) Estimate(ctx context.Context, img image.Image) (*Buffer, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &EstimationError{Provider: c.Name(), Err: ErrUnsupportedFormat}
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		buf, err := p.Estimate(ctx, img)
		if err == nil {
			err = buf.Validate()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, estimationErr(p.Name(), err))
			c.rec.Record(telemetry.NewEvent(telemetry.LevelWarn, telemetry.KindDepthAttemptFailed,
				"depth strategy failed", "provider", p.Name(), "error", err.Error()))
			continue
		}

		if buf.Width != w || buf.Height != h {
			buf = Resample(buf, w, h)
		}
		c.rec.Record(telemetry.NewEvent(telemetry.LevelDebug, telemetry.KindDepthEstimated,
			"depth estimated", "provider", p.Name(), "took_ms", time.Since(start).Milliseconds()))
		return buf, nil
	}

	if len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no strategies configured"))
	}
	return nil, &EstimationError{Provider: c.Name(), Err: errors.Join(errs...)}
}

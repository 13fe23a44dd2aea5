package depth

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pthm-cable/depthcloud/config"
	"github.com/pthm-cable/depthcloud/telemetry"
)

// Strategy names accepted in depth.providers.
const (
	StrategyONNX      = "onnx"
	StrategyLuminance = "luminance"
	StrategyRadial    = "radial"
)

// Built is a provider assembled from configuration plus the resources it owns.
type Built struct {
	Provider Provider
	Fallback Provider
	closers  []io.Closer
}

// Close releases the model session and cache.
func (b *Built) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the strategy chain described by cfg. A strategy that
// cannot be constructed (missing model, no cgo) is recorded and skipped.
func FromConfig(cfg config.DepthConfig, rec telemetry.Recorder) (*Built, error) {
	if rec == nil {
		rec = telemetry.Nop
	}
	b := &Built{}

	var cache *Cache
	if cfg.CachePath != "" {
		c, err := OpenCache(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		cache = c
		b.closers = append(b.closers, c)

		n, err := c.Len(context.Background())
		if err != nil {
			b.Close()
			return nil, err
		}
		rec.Record(telemetry.NewEvent(telemetry.LevelInfo, telemetry.KindDepthCacheOpened, "depth cache opened",
			"path", cfg.CachePath, "entries", n))
	}

	var providers []Provider
	for _, name := range cfg.Providers {
		p, err := b.strategy(name, cfg)
		if err != nil {
			var ee *EstimationError
			if !errors.As(err, &ee) {
				b.Close()
				return nil, err
			}
			rec.Record(telemetry.NewEvent(telemetry.LevelWarn, telemetry.KindDepthAttemptFailed,
				"depth strategy unavailable", "provider", name, "error", err.Error()))
			continue
		}
		if cache != nil && name != StrategyRadial {
			p = &Cached{Inner: p, Cache: cache, Rec: rec}
		}
		providers = append(providers, p)
	}
	b.Provider = NewChain(rec, providers...)

	fallback := cfg.Fallback
	if fallback == "" {
		fallback = StrategyRadial
	}
	fb, err := b.strategy(fallback, cfg)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("depth fallback: %w", err)
	}
	b.Fallback = fb

	return b, nil
}

func (b *Built) strategy(name string, cfg config.DepthConfig) (Provider, error) {
	switch name {
	case StrategyONNX:
		opts := ONNXOptions{
			ModelPath:         cfg.ONNX.ModelPath,
			SharedLibraryPath: cfg.ONNX.SharedLibraryPath,
			InputName:         cfg.ONNX.InputName,
			OutputName:        cfg.ONNX.OutputName,
			InputWidth:        cfg.ONNX.InputWidth,
			InputHeight:       cfg.ONNX.InputHeight,
			Mean:              cfg.ONNX.Mean,
			Std:               cfg.ONNX.Std,
			InverseDepth:      cfg.ONNX.InverseDepth,
			NearPct:           cfg.NearPct,
			FarPct:            cfg.FarPct,
			Invert:            cfg.Invert,
		}
		p, err := NewONNXProvider(opts)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, p)
		return p, nil
	case StrategyLuminance:
		return Luminance{Invert: cfg.Invert}, nil
	case StrategyRadial:
		return Radial{}, nil
	default:
		return nil, fmt.Errorf("unknown depth strategy %q", name)
	}
}

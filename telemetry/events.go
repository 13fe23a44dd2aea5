// Package telemetry provides the observability sink, performance collection
// and CSV output for depthcloud sessions.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of an event.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// slogLevel maps to the equivalent slog level.
func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Kind identifies what happened.
type Kind string

const (
	KindImageLoaded        Kind = "image_loaded"
	KindDepthAttemptFailed Kind = "depth_attempt_failed"
	KindDepthEstimated     Kind = "depth_estimated"
	KindDepthFallback      Kind = "depth_fallback"
	KindDepthCacheOpened   Kind = "depth_cache_opened"
	KindDepthCacheHit      Kind = "depth_cache_hit"
	KindDepthCacheError    Kind = "depth_cache_error"
	KindFieldBuilt         Kind = "field_built"
	KindBuildSuperseded    Kind = "build_superseded"
	KindDensityClamped     Kind = "density_clamped"
	KindDensityWarning     Kind = "density_warning"
	KindContextLost        Kind = "context_lost"
	KindContextRestored    Kind = "context_restored"
	KindExport             Kind = "export"
)

// Event is a single observability record.
type Event struct {
	Time    time.Time
	Session uuid.UUID
	Level   Level
	Kind    Kind
	Message string
	// Attrs holds alternating key/value pairs, as accepted by slog.
	Attrs []any
}

// NewEvent creates an event stamped with the current time.
func NewEvent(level Level, kind Kind, msg string, attrs ...any) Event {
	return Event{
		Time:    time.Now(),
		Level:   level,
		Kind:    kind,
		Message: msg,
		Attrs:   attrs,
	}
}

// NewFieldBuiltEvent records a completed particle field build.
func NewFieldBuiltEvent(generation uint64, sampleW, sampleH int, took time.Duration) Event {
	return NewEvent(LevelInfo, KindFieldBuilt, "particle field built",
		"generation", generation,
		"sample_width", sampleW,
		"sample_height", sampleH,
		"particles", sampleW*sampleH,
		"took_ms", took.Milliseconds(),
	)
}

// NewSupersededEvent records a build discarded because a newer request won.
func NewSupersededEvent(generation, latest uint64) Event {
	return NewEvent(LevelDebug, KindBuildSuperseded, "stale build discarded",
		"generation", generation,
		"latest", latest,
	)
}

// NewDepthFallbackEvent records substitution of the fallback depth source.
func NewDepthFallbackEvent(fallback string, cause error) Event {
	return NewEvent(LevelWarn, KindDepthFallback, "depth estimation failed, using fallback",
		"fallback", fallback,
		"error", cause.Error(),
	)
}

// Recorder receives events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(Event)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(Event)

// Record calls f(e).
func (f RecorderFunc) Record(e Event) { f(e) }

// Nop discards every event.
var Nop Recorder = RecorderFunc(func(Event) {})

type multi []Recorder

func (m multi) Record(e Event) {
	for _, r := range m {
		r.Record(e)
	}
}

// Multi fans events out to every non-nil recorder.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// WithSession stamps every event passing through with the given session id.
func WithSession(r Recorder, id uuid.UUID) Recorder {
	if r == nil {
		r = Nop
	}
	return RecorderFunc(func(e Event) {
		e.Session = id
		r.Record(e)
	})
}

// SlogRecorder forwards events to a structured logger.
type SlogRecorder struct {
	Logger *slog.Logger
}

// NewSlogRecorder creates a recorder writing to logger, or slog.Default() if nil.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{Logger: logger}
}

// Record implements Recorder.
func (s *SlogRecorder) Record(e Event) {
	attrs := make([]any, 0, len(e.Attrs)+4)
	attrs = append(attrs, "kind", string(e.Kind))
	if e.Session != uuid.Nil {
		attrs = append(attrs, "session", e.Session.String())
	}
	attrs = append(attrs, e.Attrs...)
	s.Logger.Log(context.Background(), e.Level.slogLevel(), e.Message, attrs...)
}

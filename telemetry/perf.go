package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phases of a displayed frame, in execution order.
const (
	PhaseAdopt       = "adopt"
	PhaseFrameUpdate = "frame_update"
	PhaseDraw        = "draw"
	PhaseUI          = "ui"
)

var framePhases = []string{PhaseAdopt, PhaseFrameUpdate, PhaseDraw, PhaseUI}

// PerfCollector times frames and their phases over a rolling window. It is
// not safe for concurrent use; the render loop owns it.
type PerfCollector struct {
	// Parallel rings indexed by slot.
	frames []time.Duration
	phases []map[string]time.Duration
	slot   int
	filled int

	frameStart time.Time
	phase      string
	phaseStart time.Time
	open       map[string]time.Duration

	lastPresent time.Time
	presentGap  time.Duration
}

// NewPerfCollector creates a collector averaging over window frames
// (60 when window < 1).
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		frames: make([]time.Duration, window),
		phases: make([]map[string]time.Duration, window),
	}
}

// StartFrame begins timing a frame. Phase time is attributed from the next
// StartPhase onwards.
func (p *PerfCollector) StartFrame() {
	p.frameStart = time.Now()
	p.phase = ""
	p.open = make(map[string]time.Duration, len(framePhases))
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phase = phase
	p.phaseStart = now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase == "" {
		return
	}
	if p.open == nil {
		p.open = make(map[string]time.Duration)
	}
	p.open[p.phase] += now.Sub(p.phaseStart)
	p.phase = ""
}

// EndFrame closes the running phase and stores the frame in the window.
func (p *PerfCollector) EndFrame() {
	now := time.Now()
	p.closePhase(now)

	p.frames[p.slot] = now.Sub(p.frameStart)
	p.phases[p.slot] = p.open
	p.open = nil

	p.slot = (p.slot + 1) % len(p.frames)
	if p.filled < len(p.frames) {
		p.filled++
	}
}

// RecordPresent marks a buffer swap. The gap between the last two swaps
// gives the displayed frame rate, which includes vsync waits that frame
// timing does not.
func (p *PerfCollector) RecordPresent() {
	now := time.Now()
	if !p.lastPresent.IsZero() {
		p.presentGap = now.Sub(p.lastPresent)
	}
	p.lastPresent = now
}

// PerfStats summarizes a window of frames.
type PerfStats struct {
	AvgFrameTime time.Duration
	MinFrameTime time.Duration
	MaxFrameTime time.Duration
	P95FrameTime time.Duration

	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // share of AvgFrameTime, 0-100

	// Frames per second the frame work alone could sustain.
	Throughput float64

	PresentGap time.Duration
	FPS        float64 // from PresentGap, 0 before two presents
}

// Stats summarizes the frames currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		PhaseAvg:   make(map[string]time.Duration),
		PhasePct:   make(map[string]float64),
		PresentGap: p.presentGap,
	}
	if p.presentGap > 0 {
		s.FPS = float64(time.Second) / float64(p.presentGap)
	}
	if p.filled == 0 {
		return s
	}

	ns := make([]float64, p.filled)
	sums := make(map[string]time.Duration)
	for i := 0; i < p.filled; i++ {
		ns[i] = float64(p.frames[i])
		for name, d := range p.phases[i] {
			sums[name] += d
		}
	}

	mean := stat.Mean(ns, nil)
	s.AvgFrameTime = time.Duration(mean)
	s.MinFrameTime = time.Duration(floats.Min(ns))
	s.MaxFrameTime = time.Duration(floats.Max(ns))
	sort.Float64s(ns)
	s.P95FrameTime = time.Duration(stat.Quantile(0.95, stat.Empirical, ns, nil))
	if mean > 0 {
		s.Throughput = float64(time.Second) / mean
	}

	n := time.Duration(p.filled)
	for name, sum := range sums {
		avg := sum / n
		s.PhaseAvg[name] = avg
		if mean > 0 {
			s.PhasePct[name] = float64(avg) / mean * 100
		}
	}
	return s
}

// LogStats writes the summary to the default logger. Phases under 0.1% of
// the frame are omitted.
func (s PerfStats) LogStats(particles int) {
	attrs := []any{
		"particles", particles,
		"avg_frame_us", s.AvgFrameTime.Microseconds(),
		"p95_frame_us", s.P95FrameTime.Microseconds(),
		"max_frame_us", s.MaxFrameTime.Microseconds(),
		"throughput_fps", int(s.Throughput),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, name := range framePhases {
		if pct := s.PhasePct[name]; pct > 0.1 {
			attrs = append(attrs, name+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Duration("avg_frame", s.AvgFrameTime),
		slog.Duration("p95_frame", s.P95FrameTime),
		slog.Float64("throughput_fps", s.Throughput),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, name := range framePhases {
		if pct, ok := s.PhasePct[name]; ok {
			attrs = append(attrs, slog.Float64(name+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	Frame          int64   `csv:"frame"`
	Particles      int     `csv:"particles"`
	AvgFrameUS     int64   `csv:"avg_frame_us"`
	MinFrameUS     int64   `csv:"min_frame_us"`
	MaxFrameUS     int64   `csv:"max_frame_us"`
	P95FrameUS     int64   `csv:"p95_frame_us"`
	Throughput     float64 `csv:"throughput_fps"`
	FPS            float64 `csv:"fps"`
	AdoptPct       float64 `csv:"adopt_pct"`
	FrameUpdatePct float64 `csv:"frame_update_pct"`
	DrawPct        float64 `csv:"draw_pct"`
	UIPct          float64 `csv:"ui_pct"`
}

// ToCSV flattens the summary for frame, with particles live.
func (s PerfStats) ToCSV(frame int64, particles int) PerfStatsCSV {
	return PerfStatsCSV{
		Frame:          frame,
		Particles:      particles,
		AvgFrameUS:     s.AvgFrameTime.Microseconds(),
		MinFrameUS:     s.MinFrameTime.Microseconds(),
		MaxFrameUS:     s.MaxFrameTime.Microseconds(),
		P95FrameUS:     s.P95FrameTime.Microseconds(),
		Throughput:     s.Throughput,
		FPS:            s.FPS,
		AdoptPct:       s.PhasePct[PhaseAdopt],
		FrameUpdatePct: s.PhasePct[PhaseFrameUpdate],
		DrawPct:        s.PhasePct[PhaseDraw],
		UIPct:          s.PhasePct[PhaseUI],
	}
}

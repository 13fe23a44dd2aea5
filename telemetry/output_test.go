package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager for empty dir, got %v, %v", om, err)
	}

	// nil manager is a no-op
	if err := om.WritePerf(PerfStats{}, 1, 1); err != nil {
		t.Errorf("expected nil error from nil manager, got %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("expected nil close error, got %v", err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("creating output manager: %v", err)
	}

	stats := PerfStats{AvgFrameTime: time.Millisecond, PhasePct: map[string]float64{}}
	if err := om.WritePerf(stats, 60, 100); err != nil {
		t.Fatal(err)
	}
	if err := om.WritePerf(stats, 120, 100); err != nil {
		t.Fatal(err)
	}
	om.Record(NewEvent(LevelInfo, KindImageLoaded, "loaded", "width", 4, "height", 2))
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	perf, err := os.ReadFile(filepath.Join(dir, "perf.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(perf)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), perf)
	}
	if !strings.HasPrefix(lines[0], "frame,particles,avg_frame_us") {
		t.Errorf("unexpected header: %s", lines[0])
	}

	events, err := os.ReadFile(filepath.Join(dir, "events.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(events), "width=4 height=2") {
		t.Errorf("expected flattened attrs in events.csv:\n%s", events)
	}
}

package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/depthcloud/config"
)

// EventCSV is a flat struct for CSV export of events.
type EventCSV struct {
	Time    string `csv:"time"`
	Session string `csv:"session"`
	Level   string `csv:"level"`
	Kind    string `csv:"kind"`
	Message string `csv:"message"`
	Attrs   string `csv:"attrs"`
}

// ToCSV flattens the event; attrs are rendered as space separated key=value.
func (e Event) ToCSV() EventCSV {
	var attrs strings.Builder
	for i := 0; i+1 < len(e.Attrs); i += 2 {
		if attrs.Len() > 0 {
			attrs.WriteByte(' ')
		}
		fmt.Fprintf(&attrs, "%v=%v", e.Attrs[i], e.Attrs[i+1])
	}
	return EventCSV{
		Time:    e.Time.Format(time.RFC3339Nano),
		Session: e.Session.String(),
		Level:   e.Level.String(),
		Kind:    string(e.Kind),
		Message: e.Message,
		Attrs:   attrs.String(),
	}
}

// csvFile appends gocsv rows, writing the header with the first batch.
type csvFile struct {
	f      *os.File
	header bool
}

func createCSV(dir, name string) (*csvFile, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvFile{f: f}, nil
}

func appendRows[T any](c *csvFile, rows []T) error {
	if c.header {
		return gocsv.MarshalWithoutHeaders(rows, c.f)
	}
	if err := gocsv.Marshal(rows, c.f); err != nil {
		return err
	}
	c.header = true
	return nil
}

func (c *csvFile) Close() error {
	if c == nil {
		return nil
	}
	return c.f.Close()
}

// OutputManager writes a run directory: perf.csv, events.csv and a
// config.yaml snapshot. It also implements Recorder, appending every event
// to events.csv. A nil *OutputManager discards everything.
type OutputManager struct {
	dir string

	mu     sync.Mutex
	perf   *csvFile
	events *csvFile
}

// NewOutputManager creates dir and the CSV files in it. It returns nil
// when dir is empty.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	perf, err := createCSV(dir, "perf.csv")
	if err != nil {
		return nil, err
	}
	events, err := createCSV(dir, "events.csv")
	if err != nil {
		perf.Close()
		return nil, err
	}
	return &OutputManager{dir: dir, perf: perf, events: events}, nil
}

// WriteConfig saves cfg as config.yaml.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WritePerf appends one perf.csv row.
func (om *OutputManager) WritePerf(stats PerfStats, frame int64, particles int) error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()
	if err := appendRows(om.perf, []PerfStatsCSV{stats.ToCSV(frame, particles)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteEvent appends one events.csv row.
func (om *OutputManager) WriteEvent(e Event) error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()
	if err := appendRows(om.events, []EventCSV{e.ToCSV()}); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Record implements Recorder. Write failures are logged, not returned.
func (om *OutputManager) Record(e Event) {
	if err := om.WriteEvent(e); err != nil {
		slog.Error("event output failed", "error", err)
	}
}

// Dir returns the output directory, or "" when disabled.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes both CSV files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()
	return errors.Join(om.perf.Close(), om.events.Close())
}

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vxkit/vxh/internal/report"
)

// ReportPrefix names health report files.
const ReportPrefix = "vxrail_health_report"

// TimestampLayout is the file name timestamp, e.g. 20261015_093000.
const TimestampLayout = "20060102_150405"

// FileName returns "<prefix>_YYYYMMDD_HHMMSS.json" for t.
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.json", prefix, t.Format(TimestampLayout))
}

// WriteJSONFile writes v as indented JSON to dir under a timestamped name and
// returns the path. The file is written to a temp name and renamed.
func WriteJSONFile(dir, prefix string, t time.Time, v any) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling %s: %w", prefix, err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, FileName(prefix, t))
	tmp, err := os.CreateTemp(dir, "."+prefix+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("renaming to %s: %w", path, err)
	}
	return path, nil
}

// FileSink saves each report as a timestamped JSON file.
type FileSink struct {
	Dir string

	// LastPath is the file written by the most recent Write.
	LastPath string
}

// Name implements Sink.
func (f *FileSink) Name() string { return "file" }

// Write implements Sink.
func (f *FileSink) Write(_ context.Context, r *report.Report) error {
	path, err := WriteJSONFile(f.Dir, ReportPrefix, r.GeneratedAt, r)
	if err != nil {
		return err
	}
	f.LastPath = path
	return nil
}

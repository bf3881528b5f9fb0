package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/obsidianstack/licenseaudit/internal/audit"
	"github.com/obsidianstack/licenseaudit/internal/config"
)

// Writer serializes Totals into the configured output directory.
type Writer struct {
	dir     string
	outputs config.Outputs
}

// NewWriter returns a Writer for dir using the artifact names in outputs.
func NewWriter(dir string, outputs config.Outputs) *Writer {
	return &Writer{dir: dir, outputs: outputs}
}

// Write renders every artifact and returns the paths written, in order.
// The first failure aborts the remaining writes.
func (w *Writer) Write(t *audit.Totals) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}

	platforms := t.Platforms
	if platforms == nil {
		platforms = []audit.PlatformSummary{}
	}
	counts := t.Counts
	if counts == nil {
		counts = audit.FrequencyTable{}
	}

	type artifact struct {
		name   string
		render func() ([]byte, error)
	}
	artifacts := []artifact{
		{w.outputs.Validity, func() ([]byte, error) { return marshalJSON(platforms) }},
		{w.outputs.SortedCounts, func() ([]byte, error) { return marshalJSON(audit.SortCounts(counts)) }},
		{w.outputs.Counts, func() ([]byte, error) { return marshalJSON(counts) }},
	}
	if w.outputs.Metrics != "" {
		artifacts = append(artifacts, artifact{w.outputs.Metrics, func() ([]byte, error) {
			var buf bytes.Buffer
			if err := WriteMetrics(&buf, t); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}})
	}

	written := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		data, err := a.render()
		if err != nil {
			return written, fmt.Errorf("report: render %s: %w", a.name, err)
		}
		path := filepath.Join(w.dir, a.name)
		if err := writeFileAtomic(path, data); err != nil {
			return written, err
		}
		slog.Debug("report: artifact written", "path", path, "bytes", len(data))
		written = append(written, path)
	}
	return written, nil
}

// marshalJSON renders v with two-space indentation and a trailing newline.
func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// writeFileAtomic writes data to a temp file beside path and renames it over
// path. On failure the temp file is removed and path is left untouched.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("report: create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("report: chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("report: rename into %s: %w", path, err)
	}
	return nil
}

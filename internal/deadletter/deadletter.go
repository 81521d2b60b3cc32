// Package deadletter records rows the transform engine rejected, one CSV
// line per row, so they can be inspected and fixed at the source.
package deadletter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dwh/internal/transformer"

	json "github.com/goccy/go-json"
)

// Header is the first line of every dead-letter file.
var Header = []string{"run_id", "entity", "reason", "key", "raw"}

// Writer appends rejected rows to a CSV file and keeps per-reason counts.
// It is safe for concurrent use. The first write error is sticky and
// returned by Close.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	runID   string
	reasons map[string]int
	n       int
	err     error
}

// Create truncates (or creates) path, including missing parent directories,
// and writes the header.
func Create(path, runID string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Writer{f: f, w: w, runID: runID, reasons: map[string]int{}}, nil
}

// Add records one rejected row. raw is the JSON encoding of the raw record.
func (d *Writer) Add(r transformer.RejectedRow) {
	raw, err := json.Marshal(r.Raw)
	if err != nil {
		raw = []byte(fmt.Sprintf("%q", fmt.Sprint(r.Raw)))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons[r.Entity+": "+r.Reason]++
	d.n++
	if d.err != nil {
		return
	}
	d.err = d.w.Write([]string{d.runID, r.Entity, r.Reason, r.Key, string(raw)})
}

// Count returns the number of rows added.
func (d *Writer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// Reasons returns "entity: reason" labels with their counts, sorted by label.
func (d *Writer) Reasons() []ReasonCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ReasonCount, 0, len(d.reasons))
	for k, v := range d.reasons {
		out = append(out, ReasonCount{Reason: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reason < out[j].Reason })
	return out
}

// ReasonCount is one line of Reasons.
type ReasonCount struct {
	Reason string
	Count  int
}

// Close flushes and closes the file.
func (d *Writer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.w.Flush()
	if d.err == nil {
		d.err = d.w.Error()
	}
	if cerr := d.f.Close(); d.err == nil {
		d.err = cerr
	}
	return d.err
}

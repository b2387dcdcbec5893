// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report persists acquired documents and writes the run summary:
// one PDF and one metadata YAML per acquired record, a plain-text summary,
// a JSON summary and an HTML report.
package report

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Output file names under the output directory.
const (
	MetadataDir = "metadata"
	SummaryText = "download_summary.txt"
	SummaryJSON = "summary.json"
	ReportHTML  = "report.html"
)

// Entry statuses.
const (
	StatusAcquired  = "acquired"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

//go:embed report.html.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"bytes": humanBytes,
}).Parse(reportTemplate))

// Entry is the report line for one input record, in input order.
type Entry struct {
	Index    int               `json:"index"`
	Record   types.Record      `json:"record"`
	Status   string            `json:"status"`
	Source   string            `json:"source,omitempty"`
	File     string            `json:"file,omitempty"`
	URL      string            `json:"url,omitempty"`
	Size     int64             `json:"size,omitempty"`
	Outcomes []acquire.Outcome `json:"outcomes,omitempty"`
	Hints    []string          `json:"hints,omitempty"`
	Elapsed  time.Duration     `json:"elapsed_ns"`
}

// Report is the whole-run summary written to summary.json and report.html.
type Report struct {
	RunID       string          `json:"run_id,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Summary     acquire.Summary `json:"summary"`
	Entries     []Entry         `json:"entries"`
}

// Writer saves acquired documents under an output directory. Save may be
// called concurrently from batch workers.
type Writer struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	taken  map[string]bool
	papers map[string]*types.Paper
}

// NewWriter creates the output directories and returns a Writer.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, d := range []string{dir, filepath.Join(dir, MetadataDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return &Writer{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		taken:  make(map[string]bool),
		papers: make(map[string]*types.Paper),
	}, nil
}

// Save writes the document of a successful result and its metadata. The
// PDF goes through a temporary file and a rename, so an interrupted write
// never leaves a partial document under the final name.
func (w *Writer) Save(res acquire.FinalResult) (*types.Paper, error) {
	if !res.OK() {
		return nil, fmt.Errorf("record %s has no acquired document", res.Record.ID)
	}

	stem := w.reserve(Stem(res.Record, res.Source))
	pdfPath := filepath.Join(w.dir, stem+".pdf")
	if err := writeAtomic(pdfPath, res.Content); err != nil {
		w.release(stem)
		return nil, fmt.Errorf("saving %s: %w", res.Record.ID, err)
	}

	sum := sha256.Sum256(res.Content)
	p := &types.Paper{
		ID:         res.Record.ID,
		Title:      res.Record.Title,
		Authors:    res.Record.Authors,
		Year:       res.Record.Year,
		Journal:    res.Record.Journal,
		Source:     res.Source,
		SourceURL:  res.URL,
		PDFPath:    pdfPath,
		Size:       int64(len(res.Content)),
		SHA256:     hex.EncodeToString(sum[:]),
		AcquiredAt: w.now().UTC(),
	}
	if err := writeMetadata(p, filepath.Join(w.dir, MetadataDir, stem+".yaml")); err != nil {
		if rmErr := os.Remove(pdfPath); rmErr != nil && !os.IsNotExist(rmErr) {
			w.logger.Warn("removing orphaned document", "file", pdfPath, "err", rmErr)
		}
		w.release(stem)
		return nil, fmt.Errorf("writing metadata for %s: %w", res.Record.ID, err)
	}

	w.mu.Lock()
	w.papers[res.Record.ID] = p
	w.mu.Unlock()

	w.logger.Info("saved", "record", res.Record.ID, "file", pdfPath, "bytes", p.Size)
	return p, nil
}

// Remember registers a document acquired by an earlier run, so the report
// can point at it.
func (w *Writer) Remember(p *types.Paper) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.papers[p.ID] = p
	w.taken[strings.TrimSuffix(filepath.Base(p.PDFPath), ".pdf")] = true
}

// reserve claims a unique stem, adding a numeric suffix when the name is
// already used in this run or on disk.
func (w *Writer) reserve(stem string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	candidate := stem
	for n := 2; ; n++ {
		if !w.taken[candidate] {
			if _, err := os.Stat(filepath.Join(w.dir, candidate+".pdf")); os.IsNotExist(err) {
				w.taken[candidate] = true
				return candidate
			}
		}
		candidate = fmt.Sprintf("%s-%d", stem, n)
	}
}

func (w *Writer) release(stem string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.taken, stem)
}

// Write saves every successful result not saved yet, then writes the
// summaries.
func (w *Writer) Write(runID string, results []acquire.FinalResult) (Report, error) {
	for _, res := range results {
		if !res.OK() || w.saved(res.Record.ID) {
			continue
		}
		if _, err := w.Save(res); err != nil {
			return Report{}, err
		}
	}
	return w.Finish(runID, results)
}

func (w *Writer) saved(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.papers[id] != nil
}

// Build assembles the run report from batch results.
func (w *Writer) Build(runID string, results []acquire.FinalResult) Report {
	w.mu.Lock()
	defer w.mu.Unlock()

	rep := Report{
		RunID:       runID,
		GeneratedAt: w.now().UTC(),
		Summary:     acquire.Summarize(results),
		Entries:     make([]Entry, len(results)),
	}
	for i, res := range results {
		e := Entry{
			Index:    i + 1,
			Record:   res.Record,
			Source:   res.Source,
			URL:      res.URL,
			Outcomes: res.Outcomes,
			Elapsed:  res.Elapsed,
		}
		switch {
		case res.Skipped:
			e.Status = StatusSkipped
		case res.OK():
			e.Status = StatusAcquired
		case res.Cancelled:
			e.Status = StatusCancelled
			e.Hints = Hints(res.Record)
		default:
			e.Status = StatusFailed
			e.Hints = Hints(res.Record)
		}
		if p := w.papers[res.Record.ID]; p != nil && (res.OK() || res.Skipped) {
			e.File = p.PDFPath
			e.Size = p.Size
			if e.Source == "" {
				e.Source = p.Source
			}
		}
		rep.Entries[i] = e
	}
	return rep
}

// Finish builds the report and writes the text, JSON and HTML summaries.
func (w *Writer) Finish(runID string, results []acquire.FinalResult) (Report, error) {
	rep := w.Build(runID, results)

	writers := []struct {
		name  string
		write func(io.Writer, Report) error
	}{
		{SummaryText, WriteText},
		{SummaryJSON, writeJSON},
		{ReportHTML, WriteHTML},
	}
	for _, out := range writers {
		path := filepath.Join(w.dir, out.name)
		var buf strings.Builder
		if err := out.write(&buf, rep); err != nil {
			return rep, fmt.Errorf("rendering %s: %w", out.name, err)
		}
		if err := writeAtomic(path, []byte(buf.String())); err != nil {
			return rep, fmt.Errorf("writing %s: %w", out.name, err)
		}
	}
	return rep, nil
}

// WriteText writes the plain-text summary: totals, then the acquired
// records with their source, then each failed record with the reason from
// every source tried and manual-retrieval hints.
func WriteText(out io.Writer, rep Report) error {
	s := rep.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "paper-fetch download summary\n")
	if rep.RunID != "" {
		fmt.Fprintf(&b, "Run:       %s\n", rep.RunID)
	}
	fmt.Fprintf(&b, "Time:      %s\n", rep.GeneratedAt.Format(time.DateTime))
	fmt.Fprintf(&b, "Total:     %d\n", s.Total)
	fmt.Fprintf(&b, "Acquired:  %d\n", s.Succeeded)
	fmt.Fprintf(&b, "Skipped:   %d\n", s.Skipped)
	fmt.Fprintf(&b, "Failed:    %d\n", s.Failed)
	fmt.Fprintf(&b, "Cancelled: %d\n", s.Cancelled)
	fmt.Fprintf(&b, "Success:   %.1f%%\n", s.SuccessRate())

	b.WriteString("\nAcquired:\n")
	for _, e := range rep.Entries {
		if e.Status != StatusAcquired && e.Status != StatusSkipped {
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s\n", e.Index, e.Record.ID)
		fmt.Fprintf(&b, "      source: %s", e.Source)
		if e.Status == StatusSkipped {
			b.WriteString(" (earlier run)")
		}
		b.WriteString("\n")
		if e.File != "" {
			fmt.Fprintf(&b, "      file:   %s\n", filepath.Base(e.File))
		}
	}

	b.WriteString("\nNot acquired:\n")
	for _, e := range rep.Entries {
		if e.Status != StatusFailed && e.Status != StatusCancelled {
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s (%s)\n", e.Index, e.Record.ID, e.Status)
		if e.Record.Title != "" {
			fmt.Fprintf(&b, "      title: %s\n", e.Record.Title)
		}
		for _, o := range e.Outcomes {
			fmt.Fprintf(&b, "      - %s\n", o)
		}
		for _, h := range e.Hints {
			fmt.Fprintf(&b, "      try: %s\n", h)
		}
	}

	_, err := io.WriteString(out, b.String())
	return err
}

func writeJSON(out io.Writer, rep Report) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteHTML renders the HTML report.
func WriteHTML(out io.Writer, rep Report) error {
	return reportTmpl.Execute(out, rep)
}

// writeMetadata writes a Paper record to a YAML file.
func writeMetadata(p *types.Paper, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return writeAtomic(path, data)
}

// ReadMetadata reads a Paper record from a YAML file.
func ReadMetadata(path string) (*types.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p types.Paper
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &p, nil
}

// writeAtomic writes data to a temporary file in the destination directory
// and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".paper-fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Package artifact persists processing results as text, summary, vector
// and JSON files, and reads speaker files back.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loqalabs/file2text/internal/config"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/pipeline"
	"github.com/loqalabs/file2text/internal/speakers"
	"github.com/loqalabs/file2text/internal/vectorize"
)

// Paths lists the files written for one unit. Empty fields were not
// written.
type Paths struct {
	FullText        string `json:"full_text,omitempty"`
	SpeakerText     string `json:"speaker_text,omitempty"`
	SummaryFull     string `json:"summary_full,omitempty"`
	SummarySpeakers string `json:"summary_speakers,omitempty"`
	SummaryCombined string `json:"summary_combined,omitempty"`
	Vectors         string `json:"vectors,omitempty"`
	JSON            string `json:"json,omitempty"`
}

// Writer places artifacts under the configured text and summary
// directories.
type Writer struct {
	textDir    string
	summaryDir string
	writeJSON  bool
}

func NewWriter(out config.OutputConfig, writeJSON bool) *Writer {
	return &Writer{textDir: out.TextPath(), summaryDir: out.SummaryPath(), writeJSON: writeJSON}
}

func (w *Writer) TextDir() string    { return w.textDir }
func (w *Writer) SummaryDir() string { return w.summaryDir }

// Write stores every part of res that is present, naming files after base.
func (w *Writer) Write(base string, res *pipeline.Result) (Paths, error) {
	var paths Paths
	if res.Text != "" {
		p := filepath.Join(w.textDir, base+"_full.txt")
		if err := writeFile(p, res.Text); err != nil {
			return paths, err
		}
		paths.FullText = p
	}
	if len(res.SpeakerSegments) > 0 {
		p := filepath.Join(w.textDir, base+".txt")
		if err := writeFile(p, SpeakerLines(res.SpeakerSegments)); err != nil {
			return paths, err
		}
		paths.SpeakerText = p
	}

	summaries, err := w.WriteSummaries(base, res.Summary.Full, res.Summary.BySpeakers)
	if err != nil {
		return paths, err
	}
	paths.SummaryFull = summaries.SummaryFull
	paths.SummarySpeakers = summaries.SummarySpeakers
	paths.SummaryCombined = summaries.SummaryCombined

	if len(res.Vectors) > 0 {
		p := filepath.Join(w.textDir, base+"_vectors.cbor")
		model, _ := res.Metadata["vector_model"].(string)
		export := vectorize.Export{Model: model, Dimension: len(res.Vectors[0]), Vectors: res.Vectors}
		if err := ensureDir(w.textDir); err != nil {
			return paths, err
		}
		if err := vectorize.SaveFile(p, export); err != nil {
			return paths, err
		}
		paths.Vectors = p
	}

	if w.writeJSON {
		p := filepath.Join(w.textDir, base+".json")
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode result: %w", err)
		}
		if err := writeFile(p, string(data)); err != nil {
			return paths, err
		}
		paths.JSON = p
	}
	return paths, nil
}

// WriteSummaries stores the full and per-speaker summaries. The combined
// file is written when both exist.
func (w *Writer) WriteSummaries(base, full string, bySpeaker speakers.SpeakersText) (Paths, error) {
	var paths Paths
	if full != "" {
		p := filepath.Join(w.summaryDir, base+"_summary_full.txt")
		if err := writeFile(p, FullSummary(full)); err != nil {
			return paths, err
		}
		paths.SummaryFull = p
	}
	if len(bySpeaker) > 0 {
		p := filepath.Join(w.summaryDir, base+"_summary_speakers.txt")
		if err := writeFile(p, SpeakerSummaries(bySpeaker)); err != nil {
			return paths, err
		}
		paths.SummarySpeakers = p
	}
	if full != "" && len(bySpeaker) > 0 {
		p := filepath.Join(w.summaryDir, base+"_summary_combined.txt")
		if err := writeFile(p, CombinedSummary(full, bySpeaker)); err != nil {
			return paths, err
		}
		paths.SummaryCombined = p
	}
	return paths, nil
}

// Source is a transcript pair found in the text directory.
type Source struct {
	Base        string
	FullText    string
	SpeakerText string
}

// Scan lists the transcripts in the text directory, sorted by base name.
func (w *Writer) Scan() ([]Source, error) {
	entries, err := os.ReadDir(w.textDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fault.NotFound("artifact", fmt.Errorf("text directory %s does not exist", w.textDir))
		}
		return nil, fmt.Errorf("read text directory: %w", err)
	}
	byBase := make(map[string]*Source)
	get := func(base string) *Source {
		s, ok := byBase[base]
		if !ok {
			s = &Source{Base: base}
			byBase[base] = s
		}
		return s
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".txt") || strings.Contains(name, "_summary_") {
			continue
		}
		path := filepath.Join(w.textDir, name)
		if base, ok := strings.CutSuffix(name, "_full.txt"); ok {
			get(base).FullText = path
			continue
		}
		get(strings.TrimSuffix(name, ".txt")).SpeakerText = path
	}

	out := make([]Source, 0, len(byBase))
	for _, s := range byBase {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out, nil
}

// ReadText returns the content of an artifact file.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fault.NotFound("artifact", fmt.Errorf("text file %s: %w", path, err))
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeFile(path, content string) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// Package batch processes every media file of an input directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/loqalabs/file2text/internal/artifact"
	"github.com/loqalabs/file2text/internal/fault"
	"github.com/loqalabs/file2text/internal/media"
	"github.com/loqalabs/file2text/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// Processor runs the pipeline over one file.
type Processor interface {
	Process(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error)
}

// Item is the outcome for one input file.
type Item struct {
	Path     string         `json:"path"`
	Paths    artifact.Paths `json:"artifacts"`
	Err      error          `json:"-"`
	Skipped  bool           `json:"skipped,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Report summarizes a run.
type Report struct {
	Items     []Item `json:"items"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

type Options struct {
	Pipeline        pipeline.Options
	Workers         int
	DeleteProcessed bool
}

type Runner struct {
	proc   Processor
	writer *artifact.Writer
	opts   Options
	log    *slog.Logger
}

func NewRunner(proc Processor, writer *artifact.Writer, opts Options, log *slog.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{proc: proc, writer: writer, opts: opts, log: log.With(slog.String("component", "batch"))}
}

// Discover lists the supported media files directly inside dir, sorted by
// name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fault.NotFound("batch", fmt.Errorf("input directory %s does not exist", dir))
		}
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !media.IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes paths with at most Workers files in flight. A failing file
// is logged and the rest continue; a configuration error cancels the run
// and is returned along with the partial report.
func (r *Runner) Run(ctx context.Context, paths []string) (Report, error) {
	items := make([]Item, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, path := range paths {
		items[i].Path = path
		g.Go(func() error {
			if gctx.Err() != nil {
				items[i].Skipped = true
				items[i].Err = gctx.Err()
				return nil
			}
			start := time.Now()
			err := r.processOne(gctx, &items[i])
			items[i].Duration = time.Since(start)
			if err == nil {
				return nil
			}
			items[i].Err = err
			r.log.Error("file failed", slog.String("path", path), slogError(err))
			if fault.AbortsRun(err) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	report := Report{Items: items}
	for _, item := range items {
		switch {
		case item.Skipped:
			report.Skipped++
		case item.Err != nil:
			report.Failed++
		default:
			report.Processed++
		}
	}
	r.log.Info("batch finished",
		slog.Int("processed", report.Processed),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped))
	return report, err
}

func (r *Runner) processOne(ctx context.Context, item *Item) error {
	r.log.Info("processing file", slog.String("path", item.Path))
	res, err := r.proc.Process(ctx, item.Path, r.opts.Pipeline)
	if err != nil {
		return err
	}
	paths, err := r.writer.Write(media.BaseName(item.Path), res)
	item.Paths = paths
	if err != nil {
		return err
	}
	if r.opts.DeleteProcessed {
		r.cleanup(item.Path, res)
	}
	return nil
}

// cleanup removes the source file and the converted WAV after a successful
// run.
func (r *Runner) cleanup(path string, res *pipeline.Result) {
	targets := []string{path}
	if converted, ok := res.Metadata["converted_audio_path"].(string); ok && converted != path {
		targets = append(targets, converted)
	}
	for _, target := range targets {
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.Warn("failed to delete processed file", slog.String("path", target), slogError(err))
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
